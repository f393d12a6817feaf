//go:build windows

package main

import "golang.org/x/sys/windows"

// The WMI thermal-zone classes refuse non-administrator callers outright.
const elevationRequired = true

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
