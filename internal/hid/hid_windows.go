//go:build windows

package hid

import (
	"sync"

	winhid "github.com/sstallion/go-hid"
)

var initOnce sync.Once

type winManager struct{}

func newManager() (Manager, error) {
	var err error
	initOnce.Do(func() {
		err = winhid.Init()
	})
	if err != nil {
		return nil, err
	}
	return &winManager{}, nil
}

func (m *winManager) List() ([]Info, error) {
	var out []Info
	err := winhid.Enumerate(winhid.VendorIDAny, winhid.ProductIDAny, func(info *winhid.DeviceInfo) error {
		out = append(out, Info{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			Product:      info.ProductStr,
			Manufacturer: info.MfrStr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type winDevice struct{ d *winhid.Device }

func (m *winManager) Open(info Info) (Device, error) {
	d, err := winhid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	return &winDevice{d}, nil
}

func (d *winDevice) Write(p []byte) (int, error) {
	return d.d.Write(p)
}

func (d *winDevice) Close() error { return d.d.Close() }
