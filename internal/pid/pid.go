// Package pid enforces the single-instance startup precondition with a
// pid file in the system temp directory.
package pid

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/frostyard/glacierctl/internal/errors"
)

const (
	pidFile = "glacierctl.pid"
)

// Write writes the current process ID to a PID file. A pid file pointing at
// a live process means another instance owns the tray and the device.
func Write() error {
	errFactory := errors.New()
	pid := os.Getpid()
	path := filepath.Join(os.TempDir(), pidFile)

	if _, err := os.Stat(path); err == nil {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		oldPid, err := strconv.Atoi(string(bytes))
		if err == nil && processAlive(oldPid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, oldPid)
		}
		// Stale pid file, fall through and take it over
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove() error {
	errFactory := errors.New()
	path := filepath.Join(os.TempDir(), pidFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
