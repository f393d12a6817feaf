// Package hid wraps the platform HID backends behind a small
// enumerate/open/write surface. The pump only ever receives output
// reports, so no read path is exposed.
package hid

// Device represents an opened HID device. The first byte of every write is
// the report ID, zero when the device does not use numbered reports.
type Device interface {
	Write([]byte) (int, error) // send output report
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
}

// NewManager returns the OS-specific HID manager.
func NewManager() (Manager, error) {
	return newManager()
}
