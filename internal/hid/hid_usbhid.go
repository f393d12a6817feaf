//go:build !windows

package hid

import (
	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func newManager() (Manager, error) { return &usbManager{}, nil }

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
		})
	}
	return out, nil
}

type usbDevice struct{ d *usbhid.Device }

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, err
	}
	return &usbDevice{d}, nil
}

func (d *usbDevice) Write(p []byte) (int, error) {
	// p carries the report ID at p[0]
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.d.SetOutputReport(p[0], p[1:]); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *usbDevice) Close() error { return d.d.Close() }
