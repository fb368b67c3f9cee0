package tty

import (
	"io"

	"multiterm/device"
	"multiterm/kernel"
	"multiterm/kernel/kfmt"
)

// Bank is the set of virtual terminals multiplexed on the display.
type Bank struct {
	VTs []*VT
}

// NewBank creates count virtual terminals.
func NewBank(count int, tabWidth uint8) *Bank {
	b := &Bank{VTs: make([]*VT, count)}
	for i := range b.VTs {
		b.VTs[i] = NewVT(tabWidth)
	}
	return b
}

// DriverName returns the name of this driver.
func (b *Bank) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (b *Bank) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (b *Bank) DriverInit(w io.Writer) *kernel.Error {
	kfmt.Fprintf(w, "%d virtual terminals\n", len(b.VTs))
	return nil
}

func probeForVT(hw *device.Hardware) device.Driver {
	if hw.Terminals <= 0 {
		return nil
	}
	return NewBank(hw.Terminals, DefaultTabWidth)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderBeforeInput,
		Probe: probeForVT,
	})
}
