// Package pit implements the programmable interval timer that drives the
// scheduler quantum.
package pit

import (
	"io"
	"time"

	"multiterm/device"
	"multiterm/kernel"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
)

// PIT raises the timer interrupt at a fixed frequency.
type PIT struct {
	pic *irq.Controller
	hz  int
}

// New returns a timer that raises IRQ 0 on pic hz times per second. A zero
// frequency leaves the timer to be ticked manually.
func New(pic *irq.Controller, hz int) *PIT {
	return &PIT{pic: pic, hz: hz}
}

// Frequency returns the timer frequency.
func (p *PIT) Frequency() int {
	return p.hz
}

// Tick raises the timer interrupt once.
func (p *PIT) Tick() {
	p.pic.Raise(irq.TimerLine)
}

// Start runs the timer on its own goroutine until off is closed. Ticks that
// arrive while the previous one is still pending are coalesced.
func (p *PIT) Start(off <-chan struct{}) {
	if p.hz <= 0 {
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(p.hz))
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Tick()
			case <-off:
				return
			}
		}
	}()
}

// DriverName returns the name of this driver.
func (p *PIT) DriverName() string {
	return "pit"
}

// DriverVersion returns the version of this driver.
func (p *PIT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (p *PIT) DriverInit(w io.Writer) *kernel.Error {
	if p.hz <= 0 {
		kfmt.Fprintf(w, "manual tick mode\n")
		return nil
	}

	kfmt.Fprintf(w, "channel 0 at %d Hz\n", p.hz)
	return nil
}

func probeForPIT(hw *device.Hardware) device.Driver {
	if hw.PIC == nil {
		return nil
	}
	return New(hw.PIC, hw.TimerHz)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderInput,
		Probe: probeForPIT,
	})
}
