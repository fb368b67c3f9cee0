// Package rtc implements the real time clock and the virtual timers that
// processes read through RTC file descriptors.
package rtc

import (
	"io"
	"sync/atomic"
	"time"

	"multiterm/device"
	"multiterm/kernel"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
)

// Virtual timer rates are powers of two in [MinRate, MaxRate].
const (
	MinRate     = 2
	MaxRate     = 1024
	DefaultRate = 2
)

// ErrInvalidRate is returned when a virtual timer rate is not a power of two
// in the supported range.
var ErrInvalidRate = &kernel.Error{Module: "rtc", Message: "invalid rate"}

// RTC is the periodic interrupt source of the real time clock. It always
// runs at its hardware rate; slower rates are provided by virtual timers
// that count hardware ticks.
type RTC struct {
	pic *irq.Controller
	hz  int

	ticks uint64
}

// New returns an RTC that raises IRQ 8 on pic hz times per second. A zero
// frequency leaves the clock to be ticked manually; virtual timers then
// assume the maximum rate.
func New(pic *irq.Controller, hz int) *RTC {
	return &RTC{pic: pic, hz: hz}
}

func (r *RTC) baseRate() uint64 {
	if r.hz <= 0 {
		return MaxRate
	}
	return uint64(r.hz)
}

// Ticks returns the number of serviced RTC interrupts.
func (r *RTC) Ticks() uint64 {
	return atomic.LoadUint64(&r.ticks)
}

// Tick raises the RTC interrupt once.
func (r *RTC) Tick() {
	r.pic.Raise(irq.RTCLine)
}

// Start runs the clock on its own goroutine until off is closed.
func (r *RTC) Start(off <-chan struct{}) {
	if r.hz <= 0 {
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(r.hz))
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Tick()
			case <-off:
				return
			}
		}
	}()
}

func (r *RTC) handleIRQ(_ *gate.Registers) {
	atomic.AddUint64(&r.ticks, 1)
	r.pic.EOI(irq.RTCLine)
}

// Timer is a virtual timer with its own rate.
type Timer struct {
	rtc    *RTC
	rate   uint32
	period uint64
}

// NewTimer returns a virtual timer running at DefaultRate.
func (r *RTC) NewTimer() *Timer {
	t := &Timer{rtc: r}
	t.SetRate(DefaultRate)
	return t
}

// Rate returns the timer rate in Hz.
func (t *Timer) Rate() uint32 {
	return t.rate
}

// SetRate changes the timer rate.
func (t *Timer) SetRate(hz uint32) *kernel.Error {
	if hz < MinRate || hz > MaxRate || hz&(hz-1) != 0 {
		return ErrInvalidRate
	}

	t.rate = hz
	if t.period = t.rtc.baseRate() / uint64(hz); t.period == 0 {
		t.period = 1
	}
	return nil
}

// Wait blocks until one period of the timer has elapsed. While waiting it
// calls idle, which is expected to return after the next interrupt has been
// serviced.
func (t *Timer) Wait(idle func()) {
	deadline := t.rtc.Ticks() + t.period
	for t.rtc.Ticks() < deadline {
		idle()
	}
}

// DriverName returns the name of this driver.
func (r *RTC) DriverName() string {
	return "rtc"
}

// DriverVersion returns the version of this driver.
func (r *RTC) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit installs the RTC interrupt handler.
func (r *RTC) DriverInit(w io.Writer) *kernel.Error {
	r.pic.HandleIRQ(irq.RTCLine, r.handleIRQ)
	kfmt.Fprintf(w, "periodic interrupt at %d Hz on IRQ %d\n", r.baseRate(), uint8(irq.RTCLine))
	return nil
}

func probeForRTC(hw *device.Hardware) device.Driver {
	if hw.PIC == nil {
		return nil
	}
	return New(hw.PIC, hw.RTCHz)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderInput,
		Probe: probeForRTC,
	})
}
