// Package irq models the cascaded 8259 interrupt controller pair. Devices
// raise lines from any goroutine; pending lines are delivered to the
// interrupt descriptor table only at instruction boundaries of the goroutine
// that holds the CPU, and only while the CPU interrupt flag is set.
package irq

import (
	"runtime"

	"multiterm/kernel/cpu"
	"multiterm/kernel/gate"
	"multiterm/kernel/sync"
)

// Line is an interrupt request line of the controller.
type Line uint8

// The lines used by the kernel.
const (
	TimerLine    Line = 0
	KeyboardLine Line = 1
	CascadeLine  Line = 2
	RTCLine      Line = 8

	NumLines = 16
)

// Vector returns the interrupt vector a line is delivered on.
func (l Line) Vector() gate.InterruptNumber {
	return gate.IRQBase + gate.InterruptNumber(l)
}

// Controller is the simulated interrupt controller.
type Controller struct {
	cpu *cpu.CPU
	idt *gate.Table

	lock      sync.Spinlock
	mask      uint16
	pending   uint16
	inService uint16
	delivered [NumLines]uint64

	signal chan struct{}
}

// New returns a controller with every line but the cascade masked.
func New(c *cpu.CPU, idt *gate.Table) *Controller {
	return &Controller{
		cpu:    c,
		idt:    idt,
		mask:   ^uint16(1 << CascadeLine),
		signal: make(chan struct{}, 1),
	}
}

// Enable unmasks line.
func (c *Controller) Enable(line Line) {
	c.lock.Acquire()
	c.mask &^= 1 << line
	c.lock.Release()
	c.notify()
}

// Disable masks line. A raised masked line stays pending until enabled.
func (c *Controller) Disable(line Line) {
	c.lock.Acquire()
	c.mask |= 1 << line
	c.lock.Release()
}

// Enabled returns true if line is unmasked.
func (c *Controller) Enabled(line Line) bool {
	c.lock.Acquire()
	defer c.lock.Release()
	return c.mask&(1<<line) == 0
}

// HandleIRQ installs handler on the vector of line and unmasks it.
func (c *Controller) HandleIRQ(line Line, handler gate.Handler) {
	c.idt.HandleInterrupt(line.Vector(), handler)
	c.Enable(line)
}

// Raise asserts line. It is safe to call from any goroutine.
func (c *Controller) Raise(line Line) {
	c.lock.Acquire()
	c.pending |= 1 << line
	c.lock.Release()
	c.notify()
}

// EOI acknowledges the interrupt in service on line.
func (c *Controller) EOI(line Line) {
	c.lock.Acquire()
	c.inService &^= 1 << line
	c.lock.Release()
	c.notify()
}

// Delivered returns the number of interrupts delivered on line.
func (c *Controller) Delivered(line Line) uint64 {
	c.lock.Acquire()
	defer c.lock.Release()
	return c.delivered[line]
}

// Pending returns true if line has been raised but not yet delivered.
func (c *Controller) Pending(line Line) bool {
	c.lock.Acquire()
	defer c.lock.Release()
	return c.pending&(1<<line) != 0
}

func (c *Controller) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// acknowledge selects the highest priority deliverable line, moves it from
// pending to in-service and returns it. Lower line numbers have priority and
// a line is not delivered while it or a higher priority line is in service.
func (c *Controller) acknowledge() (Line, bool) {
	c.lock.Acquire()
	defer c.lock.Release()

	ready := c.pending &^ c.mask
	for line := Line(0); line < NumLines; line++ {
		bit := uint16(1) << line
		if c.inService&bit != 0 {
			return 0, false
		}
		if ready&bit != 0 {
			c.pending &^= bit
			c.inService |= bit
			c.delivered[line]++
			return line, true
		}
	}

	return 0, false
}

// Service delivers every deliverable interrupt while the CPU interrupt flag is
// set and returns the number of delivered interrupts. Handlers run with
// interrupts disabled and are responsible for sending EOI. Handlers may switch
// the CPU to another process; Service returns once this goroutine is resumed
// and nothing else is deliverable.
func (c *Controller) Service() int {
	var count int
	for c.cpu.InterruptsEnabled() {
		line, ok := c.acknowledge()
		if !ok {
			break
		}
		count++

		regs := gate.Registers{EFlags: 0x202}
		c.cpu.DisableInterrupts()
		if !c.idt.Dispatch(line.Vector(), &regs) {
			c.EOI(line)
		}
		c.cpu.EnableInterrupts()
	}

	return count
}

// WaitAndService enables interrupts and idles until at least one interrupt
// has been delivered. If the CPU is powered off while idling the calling
// goroutine exits.
func (c *Controller) WaitAndService() {
	c.cpu.EnableInterrupts()
	for c.Service() == 0 {
		select {
		case <-c.signal:
		case <-c.cpu.Off():
			runtime.Goexit()
		}
	}
}
