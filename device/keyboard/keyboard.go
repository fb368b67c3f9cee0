// Package keyboard implements a PS/2 keyboard controller that decodes
// scancode set 1 into terminal input events.
package keyboard

import (
	"io"

	"multiterm/device"
	"multiterm/kernel"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/sync"
)

// EventKind identifies the type of a keyboard event.
type EventKind uint8

// The supported event kinds.
const (
	// EventChar carries a character for the line editor.
	EventChar EventKind = iota

	// EventClear requests clearing the visible terminal (Ctrl+L).
	EventClear

	// EventSwitch requests switching the visible terminal (Alt+F1..F3).
	EventSwitch
)

// Event is a decoded key press.
type Event struct {
	Kind     EventKind
	Char     byte
	Terminal int
}

// bufferSize is the capacity of the controller output buffer. Scancodes
// arriving while it is full are dropped.
const bufferSize = 64

// Keyboard is the keyboard controller. Host code feeds scancodes with Inject;
// the kernel consumes one scancode per interrupt.
type Keyboard struct {
	pic       *irq.Controller
	terminals int

	lock  sync.Spinlock
	queue []byte

	shift, caps, ctrl, alt bool

	handler func(Event)
}

// New returns a keyboard that raises interrupts on pic. Alt+F<n> switches
// are reported for n up to terminals.
func New(pic *irq.Controller, terminals int) *Keyboard {
	return &Keyboard{pic: pic, terminals: terminals}
}

// SetHandler registers the function that receives decoded events. It runs
// in interrupt context.
func (kb *Keyboard) SetHandler(fn func(Event)) {
	kb.handler = fn
}

// Inject places scancodes in the controller output buffer and raises the
// keyboard interrupt. It is safe to call from any goroutine.
func (kb *Keyboard) Inject(scancodes ...byte) {
	kb.lock.Acquire()
	for _, sc := range scancodes {
		if len(kb.queue) < bufferSize {
			kb.queue = append(kb.queue, sc)
		}
	}
	kb.lock.Release()

	kb.pic.Raise(irq.KeyboardLine)
}

// readData pops the next scancode from the output buffer and reports whether
// more data is waiting.
func (kb *Keyboard) readData() (byte, bool, bool) {
	kb.lock.Acquire()
	defer kb.lock.Release()

	if len(kb.queue) == 0 {
		return 0, false, false
	}

	sc := kb.queue[0]
	kb.queue = kb.queue[1:]
	return sc, true, len(kb.queue) != 0
}

func (kb *Keyboard) handleIRQ(_ *gate.Registers) {
	sc, ok, more := kb.readData()
	if more {
		kb.pic.Raise(irq.KeyboardLine)
	}
	kb.pic.EOI(irq.KeyboardLine)

	if !ok {
		return
	}

	if ev, ok := kb.decode(sc); ok && kb.handler != nil {
		kb.handler(ev)
	}
}

// decode updates the modifier state and translates a scancode into an event.
func (kb *Keyboard) decode(sc byte) (Event, bool) {
	released := sc&breakBit != 0
	code := sc &^ breakBit

	switch code {
	case scanLeftShift, scanRightShift:
		kb.shift = !released
		return Event{}, false
	case scanCtrl:
		kb.ctrl = !released
		return Event{}, false
	case scanAlt:
		kb.alt = !released
		return Event{}, false
	}

	if released {
		return Event{}, false
	}

	switch {
	case code == scanCapsLock:
		kb.caps = !kb.caps
	case kb.alt && code >= scanF1 && int(code-scanF1) < kb.terminals:
		return Event{Kind: EventSwitch, Terminal: int(code - scanF1)}, true
	case kb.ctrl && code == scanL:
		return Event{Kind: EventClear}, true
	case kb.ctrl || kb.alt:
	case code == scanBackspace:
		return Event{Kind: EventChar, Char: '\b'}, true
	default:
		if ch := translate(code, kb.shift, kb.caps); ch != 0 {
			return Event{Kind: EventChar, Char: ch}, true
		}
	}

	return Event{}, false
}

// DriverName returns the name of this driver.
func (kb *Keyboard) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (kb *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit installs the keyboard interrupt handler.
func (kb *Keyboard) DriverInit(w io.Writer) *kernel.Error {
	kb.pic.HandleIRQ(irq.KeyboardLine, kb.handleIRQ)
	kfmt.Fprintf(w, "scancode set 1 on IRQ %d\n", uint8(irq.KeyboardLine))
	return nil
}

func probeForKeyboard(hw *device.Hardware) device.Driver {
	if hw.PIC == nil {
		return nil
	}
	return New(hw.PIC, hw.Terminals)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderInput,
		Probe: probeForKeyboard,
	})
}
