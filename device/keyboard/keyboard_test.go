package keyboard

import (
	"bytes"
	"testing"

	"multiterm/device"
	"multiterm/kernel/cpu"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
)

func newTestKeyboard(t *testing.T) (*Keyboard, *irq.Controller, *[]Event) {
	c := cpu.New()
	pic := irq.New(c, &gate.Table{})
	kb := New(pic, 3)

	var buf bytes.Buffer
	if err := kb.DriverInit(&buf); err != nil {
		t.Fatal(err)
	}

	var events []Event
	kb.SetHandler(func(ev Event) { events = append(events, ev) })
	c.EnableInterrupts()
	return kb, pic, &events
}

func typed(events []Event) string {
	var out []byte
	for _, ev := range events {
		if ev.Kind == EventChar {
			out = append(out, ev.Char)
		}
	}
	return string(out)
}

func TestDecodeCharacters(t *testing.T) {
	specs := []struct {
		scancodes []byte
		exp       string
	}{
		{[]byte{0x23, 0xa3, 0x17, 0x97}, "hi"},
		{[]byte{scanLeftShift, 0x23, 0xa3, scanLeftShift | breakBit, 0x17}, "Hi"},
		{[]byte{scanCapsLock, 0x23, 0x02, scanCapsLock, 0x23}, "H1h"},
		{[]byte{scanCapsLock, scanRightShift, 0x23, 0x02, scanRightShift | breakBit, scanCapsLock}, "h!"},
		{[]byte{0x28, scanLeftShift, 0x28, scanLeftShift | breakBit}, "'\""},
		{[]byte{scanTab, scanSpace, scanEnter, scanBackspace}, "  \n\b"},
		{[]byte{scanEscape, scanF1, 0x45}, ""},
		{[]byte{scanCtrl, 0x23, scanCtrl | breakBit, 0x23}, "h"},
	}

	for specIndex, spec := range specs {
		kb, pic, events := newTestKeyboard(t)
		kb.Inject(spec.scancodes...)

		for pic.Service() > 0 {
		}

		if got := typed(*events); got != spec.exp {
			t.Errorf("[spec %d] expected to decode %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestDecodeCommands(t *testing.T) {
	kb, pic, events := newTestKeyboard(t)

	kb.Inject(EncodeSwitch(2)...)
	kb.Inject(EncodeClear()...)
	kb.Inject(EncodeSwitch(0)...)

	// Alt+F4 does not map to a terminal.
	kb.Inject(EncodeSwitch(3)...)

	for pic.Service() > 0 {
	}

	exp := []Event{
		{Kind: EventSwitch, Terminal: 2},
		{Kind: EventClear},
		{Kind: EventSwitch, Terminal: 0},
	}

	if len(*events) != len(exp) {
		t.Fatalf("expected events %v; got %v", exp, *events)
	}
	for i, ev := range *events {
		if ev != exp[i] {
			t.Errorf("expected event %d to be %v; got %v", i, exp[i], ev)
		}
	}

	if got := pic.Delivered(irq.KeyboardLine); got != 16 {
		t.Fatalf("expected one interrupt per scancode (16); got %d", got)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	kb, pic, events := newTestKeyboard(t)

	input := "ls -l | grep \"Foo\" ~/x+y=1;\n"
	for i := 0; i < len(input); i++ {
		sc := Encode(input[i])
		if sc == nil {
			t.Fatalf("expected %q to be encodable", input[i])
		}
		kb.Inject(sc...)
		for pic.Service() > 0 {
		}
	}

	if got := typed(*events); got != input {
		t.Fatalf("expected to decode %q; got %q", input, got)
	}

	for _, ch := range []byte{0, 0x1b, 0xff} {
		if sc := Encode(ch); sc != nil {
			t.Errorf("expected %#x not to be encodable; got %v", ch, sc)
		}
	}

	if sc := Encode(0x7f); len(sc) != 2 || sc[0] != scanBackspace {
		t.Errorf("expected DEL to encode as backspace; got %v", sc)
	}
}

func TestBufferOverflow(t *testing.T) {
	kb, pic, events := newTestKeyboard(t)

	burst := make([]byte, 0, 2*bufferSize)
	for len(burst) < 2*bufferSize {
		burst = append(burst, 0x1e)
	}
	kb.Inject(burst...)

	for pic.Service() > 0 {
	}

	if got := len(*events); got != bufferSize {
		t.Fatalf("expected %d decoded keys; got %d", bufferSize, got)
	}

	// A spurious interrupt with an empty buffer is acknowledged.
	pic.Raise(irq.KeyboardLine)
	pic.Service()
	kb.Inject(0x1e)
	pic.Service()
	if got := len(*events); got != bufferSize+1 {
		t.Fatalf("expected keyboard to keep working after a spurious interrupt; got %d events", got)
	}
}

func TestKeyboardProbe(t *testing.T) {
	if drv := probeForKeyboard(&device.Hardware{}); drv != nil {
		t.Fatal("expected probe without an interrupt controller to return no driver")
	}

	c := cpu.New()
	hw := &device.Hardware{PIC: irq.New(c, &gate.Table{}), Terminals: 3}
	drv := probeForKeyboard(hw)
	if drv == nil {
		t.Fatal("expected probeForKeyboard to return a driver")
	}

	if drv.DriverName() == "" {
		t.Fatal("DriverName() returned an empty string")
	}
	if major, minor, patch := drv.DriverVersion(); major+minor+patch == 0 {
		t.Fatal("DriverVersion() returned an invalid version number")
	}
}
