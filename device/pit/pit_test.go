package pit

import (
	"bytes"
	"testing"
	"time"

	"multiterm/device"
	"multiterm/kernel/cpu"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
)

func TestTick(t *testing.T) {
	pic := irq.New(cpu.New(), &gate.Table{})
	p := New(pic, 0)

	p.Tick()
	if !pic.Pending(irq.TimerLine) {
		t.Fatal("expected Tick to raise the timer line")
	}
}

func TestStart(t *testing.T) {
	c := cpu.New()
	pic := irq.New(c, &gate.Table{})

	New(pic, 0).Start(c.Off())
	time.Sleep(5 * time.Millisecond)
	if pic.Pending(irq.TimerLine) {
		t.Fatal("expected a timer without a frequency not to tick")
	}

	New(pic, 1000).Start(c.Off())
	defer c.PowerOff()

	deadline := time.After(time.Second)
	for !pic.Pending(irq.TimerLine) {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a timer tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDriverInit(t *testing.T) {
	specs := []struct {
		hz  int
		exp string
	}{
		{0, "manual tick mode\n"},
		{100, "channel 0 at 100 Hz\n"},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		drv := probeForPIT(&device.Hardware{PIC: irq.New(cpu.New(), &gate.Table{}), TimerHz: spec.hz})
		if err := drv.DriverInit(&buf); err != nil {
			t.Fatal(err)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.exp, got)
		}

		if got := drv.(*PIT).Frequency(); got != spec.hz {
			t.Errorf("[spec %d] expected frequency %d; got %d", specIndex, spec.hz, got)
		}
	}

	if drv := probeForPIT(&device.Hardware{}); drv != nil {
		t.Fatal("expected probe without an interrupt controller to return no driver")
	}
}
