package console

import (
	"multiterm/device"
	"multiterm/kernel/mm"
)

// probeForVgaTextConsole checks for the presence of a vga text display.
func probeForVgaTextConsole(hw *device.Hardware) device.Driver {
	if hw.Memory == nil || hw.Columns == 0 || hw.Rows == 0 {
		return nil
	}

	return NewVgaTextDisplay(hw.Memory, hw.Columns, hw.Rows, mm.VideoMemory)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaTextConsole,
	})
}
