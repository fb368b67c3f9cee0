// Package hal probes the simulated machine for devices and initializes the
// drivers registered with the device package.
package hal

import (
	"bytes"
	"sort"

	"github.com/hashicorp/go-hclog"

	"multiterm/device"
	"multiterm/device/keyboard"
	"multiterm/device/pit"
	"multiterm/device/rtc"
	"multiterm/device/tty"
	"multiterm/device/video/console"
	"multiterm/kernel/kfmt"
)

// Devices contains the devices discovered by the HAL.
type Devices struct {
	Display  *console.VgaTextDisplay
	VTs      *tty.Bank
	Keyboard *keyboard.Keyboard
	PIT      *pit.PIT
	RTC      *rtc.RTC

	// Drivers tracks all initialized device drivers in probe order.
	Drivers []device.Driver
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware(hw *device.Hardware, log hclog.Logger) *Devices {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Stable(drivers)

	return probe(hw, drivers, log)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(hw *device.Hardware, driverInfoList device.DriverInfoList, log hclog.Logger) *Devices {
	var (
		devs   Devices
		strBuf bytes.Buffer
		w      = kfmt.PrefixWriter{Sink: kfmt.ConsoleWriter{}}
	)

	for _, info := range driverInfoList {
		drv := info.Probe(hw)
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Reset(strBuf.Bytes())

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			log.Warn("driver init failed", "driver", drv.DriverName(), "err", err)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		log.Debug("driver initialized", "driver", drv.DriverName())
		onDriverInit(&devs, drv)
		devs.Drivers = append(devs.Drivers, drv)
	}

	return &devs
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized. The first driver of each kind wins.
func onDriverInit(devs *Devices, drv device.Driver) {
	switch drvImpl := drv.(type) {
	case *console.VgaTextDisplay:
		if devs.Display == nil {
			devs.Display = drvImpl
		}
	case *tty.Bank:
		if devs.VTs == nil {
			devs.VTs = drvImpl
		}
	case *keyboard.Keyboard:
		if devs.Keyboard == nil {
			devs.Keyboard = drvImpl
		}
	case *pit.PIT:
		if devs.PIT == nil {
			devs.PIT = drvImpl
		}
	case *rtc.RTC:
		if devs.RTC == nil {
			devs.RTC = drvImpl
		}
	}
}
