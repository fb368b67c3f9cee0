package device

import (
	"io"

	"multiterm/kernel"
	"multiterm/kernel/cpu"
	"multiterm/kernel/irq"
	"multiterm/kernel/mm"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprint.
	DriverInit(io.Writer) *kernel.Error
}

// Hardware describes the machine that drivers are probed against.
type Hardware struct {
	CPU    *cpu.CPU
	PIC    *irq.Controller
	Memory *mm.Memory

	// Columns and Rows describe the text mode of the display adapter.
	Columns, Rows uint32

	// Terminals is the number of virtual terminals to create.
	Terminals int

	// TimerHz is the PIT frequency. A zero value leaves the timer
	// stopped so that it can only be ticked manually.
	TimerHz int

	// RTCHz is the RTC interrupt rate. Zero leaves the RTC stopped.
	RTCHz int
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func(*Hardware) Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

const (
	// DetectOrderEarly specifies that the driver's probe function should
	// be executed at the beginning of the HW detection phase. It is used
	// by the console device drivers.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderBeforeInput specifies that the driver's probe function
	// should be executed before probing for input devices and timers but
	// after any drivers with DetectOrderEarly. It is used by the TTY
	// drivers.
	DetectOrderBeforeInput = -127

	// DetectOrderInput specifies that the driver's probe function should
	// be executed together with the input devices and timers.
	DetectOrderInput = 0

	// DetectOrderLast specifies that the driver's probe function should
	// be executed at the end of the HW detection phase.
	DetectOrderLast = 127
)

// DriverInfo is a driver-defined struct that is passed to calls to RegisterDriver.
type DriverInfo struct {
	// Order specifies at which stage of the HW detection step should
	// the probe function be invoked.
	Order DetectOrder

	// Probe is a function that checks for the presence of a particular
	// piece of hardware and returns back a driver for it.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

var (
	// registeredDrivers tracks the drivers registered via a call to
	// RegisterDriver.
	registeredDrivers DriverInfoList
)

// RegisterDriver adds the supplied driver info object to the list of registered
// drivers. The list can be retrieved by a call to DriverList().
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns a copy of the registered drivers list.
func DriverList() DriverInfoList {
	list := make(DriverInfoList, len(registeredDrivers))
	copy(list, registeredDrivers)
	return list
}
