// Package cpu models the single processor the kernel runs on: its interrupt
// flag, the task state segment that holds the ring-0 stack pointer and its
// power state.
//
// Every process executes on its own goroutine but only one goroutine holds the
// processor at a time. A goroutine gives the processor away by resuming a
// saved Context (or by starting a new process) as its very last action and
// then parks on its own Continuation or exits.
package cpu

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// KernelDataSelector is the segment selector loaded into TSS.SS0.
const KernelDataSelector = 0x18

// TaskState holds the fields of the task state segment the kernel uses when
// a privilege transition lands in ring 0.
type TaskState struct {
	SS0  uint16
	ESP0 uint32
}

// CPU is the simulated processor.
type CPU struct {
	interruptFlag uint32
	tss           TaskState

	off     chan struct{}
	offOnce sync.Once
}

var bootCPU atomic.Value

// New creates a processor with interrupts disabled and registers it as the
// boot processor targeted by Halt.
func New() *CPU {
	c := &CPU{
		tss: TaskState{SS0: KernelDataSelector},
		off: make(chan struct{}),
	}
	bootCPU.Store(c)
	return c
}

// EnableInterrupts sets the interrupt flag.
func (c *CPU) EnableInterrupts() {
	atomic.StoreUint32(&c.interruptFlag, 1)
}

// DisableInterrupts clears the interrupt flag.
func (c *CPU) DisableInterrupts() {
	atomic.StoreUint32(&c.interruptFlag, 0)
}

// InterruptsEnabled returns the state of the interrupt flag.
func (c *CPU) InterruptsEnabled() bool {
	return atomic.LoadUint32(&c.interruptFlag) == 1
}

// SaveFlags disables interrupts and returns the previous interrupt flag so
// that it can be passed to RestoreFlags.
func (c *CPU) SaveFlags() bool {
	return atomic.SwapUint32(&c.interruptFlag, 0) == 1
}

// RestoreFlags restores an interrupt flag returned by SaveFlags.
func (c *CPU) RestoreFlags(enabled bool) {
	if enabled {
		c.EnableInterrupts()
		return
	}
	c.DisableInterrupts()
}

// TSS returns the processor's task state segment.
func (c *CPU) TSS() *TaskState {
	return &c.tss
}

// PowerOff stops the processor. Goroutines parked on a Continuation exit and
// Off is closed. Calling PowerOff more than once has no effect.
func (c *CPU) PowerOff() {
	c.offOnce.Do(func() { close(c.off) })
}

// Off returns a channel that is closed when the processor is powered off.
func (c *CPU) Off() <-chan struct{} {
	return c.off
}

// Park suspends the calling goroutine until k is resumed and returns the value
// passed to Resume. If the processor is powered off while parked, the calling
// goroutine exits.
func (c *CPU) Park(k Continuation) uint32 {
	select {
	case v := <-k:
		return v
	case <-c.off:
		runtime.Goexit()
	}
	return 0
}

// Halt powers off the boot processor and stops the calling goroutine. It is
// the last thing an unrecoverable kernel error does.
func Halt() {
	if c, ok := bootCPU.Load().(*CPU); ok {
		c.PowerOff()
	}
	runtime.Goexit()
}
