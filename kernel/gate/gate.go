// Package gate models the interrupt descriptor table: a fixed set of vectors,
// each of which may route to a handler that receives a register snapshot.
package gate

import (
	"io"

	"multiterm/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception,
// interrupt or syscall occurs.
type Registers struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32

	// Info contains the vector that was raised.
	Info uint32

	// ErrorCode is pushed by the CPU for some exceptions. For page faults
	// CR2 holds the faulting address.
	ErrorCode uint32
	CR2       uint32

	// The return frame used by IRET
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Fprintf(w, "ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Fprintf(w, "ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Fprintf(w, "EBP = %8x ERR = %8x CR2 = %8x\n", r.EBP, r.ErrorCode, r.CR2)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "EIP = %8x CS  = %8x\n", r.EIP, r.CS)
	kfmt.Fprintf(w, "ESP = %8x SS  = %8x\n", r.ESP, r.SS)
	kfmt.Fprintf(w, "EFL = %8x\n", r.EFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

// Exception vectors. Vectors below NumExceptions are reserved for the CPU.
const (
	DivideByZero       = InterruptNumber(0x00)
	Debug              = InterruptNumber(0x01)
	NMI                = InterruptNumber(0x02)
	Breakpoint         = InterruptNumber(0x03)
	Overflow           = InterruptNumber(0x04)
	BoundRangeExceeded = InterruptNumber(0x05)

	// InvalidOpcode is raised when execution reaches an address that holds
	// no code.
	InvalidOpcode      = InterruptNumber(0x06)
	DeviceNotAvailable = InterruptNumber(0x07)
	DoubleFault        = InterruptNumber(0x08)
	InvalidTSS         = InterruptNumber(0x0a)
	SegmentNotPresent  = InterruptNumber(0x0b)
	StackSegmentFault  = InterruptNumber(0x0c)

	// GPFException is raised for protection violations that are not page
	// faults.
	GPFException = InterruptNumber(0x0d)

	// PageFaultException is raised when a page directory or page table
	// entry is not present or when a privilege or RW check fails.
	PageFaultException         = InterruptNumber(0x0e)
	FloatingPointException     = InterruptNumber(0x10)
	AlignmentCheck             = InterruptNumber(0x11)
	MachineCheck               = InterruptNumber(0x12)
	SIMDFloatingPointException = InterruptNumber(0x13)

	NumExceptions = 0x20
)

// IRQBase is the vector that the interrupt controller maps IRQ line 0 to.
const IRQBase = InterruptNumber(0x20)

// SyscallVector is the vector user programs trap through.
const SyscallVector = InterruptNumber(0x80)

// Page fault error code bits.
const (
	PFProtection = 1 << 0
	PFWrite      = 1 << 1
	PFUser       = 1 << 2
)

var exceptionNames = [NumExceptions]string{
	"DIVIDE BY ZERO",
	"RESERVED FOR INTEL USE",
	"NON-MASKABLE INTERRUPT (NMI)",
	"KGDB BREAKPOINT",
	"OVERFLOW",
	"BOUND RANGE EXCEEDED",
	"INVALID OPCODE",
	"DEVICE NOT AVAILABLE (NO MATH COPROCESSOR)",
	"DOUBLE FAULT",
	"COPROCESSOR SEGMENT OVERRUN",
	"INVALID TSS",
	"SEGMENT NOT PRESENT",
	"STACK-SEGMENT FAULT",
	"GENERAL PROTECTION FAULT",
	"PAGE FAULT",
	"INTEL RESERVED",
	"x87 FPU FLOATING-POINT ERROR (MATH FAULT)",
	"ALIGNMENT CHECK",
	"MACHINE CHECK",
	"SIMD FLOATING-POINT EXCEPTION",
}

// IsException returns true if n is one of the vectors reserved for CPU
// exceptions.
func (n InterruptNumber) IsException() bool {
	return n < NumExceptions
}

// ExceptionName returns the description of exception vector n.
func (n InterruptNumber) ExceptionName() string {
	if !n.IsException() {
		return ""
	}
	if name := exceptionNames[n]; name != "" {
		return name
	}
	return "INTEL RESERVED"
}

// Handler services a vector.
type Handler func(*Registers)

// Table routes vectors to handlers.
type Table struct {
	handlers [256]Handler
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. Passing a nil handler marks the vector
// as not present.
func (t *Table) HandleInterrupt(intNumber InterruptNumber, handler Handler) {
	t.handlers[intNumber] = handler
}

// Present returns true if a handler is installed for intNumber.
func (t *Table) Present(intNumber InterruptNumber) bool {
	return t.handlers[intNumber] != nil
}

// Dispatch invokes the handler for intNumber with regs. It returns false if
// no handler is installed.
func (t *Table) Dispatch(intNumber InterruptNumber, regs *Registers) bool {
	h := t.handlers[intNumber]
	if h == nil {
		return false
	}

	regs.Info = uint32(intNumber)
	h(regs)
	return true
}
