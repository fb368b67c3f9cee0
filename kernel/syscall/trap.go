package syscall

import (
	"runtime"
	"strings"

	"multiterm/abi"
	"multiterm/kernel/gate"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/mm/vmm"
	"multiterm/kernel/proc"
)

const (
	userCS    = 0x23
	userSS    = 0x2b
	userFlags = 0x202
)

// userTrap is the abi.Trap handed to the code of a process. Each call is an
// instruction boundary at which pending interrupts are delivered.
type userTrap struct {
	d *Dispatcher
	p *proc.Process

	// kernelMode is set while the process executes a system call.
	kernelMode bool

	// exited is set by halt before the CPU moves on. Deferred user code
	// that runs while the goroutine unwinds must not reach the kernel.
	exited bool
}

func (t *userTrap) alive() bool {
	if t.exited {
		return false
	}

	select {
	case <-t.d.cpu.Off():
		return false
	default:
		return true
	}
}

// Syscall implements abi.Trap.
func (t *userTrap) Syscall(num, ebx, ecx, edx uint32) int32 {
	if !t.alive() {
		return int32(abi.EINVAL)
	}
	t.d.pic.Service()

	regs := gate.Registers{
		EAX:    num,
		EBX:    ebx,
		ECX:    ecx,
		EDX:    edx,
		CS:     userCS,
		SS:     userSS,
		ESP:    abi.UserStackTop,
		EFlags: userFlags,
	}

	prev := t.d.cpu.SaveFlags()
	t.kernelMode = true
	t.d.idt.Dispatch(gate.SyscallVector, &regs)
	t.kernelMode = false
	t.d.cpu.RestoreFlags(prev)

	return int32(regs.EAX)
}

// Load implements abi.Trap.
func (t *userTrap) Load(vaddr uint32, p []byte) {
	if !t.alive() {
		return
	}
	if err := t.d.as.CopyIn(vaddr, p, vmm.AccessUser); err != nil {
		t.pageFault()
	}
}

// Store implements abi.Trap.
func (t *userTrap) Store(vaddr uint32, p []byte) {
	if !t.alive() {
		return
	}
	if err := t.d.as.CopyOut(vaddr, p, vmm.AccessUser); err != nil {
		t.pageFault()
	}
}

// Step implements abi.Trap.
func (t *userTrap) Step() {
	if !t.alive() {
		return
	}
	t.d.pic.Service()
}

func (t *userTrap) pageFault() {
	mmu := t.d.as.MMU()
	t.raise(gate.PageFaultException, mmu.FaultCode(), uint32(mmu.ReadCR2()))
}

// raise delivers a CPU exception for the process. The exception handlers
// terminate the process so raise never returns.
func (t *userTrap) raise(n gate.InterruptNumber, code, cr2 uint32) {
	if t.kernelMode {
		kfmt.Panic(errKernelException)
	}

	regs := gate.Registers{
		ErrorCode: code,
		CR2:       cr2,
		CS:        userCS,
		SS:        userSS,
		EFlags:    userFlags,
	}

	t.d.cpu.DisableInterrupts()
	t.d.idt.Dispatch(n, &regs)
	kfmt.Panic(errUnhandledFault)
}

// recoverFault turns a Go panic in user code into a CPU exception. Panics
// raised while the process is in the kernel are kernel panics.
func (t *userTrap) recoverFault() {
	r := recover()
	if r == nil || !t.alive() {
		return
	}

	if t.kernelMode {
		t.d.log.Error("panic in system call", "pid", int(t.p.ID), "name", t.p.Name, "panic", r)
		kfmt.Panic(r)
	}

	t.raise(exceptionFor(r), 0, 0)
}

func exceptionFor(r interface{}) gate.InterruptNumber {
	if err, ok := r.(runtime.Error); ok && strings.HasSuffix(err.Error(), "divide by zero") {
		return gate.DivideByZero
	}
	return gate.GPFException
}

// handleException terminates the current process with ExceptionStatus. An
// exception without a current process is fatal.
func (d *Dispatcher) handleException(regs *gate.Registers) {
	n := gate.InterruptNumber(regs.Info)

	p := d.procs.Current()
	if p == nil {
		kfmt.Printf("\nEXCEPTION 0x%x: %s\n", uint8(n), n.ExceptionName())
		regs.DumpTo(kfmt.ConsoleWriter{})
		kfmt.Panic(errKernelException)
	}

	kfmt.Fprintf(d.term.VT(p.Terminal), "EXCEPTION 0x%x: %s\n", uint8(n), n.ExceptionName())
	d.log.Warn("process terminated by exception",
		"pid", int(p.ID),
		"name", p.Name,
		"vector", uint8(n),
		"error_code", regs.ErrorCode,
		"cr2", regs.CR2,
	)

	d.halt(p, abi.ExceptionStatus)
}
