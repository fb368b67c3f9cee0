// Package syscall implements the kernel side of the user/kernel boundary:
// the system call table reached through vector 0x80, process creation and
// teardown, the exception handlers that terminate faulting processes and the
// file operations behind each kind of descriptor.
package syscall

import (
	"github.com/hashicorp/go-hclog"

	"multiterm/abi"
	"multiterm/device/rtc"
	"multiterm/kernel"
	"multiterm/kernel/cpu"
	"multiterm/kernel/fs"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/mm/vmm"
	"multiterm/kernel/proc"
	"multiterm/kernel/term"
)

// RootProgram is the program started as the root of every terminal.
const RootProgram = "shell"

var (
	// ErrBusy is returned when no process record or descriptor is free.
	ErrBusy = &kernel.Error{Module: "syscall", Message: "resource busy"}

	// ErrNotFound is returned when a file name does not resolve.
	ErrNotFound = &kernel.Error{Module: "syscall", Message: "no such file"}

	// ErrNotExecutable is returned when execute is given a file that is
	// not an executable image.
	ErrNotExecutable = &kernel.Error{Module: "syscall", Message: "not an executable"}

	// ErrBadDescriptor is returned for descriptors that are not open or
	// do not support the requested operation.
	ErrBadDescriptor = &kernel.Error{Module: "syscall", Message: "bad file descriptor"}

	// ErrBadArgument is returned for malformed arguments and user buffers
	// outside the program page.
	ErrBadArgument = &kernel.Error{Module: "syscall", Message: "invalid argument"}

	errNoProcess       = &kernel.Error{Module: "syscall", Message: "system call without a current process"}
	errKernelException = &kernel.Error{Module: "syscall", Message: "exception in kernel mode"}
	errUnhandledFault  = &kernel.Error{Module: "syscall", Message: "fault returned to the faulting process"}
	errNoSavedContext  = &kernel.Error{Module: "syscall", Message: "parent has no saved context"}
)

// Errno maps a kernel error to the status returned to user space.
func Errno(err *kernel.Error) int32 {
	switch err {
	case nil:
		return 0
	case ErrBusy, proc.ErrBusy, proc.ErrFilesFull:
		return int32(abi.EBUSY)
	case ErrNotFound, fs.ErrNotFound:
		return int32(abi.ENOENT)
	case ErrNotExecutable:
		return int32(abi.ENOEXEC)
	case ErrBadDescriptor, proc.ErrBadDescriptor:
		return int32(abi.EBADF)
	default:
		return int32(abi.EINVAL)
	}
}

// Config holds the collaborators of the dispatcher.
type Config struct {
	CPU          *cpu.CPU
	IDT          *gate.Table
	PIC          *irq.Controller
	AddressSpace *vmm.AddressSpace
	FS           *fs.FS
	Procs        *proc.Store
	Term         *term.Coordinator
	RTC          *rtc.RTC
	Text         abi.Text
	Log          hclog.Logger
}

// Dispatcher services system calls and CPU exceptions.
type Dispatcher struct {
	cpu   *cpu.CPU
	idt   *gate.Table
	pic   *irq.Controller
	as    *vmm.AddressSpace
	fs    *fs.FS
	procs *proc.Store
	term  *term.Coordinator
	rtc   *rtc.RTC
	text  abi.Text
	log   hclog.Logger

	// fileOps is indexed by fs.FileType.
	fileOps [3]proc.FileOps

	// traps holds the trap of each running process.
	traps [proc.MaxProcesses]*userTrap

	// loadBuf stages image blocks while execute copies them into the
	// program page.
	loadBuf [fs.BlockSize]byte
}

// New returns a dispatcher and binds the console operations to the
// standard descriptors of every process allocated from cfg.Procs.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		cpu:   cfg.CPU,
		idt:   cfg.IDT,
		pic:   cfg.PIC,
		as:    cfg.AddressSpace,
		fs:    cfg.FS,
		procs: cfg.Procs,
		term:  cfg.Term,
		rtc:   cfg.RTC,
		text:  cfg.Text,
		log:   cfg.Log,
	}

	if d.log == nil {
		d.log = hclog.NewNullLogger()
	}

	d.fileOps[fs.TypeRTC] = &rtcFile{d: d}
	d.fileOps[fs.TypeDirectory] = &dirFile{d: d}
	d.fileOps[fs.TypeRegular] = &regularFile{d: d}
	d.procs.BindConsole(&stdinFile{d: d}, &stdoutFile{d: d})
	return d
}

// Install registers the system call gate and a handler for every CPU
// exception.
func (d *Dispatcher) Install() {
	d.idt.HandleInterrupt(gate.SyscallVector, d.handleSyscall)
	for n := gate.InterruptNumber(0); n < gate.NumExceptions; n++ {
		d.idt.HandleInterrupt(n, d.handleException)
	}
}

// Args holds the system call arguments passed in EBX, ECX and EDX.
type Args struct {
	EBX, ECX, EDX uint32
}

type handlerFn func(d *Dispatcher, p *proc.Process, args Args) int32

var handlers = [...]handlerFn{
	abi.SysHalt:       sysHalt,
	abi.SysExecute:    sysExecute,
	abi.SysRead:       sysRead,
	abi.SysWrite:      sysWrite,
	abi.SysOpen:       sysOpen,
	abi.SysClose:      sysClose,
	abi.SysGetArgs:    sysGetArgs,
	abi.SysVidmap:     sysVidmap,
	abi.SysSetHandler: sysSetHandler,
	abi.SysSigReturn:  sysSigReturn,
}

func (d *Dispatcher) handleSyscall(regs *gate.Registers) {
	p := d.procs.Current()
	if p == nil {
		kfmt.Panic(errNoProcess)
	}

	var fn handlerFn
	if regs.EAX < uint32(len(handlers)) {
		fn = handlers[regs.EAX]
	}

	ret := Errno(ErrBadArgument)
	if fn != nil {
		ret = fn(d, p, Args{EBX: regs.EBX, ECX: regs.ECX, EDX: regs.EDX})
	} else {
		d.log.Debug("unknown system call", "pid", int(p.ID), "num", regs.EAX)
	}

	regs.EAX = uint32(ret)
}

func sysHalt(d *Dispatcher, p *proc.Process, args Args) int32 {
	d.halt(p, args.EBX&0xff)
	return 0
}

func sysExecute(d *Dispatcher, p *proc.Process, args Args) int32 {
	cmd, err := d.readString(args.EBX, maxCommandLen)
	if err != nil {
		return Errno(ErrBadArgument)
	}

	name, cmdArgs, err := parseCommand(cmd)
	if err != nil {
		return Errno(err)
	}

	return d.execute(p, name, cmdArgs)
}

func sysRead(d *Dispatcher, p *proc.Process, args Args) int32 {
	f, err := p.File(int32(args.EBX))
	if err != nil {
		return Errno(ErrBadDescriptor)
	}

	n := int32(args.EDX)
	if n < 0 || !inUserPage(args.ECX, uint32(n)) {
		return Errno(ErrBadArgument)
	}

	buf := make([]byte, n)
	read, err := f.Ops.Read(p, f, buf)
	if err != nil {
		return Errno(err)
	}

	if err = d.copyOut(args.ECX, buf[:read]); err != nil {
		return Errno(err)
	}
	return int32(read)
}

func sysWrite(d *Dispatcher, p *proc.Process, args Args) int32 {
	f, err := p.File(int32(args.EBX))
	if err != nil {
		return Errno(ErrBadDescriptor)
	}

	n := int32(args.EDX)
	if n < 0 || !inUserPage(args.ECX, uint32(n)) {
		return Errno(ErrBadArgument)
	}

	buf := make([]byte, n)
	if err = d.copyIn(args.ECX, buf); err != nil {
		return Errno(err)
	}

	written, err := f.Ops.Write(p, f, buf)
	if err != nil {
		return Errno(err)
	}
	return int32(written)
}

func sysOpen(d *Dispatcher, p *proc.Process, args Args) int32 {
	name, err := d.readString(args.EBX, abi.FileNameLen+1)
	switch {
	case err == errStringTooLong:
		return Errno(ErrNotFound)
	case err != nil:
		return Errno(err)
	}

	dentry, err := d.fs.Lookup(name)
	if err != nil || int(dentry.Type) >= len(d.fileOps) {
		return Errno(ErrNotFound)
	}

	ops := d.fileOps[dentry.Type]
	fd, err := p.Install(ops, dentry.Inode)
	if err != nil {
		return Errno(ErrBusy)
	}

	if err = ops.Open(p, &p.Files[fd]); err != nil {
		p.Files[fd].Reset()
		return Errno(err)
	}

	d.log.Trace("open", "pid", int(p.ID), "name", name, "type", dentry.Type.String(), "fd", fd)
	return int32(fd)
}

func sysClose(d *Dispatcher, p *proc.Process, args Args) int32 {
	fd := int32(args.EBX)
	if fd < 2 {
		return Errno(ErrBadDescriptor)
	}

	f, err := p.File(fd)
	if err != nil {
		return Errno(ErrBadDescriptor)
	}

	err = f.Ops.Close(p, f)
	f.Reset()
	return Errno(err)
}

func sysGetArgs(d *Dispatcher, p *proc.Process, args Args) int32 {
	arg, ok := p.Args()
	if !ok || int32(args.ECX) < int32(len(arg)+1) {
		return Errno(ErrBadArgument)
	}

	buf := append([]byte(arg), 0)
	return Errno(d.copyOut(args.EBX, buf))
}

func sysVidmap(d *Dispatcher, p *proc.Process, args Args) int32 {
	out := args.EBX
	if !inUserPage(out, 4) {
		return Errno(ErrBadArgument)
	}

	virt, err := d.as.MapVidmap(int(p.ID), d.term.DisplayPage(p.Terminal))
	if err != nil {
		return Errno(ErrBadArgument)
	}
	p.Vidmapped = true

	buf := []byte{byte(virt), byte(virt >> 8), byte(virt >> 16), byte(virt >> 24)}
	if err = d.copyOut(out, buf); err != nil {
		return Errno(err)
	}

	d.log.Debug("vidmap", "pid", int(p.ID), "addr", hclog.Fmt("0x%x", virt))
	return 0
}

// Signals are not supported.
func sysSetHandler(d *Dispatcher, p *proc.Process, args Args) int32 {
	return Errno(ErrBadArgument)
}

func sysSigReturn(d *Dispatcher, p *proc.Process, args Args) int32 {
	return Errno(ErrBadArgument)
}
