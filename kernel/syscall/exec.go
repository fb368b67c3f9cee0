package syscall

import (
	"encoding/binary"
	"runtime"

	"github.com/hashicorp/go-hclog"

	"multiterm/abi"
	"multiterm/kernel"
	"multiterm/kernel/fs"
	"multiterm/kernel/gate"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/proc"
)

// execute runs name as a child of p and blocks p until the child halts. It
// returns the status the child halted with or a negative error status if the
// child could not be started.
func (d *Dispatcher) execute(p *proc.Process, name, args string) int32 {
	prev := d.cpu.SaveFlags()
	k := p.SyscallCtx.Save(proc.KernelStackTop(p.ID), proc.KernelStackTop(p.ID))

	launch, err := d.spawn(p.Terminal, p, name, args)
	if err != nil {
		p.SyscallCtx.Clear()
		d.cpu.RestoreFlags(prev)
		d.log.Debug("execute failed", "pid", int(p.ID), "name", name, "err", err)
		return Errno(err)
	}

	launch()
	return int32(d.cpu.Park(k))
}

// LaunchRoot prepares a fresh root shell for terminal. The returned function
// starts it and must be the last action of the caller before it gives up the
// CPU.
func (d *Dispatcher) LaunchRoot(terminal int) (func(), *kernel.Error) {
	return d.spawn(terminal, nil, RootProgram, "")
}

// spawn creates a process running name on terminal as the child of parent
// (or as the terminal's root if parent is nil), loads its image into its
// program frame and makes it the current process. On success the program
// slot maps the new process and the returned function starts it; until then
// the caller still owns the CPU. On failure the caller's mapping is left
// intact.
func (d *Dispatcher) spawn(terminal int, parent *proc.Process, name, args string) (func(), *kernel.Error) {
	dentry, err := d.fs.Lookup(name)
	if err != nil {
		return nil, ErrNotFound
	}
	if dentry.Type != fs.TypeRegular {
		return nil, ErrNotExecutable
	}

	var header [abi.HeaderSize]byte
	n, err := d.fs.ReadData(dentry.Inode, 0, header[:])
	if err != nil || !abi.IsExecutable(header[:n]) {
		return nil, ErrNotExecutable
	}

	p, err := d.procs.Allocate(name, args, terminal)
	switch err {
	case nil:
	case proc.ErrBusy:
		return nil, ErrBusy
	default:
		return nil, ErrBadArgument
	}

	prevFrame, mapped := d.as.ProgramFrame()
	d.as.MapProgram(proc.ProgramFrame(p.ID))

	entry, err := d.load(dentry.Inode)
	if err != nil {
		d.procs.Free(p.ID)
		if mapped {
			d.as.MapProgram(prevFrame)
		}
		return nil, err
	}

	// Unknown entry points fault with an invalid opcode once the process
	// starts.
	code, ok := d.text.Lookup(entry)
	if !ok {
		code = nil
	}

	d.cpu.TSS().ESP0 = proc.KernelStackTop(p.ID)
	if parent != nil {
		parent.Child, p.Parent = p.ID, parent.ID
	} else {
		d.term.SetRoot(terminal, p.ID)
	}
	d.procs.SetCurrent(p.ID)

	d.log.Info("execute", "pid", int(p.ID), "name", name, "terminal", terminal, "parent", int(p.Parent), "entry", hclog.Fmt("0x%x", entry))
	return func() { go d.run(p, code) }, nil
}

// load copies the image stored in inode to the load address of the program
// page and returns its entry point. The copy never extends past the end of
// the program page.
func (d *Dispatcher) load(inode uint32) (uint32, *kernel.Error) {
	length, err := d.fs.Length(inode)
	if err != nil {
		return 0, ErrNotExecutable
	}

	limit := abi.UserLimit - abi.LoadAddr
	if abi.MaxImageSize < limit {
		limit = abi.MaxImageSize
	}
	if length < limit {
		limit = length
	}

	for off := uint32(0); off < limit; {
		chunk := d.loadBuf[:]
		if rem := limit - off; rem < uint32(len(chunk)) {
			chunk = chunk[:rem]
		}

		n, err := d.fs.ReadData(inode, off, chunk)
		if err != nil {
			return 0, ErrNotExecutable
		}
		if n == 0 {
			break
		}

		if err = d.as.CopyOut(abi.LoadAddr+off, chunk[:n], 0); err != nil {
			return 0, ErrNotExecutable
		}
		off += uint32(n)
	}

	var entry [4]byte
	if err := d.as.CopyIn(abi.LoadAddr+abi.EntryOffset, entry[:], 0); err != nil {
		return 0, ErrNotExecutable
	}
	return binary.LittleEndian.Uint32(entry[:]), nil
}

// run is the body of a process goroutine. A return from the entry point is
// a voluntary halt with the returned status.
func (d *Dispatcher) run(p *proc.Process, code abi.Entry) {
	t := &userTrap{d: d, p: p}
	d.traps[p.ID] = t
	defer t.recoverFault()

	d.cpu.EnableInterrupts()
	if code == nil {
		t.raise(gate.InvalidOpcode, 0, 0)
	}

	status := code(t)
	t.Syscall(abi.SysHalt, uint32(status), 0, 0)
}

// halt tears down p and transfers the CPU to its parent, which receives
// status from its pending execute. A root process is replaced by a fresh
// shell on the same terminal. halt never returns.
func (d *Dispatcher) halt(p *proc.Process, status uint32) {
	d.cpu.DisableInterrupts()

	for fd := range p.Files {
		if f := &p.Files[fd]; f.Occupied {
			f.Ops.Close(p, f)
			f.Reset()
		}
	}

	if p.Vidmapped {
		d.as.UnmapVidmap(int(p.ID))
		p.Vidmapped = false
	}

	var (
		id       = p.ID
		name     = p.Name
		terminal = p.Terminal
		parent   = d.procs.Get(p.Parent)
	)
	if t := d.traps[id]; t != nil {
		t.exited = true
		d.traps[id] = nil
	}

	d.procs.Free(id)
	d.log.Info("halt", "pid", int(id), "name", name, "status", status)

	if parent == nil {
		launch, err := d.LaunchRoot(terminal)
		if err != nil {
			d.log.Error("unable to restart root shell", "terminal", terminal, "err", err)
			kfmt.Panic(err)
		}
		launch()
		runtime.Goexit()
	}

	parent.Child = proc.NoID
	d.as.MapProgram(proc.ProgramFrame(parent.ID))
	d.cpu.TSS().ESP0 = proc.KernelStackTop(parent.ID)
	d.procs.SetCurrent(parent.ID)

	d.cpu.EnableInterrupts()
	if !parent.SyscallCtx.Resume(status) {
		kfmt.Panic(errNoSavedContext)
	}
	runtime.Goexit()
}
