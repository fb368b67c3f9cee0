// Package proc stores the process control records. The store is a fixed
// arena indexed by process id; the id also selects the physical frame that
// holds the program image and the kernel stack region used while the process
// is in the kernel.
//
// The store performs no locking. Its callers hold the CPU with interrupts
// disabled while they mutate records.
package proc

import (
	"multiterm/abi"
	"multiterm/kernel"
	"multiterm/kernel/cpu"
	"multiterm/kernel/mm"
)

// MaxProcesses is the number of process records.
const MaxProcesses = 6

// ID identifies a process record.
type ID int

// NoID marks an absent process reference.
const NoID ID = -1

var (
	// ErrBusy is returned by Allocate when every record is in use.
	ErrBusy = &kernel.Error{Module: "proc", Message: "no free process record"}

	// ErrArgsTooLong is returned when the argument string does not fit the
	// record's argument buffer.
	ErrArgsTooLong = &kernel.Error{Module: "proc", Message: "argument too long"}

	// ErrFilesFull is returned when the descriptor table has no free slot.
	ErrFilesFull = &kernel.Error{Module: "proc", Message: "descriptor table full"}

	// ErrBadDescriptor is returned for descriptors that are out of range or
	// not open.
	ErrBadDescriptor = &kernel.Error{Module: "proc", Message: "bad file descriptor"}
)

// KernelStackTop returns the initial ring-0 stack pointer of a process.
// Kernel stacks are 8K each and grow down from the end of the kernel page.
func KernelStackTop(id ID) uint32 {
	return uint32(mm.ProgramBase) - uint32(id)*uint32(mm.KernelStackSize) - 4
}

// ProgramFrame returns the physical address of the 4M frame that holds the
// program image of a process.
func ProgramFrame(id ID) uintptr {
	return (mm.LargeFrameFromAddress(mm.ProgramBase) + mm.LargeFrame(id)).Address()
}

// Process is a process control record.
type Process struct {
	ID       ID
	Parent   ID
	Child    ID
	Terminal int
	Name     string

	// SyscallCtx is saved when the process blocks in execute and resumed
	// by the halt of its child.
	SyscallCtx cpu.Context

	// SchedulerCtx is saved when the scheduler preempts the process.
	SchedulerCtx cpu.Context

	Files [abi.MaxFiles]Descriptor

	// Vidmapped is set once the process maps the display.
	Vidmapped bool

	args    [abi.MaxArgs]byte
	argLen  int
	hasArgs bool

	live bool
}

// Args returns the argument string the process was started with and false if
// it was started without one.
func (p *Process) Args() (string, bool) {
	return string(p.args[:p.argLen]), p.hasArgs
}

// Store is the process record arena.
type Store struct {
	procs   [MaxProcesses]Process
	current ID

	stdin, stdout FileOps
}

// NewStore returns an empty store. New records get stdin and stdout bound to
// descriptors 0 and 1.
func NewStore(stdin, stdout FileOps) *Store {
	s := &Store{current: NoID, stdin: stdin, stdout: stdout}
	for i := range s.procs {
		s.procs[i].ID = ID(i)
	}
	return s
}

// BindConsole sets the operations bound to descriptors 0 and 1 of records
// allocated from now on.
func (s *Store) BindConsole(stdin, stdout FileOps) {
	s.stdin, s.stdout = stdin, stdout
}

// Allocate claims the lowest free record for a process running name with the
// given argument string on terminal.
func (s *Store) Allocate(name, args string, terminal int) (*Process, *kernel.Error) {
	if len(args) >= abi.MaxArgs {
		return nil, ErrArgsTooLong
	}

	for i := range s.procs {
		p := &s.procs[i]
		if p.live {
			continue
		}

		*p = Process{
			ID:       ID(i),
			Parent:   NoID,
			Child:    NoID,
			Terminal: terminal,
			Name:     name,
			live:     true,
		}
		p.argLen = copy(p.args[:], args)
		p.hasArgs = args != ""
		p.Files[0].install(s.stdin, 0)
		p.Files[1].install(s.stdout, 0)
		return p, nil
	}

	return nil, ErrBusy
}

// Free releases a record. The id becomes immediately reusable.
func (s *Store) Free(id ID) {
	if p := s.Get(id); p != nil {
		p.live = false
		p.SyscallCtx.Clear()
		p.SchedulerCtx.Clear()
		for fd := range p.Files {
			p.Files[fd].Reset()
		}
	}
}

// Get returns the live record with the given id or nil.
func (s *Store) Get(id ID) *Process {
	if id < 0 || id >= MaxProcesses || !s.procs[id].live {
		return nil
	}
	return &s.procs[id]
}

// Current returns the process that owns the CPU or nil before the first
// process starts.
func (s *Store) Current() *Process {
	return s.Get(s.current)
}

// SetCurrent records the process that owns the CPU. It is only called when
// control is transferred to another process.
func (s *Store) SetCurrent(id ID) {
	s.current = id
}

// Foreground returns the deepest descendant of root, which is the process
// that runs when the scheduler picks root's terminal.
func (s *Store) Foreground(root ID) *Process {
	var last *Process
	s.Chain(root, func(p *Process) bool {
		last = p
		return true
	})
	return last
}

// Chain invokes fn for root and each of its descendants in order until fn
// returns false.
func (s *Store) Chain(root ID, fn func(*Process) bool) {
	for p, hops := s.Get(root), 0; p != nil && hops < MaxProcesses; p, hops = s.Get(p.Child), hops+1 {
		if !fn(p) {
			return
		}
	}
}

// Live returns the number of live records.
func (s *Store) Live() int {
	var count int
	for i := range s.procs {
		if s.procs[i].live {
			count++
		}
	}
	return count
}

// Info is a summary of a live process.
type Info struct {
	ID       ID
	Parent   ID
	Terminal int
	Name     string
}

// Snapshot returns a summary of every live process ordered by id.
func (s *Store) Snapshot() []Info {
	var list []Info
	for i := range s.procs {
		if p := &s.procs[i]; p.live {
			list = append(list, Info{ID: p.ID, Parent: p.Parent, Terminal: p.Terminal, Name: p.Name})
		}
	}
	return list
}
