// Package sched implements the round robin scheduler that time-slices the
// terminals. On every timer interrupt the CPU moves to the next terminal in
// order; within a terminal the process that runs is the deepest descendant
// of the terminal's root, since every other process of the chain is blocked
// waiting for its child.
package sched

import (
	"github.com/hashicorp/go-hclog"

	"multiterm/kernel"
	"multiterm/kernel/cpu"
	"multiterm/kernel/gate"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/mm/vmm"
	"multiterm/kernel/proc"
	"multiterm/kernel/term"
)

var (
	errNoForeground = &kernel.Error{Module: "sched", Message: "running terminal has no process"}
	errNoContext    = &kernel.Error{Module: "sched", Message: "process has no saved scheduler context"}
)

// Launcher starts the root process of a terminal. The returned function
// starts the prepared process and must be the last action of the caller
// before it gives up the CPU.
type Launcher interface {
	LaunchRoot(terminal int) (func(), *kernel.Error)
}

type slotState uint8

const (
	unassigned slotState = iota
	running
)

// Config holds the collaborators of the scheduler.
type Config struct {
	CPU          *cpu.CPU
	PIC          *irq.Controller
	AddressSpace *vmm.AddressSpace
	Procs        *proc.Store
	Term         *term.Coordinator
	Launcher     Launcher
	Log          hclog.Logger
}

// Scheduler rotates the CPU between the terminals.
type Scheduler struct {
	cpu      *cpu.CPU
	pic      *irq.Controller
	as       *vmm.AddressSpace
	procs    *proc.Store
	term     *term.Coordinator
	launcher Launcher
	log      hclog.Logger

	// slot is the position of the scheduler in the terminal ring.
	slot  int
	state [term.NumTerminals]slotState

	switches uint64
}

// New returns a scheduler positioned before terminal 0.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		cpu:      cfg.CPU,
		pic:      cfg.PIC,
		as:       cfg.AddressSpace,
		procs:    cfg.Procs,
		term:     cfg.Term,
		launcher: cfg.Launcher,
		log:      cfg.Log,
		slot:     -1,
	}

	if s.log == nil {
		s.log = hclog.NewNullLogger()
	}
	return s
}

// Install hooks the scheduler to the timer interrupt.
func (s *Scheduler) Install() {
	s.pic.HandleIRQ(irq.TimerLine, s.handleIRQ)
}

func (s *Scheduler) handleIRQ(_ *gate.Registers) {
	s.Tick()
}

// Started returns true once the root process of terminal has been started.
func (s *Scheduler) Started(terminal int) bool {
	return s.state[terminal] == running
}

// Switches returns the number of transfers between processes performed by
// the scheduler.
func (s *Scheduler) Switches() uint64 {
	return s.switches
}

// Tick moves the CPU to the next terminal. It is called with interrupts
// disabled, either from the timer interrupt or once at boot before any
// process exists. The calling process resumes from Tick when the scheduler
// comes back to its terminal.
func (s *Scheduler) Tick() {
	next := (s.slot + 1) % term.NumTerminals
	cur := s.procs.Current()

	if s.state[next] == unassigned {
		s.start(cur, next)
		return
	}

	s.resume(cur, next)
}

// start launches the root shell of a terminal that has never run.
func (s *Scheduler) start(cur *proc.Process, next int) {
	var (
		k    cpu.Continuation
		prev = s.term.Scheduled()
	)

	if cur != nil {
		k = cur.SchedulerCtx.Save(proc.KernelStackTop(cur.ID), proc.KernelStackTop(cur.ID))
	}

	s.slot = next
	s.term.SetScheduled(next)
	s.pic.EOI(irq.TimerLine)

	launch, err := s.launcher.LaunchRoot(next)
	if err != nil {
		if cur == nil {
			kfmt.Panic(err)
		}

		// The ring stays advanced so the remaining terminals get their
		// turn; this one is retried the next time around.
		s.log.Error("unable to start terminal", "terminal", next, "err", err)
		s.term.SetScheduled(prev)
		cur.SchedulerCtx.Clear()
		return
	}

	s.state[next] = running
	s.switches++
	s.log.Info("terminal started", "terminal", next)

	launch()
	if cur == nil {
		return
	}
	s.cpu.Park(k)
}

// resume transfers the CPU to the foreground process of a running terminal.
func (s *Scheduler) resume(cur *proc.Process, next int) {
	fg := s.procs.Foreground(s.term.Root(next))
	if fg == nil {
		kfmt.Panic(errNoForeground)
	}

	s.slot = next
	if fg == cur {
		s.term.SetScheduled(next)
		s.pic.EOI(irq.TimerLine)
		return
	}

	var k cpu.Continuation
	if cur != nil {
		k = cur.SchedulerCtx.Save(proc.KernelStackTop(cur.ID), proc.KernelStackTop(cur.ID))
	}

	s.procs.SetCurrent(fg.ID)
	s.as.MapProgram(proc.ProgramFrame(fg.ID))
	s.term.SetScheduled(next)
	s.cpu.TSS().ESP0 = proc.KernelStackTop(fg.ID)
	s.as.Flush()
	s.pic.EOI(irq.TimerLine)

	s.switches++
	s.log.Trace("switch", "terminal", next, "pid", int(fg.ID))

	if !fg.SchedulerCtx.Resume(0) {
		kfmt.Panic(errNoContext)
	}
	if cur == nil {
		return
	}
	s.cpu.Park(k)
}
