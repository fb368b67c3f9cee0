// Package kmain wires the simulated machine together: it builds the address
// space, probes the devices, mounts the filesystem and installs the system
// call dispatcher and the scheduler before handing the CPU to the first
// shell.
package kmain

import (
	"io"

	"github.com/hashicorp/go-hclog"

	"multiterm/abi"
	"multiterm/device"
	"multiterm/device/keyboard"
	"multiterm/device/video/console"
	"multiterm/kernel"
	"multiterm/kernel/cpu"
	"multiterm/kernel/fs"
	"multiterm/kernel/gate"
	"multiterm/kernel/hal"
	"multiterm/kernel/irq"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/mm"
	"multiterm/kernel/mm/vmm"
	"multiterm/kernel/proc"
	"multiterm/kernel/sched"
	"multiterm/kernel/syscall"
	"multiterm/kernel/term"
	"multiterm/multiboot"
)

var (
	errMissingDevice = &kernel.Error{Module: "kmain", Message: "required device not detected"}
	errNoFilesystem  = &kernel.Error{Module: "kmain", Message: "no filesystem module"}
)

// Config selects the machine the kernel boots on.
type Config struct {
	// LogLevel is an hclog level name.
	LogLevel string

	// LogOutput receives structured log records. A nil output discards
	// them.
	LogOutput io.Writer

	// Columns and Rows set the text mode of the display.
	Columns, Rows uint32

	// TimerHz is the scheduler frequency. Zero leaves the PIT to be
	// ticked manually.
	TimerHz int

	// RTCHz is the hardware RTC rate. Zero leaves the RTC to be ticked
	// manually.
	RTCHz int

	// CmdLine is the kernel command line. loglevel=<level> overrides
	// LogLevel.
	CmdLine string
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Columns == 0 || cfg.Rows == 0 {
		cfg.Columns, cfg.Rows = 80, 25
	}
}

// Kernel is a booted machine.
type Kernel struct {
	log hclog.Logger

	cpu   *cpu.CPU
	idt   *gate.Table
	pic   *irq.Controller
	mem   *mm.Memory
	as    *vmm.AddressSpace
	devs  *hal.Devices
	fs    *fs.FS
	procs *proc.Store
	term  *term.Coordinator

	syscalls *syscall.Dispatcher
	sched    *sched.Scheduler
}

// Boot initializes the machine with the filesystem image and the user code
// resolved through text. The image is handed to the kernel as the first boot
// module. The CPU is not handed to any process until Start is called.
func Boot(cfg Config, image []byte, text abi.Text) (*Kernel, *kernel.Error) {
	cfg.applyDefaults()

	// Buffer console output until the terminals exist.
	kfmt.SetOutputSink(nil)

	k := &Kernel{
		cpu: cpu.New(),
		idt: &gate.Table{},
		mem: mm.NewMemory(mm.PhysicalMemorySize),
	}

	err := multiboot.Load(k.mem, mm.BootInfoBase, mm.ModuleBase, mm.ModuleLimit, &multiboot.BootParams{
		CmdLine:   cfg.CmdLine,
		Modules:   []multiboot.BootModule{{Data: image, CmdLine: "filesys"}},
		MemoryMap: multiboot.DefaultMemoryMap(uint64(mm.PhysicalMemorySize)),
		Framebuffer: &multiboot.FramebufferInfo{
			PhysAddr: uint64(mm.VideoMemory),
			Pitch:    cfg.Columns * 2,
			Width:    cfg.Columns,
			Height:   cfg.Rows,
			Bpp:      16,
			Type:     multiboot.FramebufferTypeEGA,
		},
	})
	if err != nil {
		return nil, err
	}

	info, err := multiboot.Parse(k.mem, mm.BootInfoBase)
	if err != nil {
		return nil, err
	}

	if level, ok := info.GetBootCmdLine()["loglevel"]; ok {
		cfg.LogLevel = level
	}
	k.log = kfmt.NewLogger("kernel", cfg.LogLevel, cfg.LogOutput)

	info.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		k.log.Debug("memory region", "base", hclog.Fmt("0x%x", region.PhysAddress), "length", region.Length, "type", region.Type.String())
		return true
	})

	if fb := info.GetFramebufferInfo(); fb != nil && fb.Type == multiboot.FramebufferTypeEGA {
		cfg.Columns, cfg.Rows = fb.Width, fb.Height
	}

	fsImage, err := firstModule(info)
	if err != nil {
		return nil, err
	}

	k.pic = irq.New(k.cpu, k.idt)
	if k.as, err = vmm.NewAddressSpace(k.mem, vmm.NewMMU(k.mem), proc.MaxProcesses, term.NumTerminals); err != nil {
		return nil, err
	}

	k.devs = hal.DetectHardware(&device.Hardware{
		CPU:       k.cpu,
		PIC:       k.pic,
		Memory:    k.mem,
		Columns:   cfg.Columns,
		Rows:      cfg.Rows,
		Terminals: term.NumTerminals,
		TimerHz:   cfg.TimerHz,
		RTCHz:     cfg.RTCHz,
	}, k.log.Named("hal"))

	if k.devs.Display == nil || k.devs.VTs == nil || k.devs.Keyboard == nil || k.devs.PIT == nil || k.devs.RTC == nil {
		return nil, errMissingDevice
	}

	if k.fs, err = fs.Mount(fsImage); err != nil {
		return nil, err
	}

	k.procs = proc.NewStore(nil, nil)
	if k.term, err = term.New(k.devs.Display, k.devs.VTs.VTs, k.mem, k.as, k.procs, k.log.Named("term")); err != nil {
		return nil, err
	}

	// Replays the probe output captured so far on the first terminal.
	kfmt.SetOutputSink(k.term)
	k.devs.Keyboard.SetHandler(k.term.HandleKey)

	k.syscalls = syscall.New(syscall.Config{
		CPU:          k.cpu,
		IDT:          k.idt,
		PIC:          k.pic,
		AddressSpace: k.as,
		FS:           k.fs,
		Procs:        k.procs,
		Term:         k.term,
		RTC:          k.devs.RTC,
		Text:         text,
		Log:          k.log.Named("syscall"),
	})
	k.syscalls.Install()

	k.sched = sched.New(sched.Config{
		CPU:          k.cpu,
		PIC:          k.pic,
		AddressSpace: k.as,
		Procs:        k.procs,
		Term:         k.term,
		Launcher:     k.syscalls,
		Log:          k.log.Named("sched"),
	})
	k.sched.Install()

	k.log.Info("boot complete", "files", k.fs.Count(), "drivers", len(k.devs.Drivers), "pit_hz", cfg.TimerHz, "rtc_hz", cfg.RTCHz)
	return k, nil
}

// firstModule returns the contents of the first boot module.
func firstModule(info *multiboot.Info) ([]byte, *kernel.Error) {
	var (
		mod   multiboot.Module
		found bool
	)
	info.VisitModules(func(m multiboot.Module) bool {
		mod, found = m, true
		return false
	})

	if !found {
		return nil, errNoFilesystem
	}
	return info.ModuleData(mod)
}

// Start hands the CPU to the shell of the first terminal and starts the
// timers. The calling goroutine gives up the CPU and must not touch kernel
// state afterwards.
func (k *Kernel) Start() {
	kfmt.Printf("multiterm: %d terminals, %d process slots\n", term.NumTerminals, proc.MaxProcesses)

	k.sched.Tick()
	k.devs.PIT.Start(k.cpu.Off())
	k.devs.RTC.Start(k.cpu.Off())
}

// Keyboard returns the keyboard host input is injected into.
func (k *Kernel) Keyboard() *keyboard.Keyboard {
	return k.devs.Keyboard
}

// Display returns the scanned out display.
func (k *Kernel) Display() *console.VgaTextDisplay {
	return k.devs.Display
}

// Tick raises one timer interrupt. It is used when the PIT runs in manual
// mode.
func (k *Kernel) Tick() {
	k.devs.PIT.Tick()
}

// TickRTC raises one RTC interrupt.
func (k *Kernel) TickRTC() {
	k.devs.RTC.Tick()
}

// Off returns a channel that is closed when the machine powers off.
func (k *Kernel) Off() <-chan struct{} {
	return k.cpu.Off()
}

// Shutdown powers the machine off. Every process goroutine exits.
func (k *Kernel) Shutdown() {
	k.log.Info("shutting down")
	k.cpu.PowerOff()
}

// Kmain boots the machine, runs it until it powers off and returns. An
// error is returned if the machine cannot boot.
func Kmain(cfg Config, image []byte, text abi.Text) *kernel.Error {
	k, err := Boot(cfg, image, text)
	if err != nil {
		return err
	}

	k.Start()
	<-k.Off()
	return nil
}
