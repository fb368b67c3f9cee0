// Command multiterm boots the simulated kernel and attaches it to the host
// terminal. The framebuffer of the visible terminal is drawn with its text
// colours and key presses are fed to the keyboard controller. Alt+1..3
// switch terminals and Ctrl+C powers the machine off.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tty "github.com/mattn/go-tty"

	"multiterm/config"
	"multiterm/device/video/console"
	"multiterm/kernel/kmain"
)

func logOutput(cfg config.Log) (io.Writer, func(), error) {
	if cfg.File == "" {
		return os.Stderr, func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func run(cfg *config.Config, cmdLine string) error {
	logOut, closeLog, err := logOutput(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	image, registry, err := loadImage(cfg.FS)
	if err != nil {
		return err
	}

	k, kerr := kmain.Boot(kmain.Config{
		LogLevel:  cfg.Log.Level,
		LogOutput: logOut,
		TimerHz:   cfg.PIT.Hz,
		RTCHz:     cfg.RTC.Hz,
		CmdLine:   cmdLine,
	}, image, registry)
	if kerr != nil {
		return kerr
	}

	host, err := tty.Open()
	if err != nil {
		return err
	}
	defer host.Close()

	restore, err := host.Raw()
	if err != nil {
		return err
	}
	defer restore()

	out := host.Output()
	fmt.Fprint(out, "\x1b[2J")
	defer fmt.Fprint(out, "\x1b[0m\x1b[2J\x1b[H\x1b[?25h")

	k.Start()

	go func() {
		dec := &keyDecoder{readRune: host.ReadRune}
		for {
			scancodes, quit, err := dec.next()
			if err != nil || quit {
				k.Shutdown()
				return
			}
			if len(scancodes) != 0 {
				k.Keyboard().Inject(scancodes...)
			}
		}
	}()

	columns, _ := k.Display().Dimensions(console.Characters)
	r := newRenderer(out, k.Display(), int(columns), true)
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Display.RefreshHz))
	defer ticker.Stop()

	for {
		select {
		case <-k.Off():
			return nil
		case <-ticker.C:
			if _, err := r.render(); err != nil {
				k.Shutdown()
				return err
			}
		}
	}
}

type runCmd struct {
	Config  string `type:"path" help:"Path to a YAML configuration file."`
	Cmdline string `help:"Kernel command line, for example loglevel=debug."`
}

func (c *runCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	return run(cfg, c.Cmdline)
}

type dumpConfigCmd struct {
	Config string `type:"path" help:"Path to a YAML configuration file."`
}

func (c *dumpConfigCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func main() {
	var cli struct {
		Run        runCmd        `cmd:"" default:"1" help:"Boot the machine on the host terminal."`
		DumpConfig dumpConfigCmd `cmd:"" name:"dump-config" help:"Print the effective configuration."`
	}

	ctx := kong.Parse(&cli, kong.Description("Three-terminal kernel simulator."))
	ctx.FatalIfErrorf(ctx.Run())
}
