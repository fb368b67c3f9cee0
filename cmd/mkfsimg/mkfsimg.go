// Command mkfsimg builds a filesystem image for the simulator.
//
// Without a manifest the image holds the bundled programs, their data files
// and the RTC device. A YAML manifest selects the content explicitly:
//
//	programs: true
//	files:
//	  - name: notes.txt
//	    path: docs/notes.txt
//	devices: [rtc]
//
// File paths are resolved relative to the manifest.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	yaml "gopkg.in/yaml.v2"

	"multiterm/kernel/fs"
	"multiterm/user"
	"multiterm/user/programs"
)

type manifestFile struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type manifest struct {
	// Programs includes the bundled programs and their data files.
	Programs bool           `yaml:"programs"`
	Files    []manifestFile `yaml:"files"`
	Devices  []string       `yaml:"devices"`
}

func parseManifest(data []byte) (*manifest, error) {
	var m manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	for i, f := range m.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("manifest: file %d has no path", i)
		}
		if f.Name == "" {
			m.Files[i].Name = filepath.Base(f.Path)
		}
	}
	return &m, nil
}

// buildImage returns the image described by m. Relative file paths are
// resolved against baseDir.
func buildImage(m *manifest, baseDir string) ([]byte, error) {
	b := fs.NewBuilder()

	if m.Programs {
		r := user.NewRegistry()
		programs.Register(r)
		if err := programs.Populate(r, b); err != nil {
			return nil, err
		}
	}

	for _, f := range m.Files {
		path := f.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if kerr := b.AddFile(f.Name, data); kerr != nil {
			return nil, fmt.Errorf("%s: %s", f.Name, kerr.Message)
		}
	}

	for _, name := range m.Devices {
		if m.Programs && name == programs.RTCDevice {
			continue
		}
		if kerr := b.AddDevice(name); kerr != nil {
			return nil, fmt.Errorf("%s: %s", name, kerr.Message)
		}
	}

	return b.Bytes(), nil
}

type buildCmd struct {
	Manifest string `type:"path" help:"YAML manifest describing the image content. Without one the bundled programs are used."`
	Out      string `short:"o" default:"fs.img" help:"Output file or - for stdout."`
}

func (c *buildCmd) Run() error {
	m := &manifest{Programs: true}
	baseDir := "."
	if c.Manifest != "" {
		data, err := ioutil.ReadFile(c.Manifest)
		if err != nil {
			return err
		}
		if m, err = parseManifest(data); err != nil {
			return err
		}
		baseDir = filepath.Dir(c.Manifest)
	}

	image, err := buildImage(m, baseDir)
	if err != nil {
		return err
	}

	if c.Out == "-" {
		_, err = os.Stdout.Write(image)
		return err
	}
	return ioutil.WriteFile(c.Out, image, 0644)
}

func main() {
	var cli struct {
		Build buildCmd `cmd:"" default:"1" help:"Build a filesystem image."`
	}

	ctx := kong.Parse(&cli, kong.Description("Filesystem image builder."))
	ctx.FatalIfErrorf(ctx.Run())
}
