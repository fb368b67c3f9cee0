// Package programs contains the user programs shipped on the default
// filesystem image.
package programs

import (
	"embed"
	"path"

	"multiterm/kernel"
	"multiterm/kernel/fs"
	"multiterm/user"
)

// RTCDevice is the name of the RTC device file.
const RTCDevice = "rtc"

//go:embed data/*.txt
var data embed.FS

var bundled = []struct {
	name string
	main user.Main
}{
	{"shell", Shell},
	{"ls", Ls},
	{"cat", Cat},
	{"grep", Grep},
	{"hello", Hello},
	{"testprint", TestPrint},
	{"counter", Counter},
	{"pingpong", PingPong},
	{"fish", Fish},
	{"sigtest", SigTest},
	{"syserr", SysErr},
	{"fault", Fault},
}

// Register adds every bundled program to r.
func Register(r *user.Registry) {
	for _, prog := range bundled {
		r.Register(prog.name, prog.main)
	}
}

// Populate adds the programs registered with r, the bundled data files and
// the RTC device to b.
func Populate(r *user.Registry, b *fs.Builder) *kernel.Error {
	if err := r.Install(b); err != nil {
		return err
	}

	entries, _ := data.ReadDir("data")
	for _, e := range entries {
		content, _ := data.ReadFile(path.Join("data", e.Name()))
		if err := b.AddFile(e.Name(), content); err != nil {
			return err
		}
	}

	return b.AddDevice(RTCDevice)
}

// Image builds the default filesystem image and the registry that resolves
// its entry points.
func Image() ([]byte, *user.Registry, *kernel.Error) {
	r := user.NewRegistry()
	Register(r)

	b := fs.NewBuilder()
	if err := Populate(r, b); err != nil {
		return nil, nil, err
	}
	return b.Bytes(), r, nil
}
