package user

import (
	"sort"

	"multiterm/abi"
	"multiterm/kernel"
	"multiterm/kernel/fs"
)

// Main is the entry point of a user program. Its return value is the halt
// status.
type Main func(p *Proc) uint8

// entryStride separates the entry points of registered programs.
const entryStride = 0x100

// Program is a registered user program.
type Program struct {
	Name  string
	Entry uint32
	Main  Main
}

// Registry binds user programs to entry addresses. It implements abi.Text
// so the kernel can find the code behind the entry point of a loaded image.
type Registry struct {
	programs map[uint32]*Program
	names    map[string]uint32
	next     uint32
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		programs: make(map[uint32]*Program),
		names:    make(map[string]uint32),
		next:     abi.LoadAddr + abi.HeaderSize,
	}
}

// Register binds main to a fresh entry address and returns it. Registering
// a name twice replaces the previous program.
func (r *Registry) Register(name string, main Main) uint32 {
	entry, ok := r.names[name]
	if !ok {
		entry = r.next
		r.next += entryStride
		r.names[name] = entry
	}

	r.programs[entry] = &Program{Name: name, Entry: entry, Main: main}
	return entry
}

// Lookup implements abi.Text.
func (r *Registry) Lookup(entry uint32) (abi.Entry, bool) {
	prog, ok := r.programs[entry]
	if !ok {
		return nil, false
	}

	main := prog.Main
	return func(t abi.Trap) uint8 {
		return main(NewProc(t))
	}, true
}

// Names returns the registered program names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Image returns the executable image of a registered program.
func (r *Registry) Image(name string) ([]byte, bool) {
	entry, ok := r.names[name]
	if !ok {
		return nil, false
	}

	// The body pads the image so that its code would start at the entry
	// point once loaded.
	body := make([]byte, entry-abi.LoadAddr-abi.HeaderSize+entryStride)
	copy(body[len(body)-entryStride:], name)
	return abi.BuildImage(entry, body), true
}

// Install adds the image of every registered program to b.
func (r *Registry) Install(b *fs.Builder) *kernel.Error {
	for _, name := range r.Names() {
		img, _ := r.Image(name)
		if err := b.AddFile(name, img); err != nil {
			return err
		}
	}
	return nil
}
