package multiboot

import (
	"bytes"
	"testing"

	"multiterm/kernel/mm"
)

const (
	testInfoAddr   = uintptr(0x10000)
	testModuleBase = uintptr(0x20000)
	testModuleEnd  = uintptr(0x30000)
)

func loadTestInfo(t *testing.T, params *BootParams) (*mm.Memory, *Info) {
	mem := mm.NewMemory(1 << 20)
	if err := Load(mem, testInfoAddr, testModuleBase, testModuleEnd, params); err != nil {
		t.Fatal(err)
	}

	info, err := Parse(mem, testInfoAddr)
	if err != nil {
		t.Fatal(err)
	}
	return mem, info
}

func TestModules(t *testing.T) {
	fsImage := bytes.Repeat([]byte{0xaa}, 5000)
	_, info := loadTestInfo(t, &BootParams{
		Modules: []BootModule{
			{Data: fsImage, CmdLine: "filesys"},
			{Data: []byte("second")},
		},
	})

	var mods []Module
	info.VisitModules(func(m Module) bool {
		mods = append(mods, m)
		return true
	})

	if len(mods) != 2 {
		t.Fatalf("expected 2 modules; got %d", len(mods))
	}

	specs := []struct {
		expStart uint32
		expCmd   string
		expData  []byte
	}{
		{uint32(testModuleBase), "filesys", fsImage},
		{uint32(testModuleBase + 2*mm.PageSize), "", []byte("second")},
	}

	for specIndex, spec := range specs {
		mod := mods[specIndex]
		if mod.Start != spec.expStart {
			t.Errorf("[spec %d] expected module to start at 0x%x; got 0x%x", specIndex, spec.expStart, mod.Start)
		}
		if mod.CmdLine != spec.expCmd {
			t.Errorf("[spec %d] expected module command line %q; got %q", specIndex, spec.expCmd, mod.CmdLine)
		}

		data, err := info.ModuleData(mod)
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if !bytes.Equal(data, spec.expData) {
			t.Errorf("[spec %d] module contents do not match", specIndex)
		}
	}

	var visited int
	info.VisitModules(func(Module) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("expected the visitor to stop after the first module; visited %d", visited)
	}

	if _, err := info.ModuleData(Module{Start: 10, End: 5}); err != errBadInfo {
		t.Fatalf("expected errBadInfo for an inverted module; got %v", err)
	}
}

func TestModuleTooLarge(t *testing.T) {
	mem := mm.NewMemory(1 << 20)
	err := Load(mem, testInfoAddr, testModuleBase, testModuleEnd, &BootParams{
		Modules: []BootModule{{Data: make([]byte, testModuleEnd-testModuleBase+1)}},
	})
	if err != errModuleTooLarge {
		t.Fatalf("expected errModuleTooLarge; got %v", err)
	}
}

func TestMemoryMap(t *testing.T) {
	_, info := loadTestInfo(t, &BootParams{
		MemoryMap: append(DefaultMemoryMap(32<<20), MemoryMapEntry{PhysAddress: 0xfec00000, Length: 0x1000, Type: 42}),
	})

	specs := []MemoryMapEntry{
		{0, 0x9fc00, MemAvailable},
		{0x9fc00, 0x60400, MemReserved},
		{0x100000, 31 << 20, MemAvailable},
		{0xfec00000, 0x1000, MemReserved},
	}

	var visited []MemoryMapEntry
	info.VisitMemRegions(func(e *MemoryMapEntry) bool {
		visited = append(visited, *e)
		return true
	})

	if len(visited) != len(specs) {
		t.Fatalf("expected %d regions; got %d", len(specs), len(visited))
	}
	for specIndex, spec := range specs {
		if visited[specIndex] != spec {
			t.Errorf("[spec %d] expected region %+v; got %+v", specIndex, spec, visited[specIndex])
		}
	}

	lower, upper := info.MemorySize()
	if lower != 0x9fc00>>10 || upper != (31<<20)>>10 {
		t.Fatalf("expected memory size 639K/31744K; got %dK/%dK", lower, upper)
	}

	if exp, got := "reserved", visited[3].Type.String(); got != exp {
		t.Fatalf("expected unknown region type to be reported as %q; got %q", exp, got)
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		input MemoryEntryType
		exp   string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{MemoryEntryType(123), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.input.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestFramebufferAndLoaderName(t *testing.T) {
	_, info := loadTestInfo(t, &BootParams{})
	if info.GetFramebufferInfo() != nil {
		t.Fatal("expected no framebuffer info")
	}
	if exp, got := LoaderName, info.LoaderName(); got != exp {
		t.Fatalf("expected loader name %q; got %q", exp, got)
	}

	fb := &FramebufferInfo{PhysAddr: 0xb8000, Pitch: 160, Width: 80, Height: 25, Bpp: 16, Type: FramebufferTypeEGA}
	_, info = loadTestInfo(t, &BootParams{Framebuffer: fb})
	if got := info.GetFramebufferInfo(); got == nil || *got != *fb {
		t.Fatalf("expected framebuffer info %+v; got %+v", fb, got)
	}
}

func TestGetBootCmdLine(t *testing.T) {
	_, info := loadTestInfo(t, &BootParams{CmdLine: "loglevel=debug  quiet  bad=a=b"})

	exp := map[string]string{"loglevel": "debug", "quiet": "quiet"}
	got := info.GetBootCmdLine()
	if len(got) != len(exp) {
		t.Fatalf("expected %d command line entries; got %v", len(exp), got)
	}
	for k, v := range exp {
		if got[k] != v {
			t.Errorf("expected %s=%s; got %q", k, v, got[k])
		}
	}
}

func TestParseErrors(t *testing.T) {
	specs := []struct {
		raw []byte
	}{
		// Total size too small.
		{[]byte{4, 0, 0, 0, 0, 0, 0, 0}},
		// Tag runs past the end of the block.
		{[]byte{16, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 64, 0, 0, 0}},
		// No terminating tag.
		{[]byte{16, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 8, 0, 0, 0}},
		// Tag smaller than its header.
		{[]byte{16, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 4, 0, 0, 0}},
	}

	for specIndex, spec := range specs {
		mem := mm.NewMemory(1 << 20)
		mem.Write(testInfoAddr, spec.raw)

		if _, err := Parse(mem, testInfoAddr); err != errBadInfo {
			t.Errorf("[spec %d] expected errBadInfo; got %v", specIndex, err)
		}
	}
}
