package proc

import (
	"testing"

	"multiterm/kernel"
)

type nopOps struct{ name string }

func (nopOps) Open(_ *Process, _ *Descriptor) *kernel.Error { return nil }
func (nopOps) Read(_ *Process, _ *Descriptor, _ []byte) (int, *kernel.Error) {
	return 0, nil
}
func (nopOps) Write(_ *Process, _ *Descriptor, buf []byte) (int, *kernel.Error) {
	return len(buf), nil
}
func (nopOps) Close(_ *Process, _ *Descriptor) *kernel.Error { return nil }

var (
	testStdin  = nopOps{"stdin"}
	testStdout = nopOps{"stdout"}
)

func TestAddressFormulas(t *testing.T) {
	specs := []struct {
		id       ID
		expStack uint32
		expFrame uintptr
	}{
		{0, 0x7ffffc, 0x800000},
		{1, 0x7fdffc, 0xc00000},
		{5, 0x7f5ffc, 0x1c00000},
	}

	for specIndex, spec := range specs {
		if got := KernelStackTop(spec.id); got != spec.expStack {
			t.Errorf("[spec %d] expected kernel stack top 0x%x; got 0x%x", specIndex, spec.expStack, got)
		}
		if got := ProgramFrame(spec.id); got != spec.expFrame {
			t.Errorf("[spec %d] expected program frame 0x%x; got 0x%x", specIndex, spec.expFrame, got)
		}
	}
}

func TestAllocate(t *testing.T) {
	s := NewStore(testStdin, testStdout)

	if s.Current() != nil {
		t.Fatal("expected no current process")
	}

	for i := 0; i < MaxProcesses; i++ {
		p, err := s.Allocate("shell", "", i%3)
		if err != nil {
			t.Fatal(err)
		}
		if p.ID != ID(i) {
			t.Fatalf("expected id %d; got %d", i, p.ID)
		}
		if p.Parent != NoID || p.Child != NoID {
			t.Fatal("expected new record to have no parent and no child")
		}
		if p.Files[0].Ops != testStdin || p.Files[1].Ops != testStdout {
			t.Fatal("expected descriptors 0 and 1 to be bound to the console")
		}
		for fd := 2; fd < len(p.Files); fd++ {
			if p.Files[fd].Occupied {
				t.Fatalf("expected descriptor %d to be free", fd)
			}
		}
	}

	if _, err := s.Allocate("shell", "", 0); err != ErrBusy {
		t.Fatalf("expected ErrBusy; got %v", err)
	}
	if exp, got := MaxProcesses, s.Live(); got != exp {
		t.Fatalf("expected %d live records; got %d", exp, got)
	}

	s.Free(3)
	s.Free(1)
	if exp, got := MaxProcesses-2, s.Live(); got != exp {
		t.Fatalf("expected %d live records; got %d", exp, got)
	}

	p, err := s.Allocate("cat", "frame0.txt", 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != 1 {
		t.Fatalf("expected the lowest free id 1 to be reused; got %d", p.ID)
	}
	if args, ok := p.Args(); !ok || args != "frame0.txt" {
		t.Fatalf("expected args %q; got %q (present: %t)", "frame0.txt", args, ok)
	}

	if s.Get(3) != nil || s.Get(-1) != nil || s.Get(MaxProcesses) != nil {
		t.Fatal("expected Get to return nil for free or invalid ids")
	}
}

func TestAllocateArgs(t *testing.T) {
	s := NewStore(testStdin, testStdout)

	long := make([]byte, 128)
	for i := range long {
		long[i] = 'a'
	}

	if _, err := s.Allocate("cat", string(long), 0); err != ErrArgsTooLong {
		t.Fatalf("expected ErrArgsTooLong; got %v", err)
	}

	p, err := s.Allocate("cat", string(long[:127]), 0)
	if err != nil {
		t.Fatal(err)
	}
	if args, _ := p.Args(); len(args) != 127 {
		t.Fatalf("expected 127 byte argument; got %d", len(args))
	}

	p, _ = s.Allocate("ls", "", 0)
	if _, ok := p.Args(); ok {
		t.Fatal("expected no argument")
	}
}

func TestFreeClearsRecord(t *testing.T) {
	s := NewStore(testStdin, testStdout)
	p, _ := s.Allocate("shell", "", 0)
	p.SyscallCtx.Save(1, 2)
	p.Install(nopOps{"file"}, 4)
	s.SetCurrent(p.ID)

	if s.Current() != p {
		t.Fatal("expected current process to be set")
	}

	s.Free(p.ID)
	if s.Current() != nil {
		t.Fatal("expected Current to return nil for a freed record")
	}

	if p.SyscallCtx.Saved() || p.Files[0].Occupied || p.Files[2].Occupied {
		t.Fatal("expected Free to clear contexts and descriptors")
	}
}

func TestChain(t *testing.T) {
	s := NewStore(testStdin, testStdout)

	root, _ := s.Allocate("shell", "", 0)
	mid, _ := s.Allocate("shell", "", 0)
	leaf, _ := s.Allocate("counter", "", 0)
	other, _ := s.Allocate("shell", "", 1)

	root.Child, mid.Parent = mid.ID, root.ID
	mid.Child, leaf.Parent = leaf.ID, mid.ID

	var visited []ID
	s.Chain(root.ID, func(p *Process) bool {
		visited = append(visited, p.ID)
		return true
	})
	if len(visited) != 3 || visited[0] != root.ID || visited[2] != leaf.ID {
		t.Fatalf("unexpected chain %v", visited)
	}

	visited = visited[:0]
	s.Chain(root.ID, func(p *Process) bool {
		visited = append(visited, p.ID)
		return false
	})
	if len(visited) != 1 {
		t.Fatalf("expected Chain to stop early; visited %v", visited)
	}

	specs := []struct {
		root ID
		exp  *Process
	}{
		{root.ID, leaf},
		{mid.ID, leaf},
		{other.ID, other},
		{NoID, nil},
	}
	for specIndex, spec := range specs {
		if got := s.Foreground(spec.root); got != spec.exp {
			t.Errorf("[spec %d] unexpected foreground process %v", specIndex, got)
		}
	}

	infos := s.Snapshot()
	if len(infos) != 4 || infos[2].Name != "counter" || infos[2].Parent != mid.ID || infos[3].Terminal != 1 {
		t.Fatalf("unexpected snapshot %+v", infos)
	}
}

func TestDescriptors(t *testing.T) {
	s := NewStore(testStdin, testStdout)
	p, _ := s.Allocate("cat", "", 0)

	for exp := 2; exp < len(p.Files); exp++ {
		fd, err := p.Install(nopOps{"file"}, uint32(exp))
		if err != nil {
			t.Fatal(err)
		}
		if fd != exp {
			t.Fatalf("expected descriptor %d; got %d", exp, fd)
		}
	}

	if _, err := p.Install(nopOps{"file"}, 0); err != ErrFilesFull {
		t.Fatalf("expected ErrFilesFull; got %v", err)
	}

	p.Files[4].Reset()
	if fd, _ := p.Install(nopOps{"file"}, 9); fd != 4 {
		t.Fatalf("expected freed descriptor 4 to be reused; got %d", fd)
	}

	specs := []struct {
		fd     int32
		expErr *kernel.Error
	}{
		{0, nil},
		{7, nil},
		{-1, ErrBadDescriptor},
		{8, ErrBadDescriptor},
	}
	for specIndex, spec := range specs {
		if _, err := p.File(spec.fd); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	p.Files[5].Reset()
	if _, err := p.File(5); err != ErrBadDescriptor {
		t.Fatalf("expected ErrBadDescriptor for a closed descriptor; got %v", err)
	}
}
