package fs

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"multiterm/kernel"
)

func testImage(t *testing.T) *FS {
	b := NewBuilder()
	files := []struct {
		name string
		data []byte
	}{
		{"hello", []byte("hello world\n")},
		{"big", bytes.Repeat([]byte("0123456789abcdef"), 600)},
		{"verylargetextwithverylongname.tx", []byte("32")},
		{"empty", nil},
	}
	for _, f := range files {
		if err := b.AddFile(f.name, f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AddDevice("rtc"); err != nil {
		t.Fatal(err)
	}

	fs, err := Mount(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestMount(t *testing.T) {
	if _, err := Mount(make([]byte, 100)); err != errCorrupt {
		t.Fatalf("expected errCorrupt for a short image; got %v", err)
	}

	img := NewBuilder().Bytes()
	binary.LittleEndian.PutUint32(img[4:], 2)
	if _, err := Mount(img); err != errCorrupt {
		t.Fatalf("expected errCorrupt when inodes are missing; got %v", err)
	}

	img = NewBuilder().Bytes()
	binary.LittleEndian.PutUint32(img[0:], MaxDentries+1)
	if _, err := Mount(img); err != errCorrupt {
		t.Fatalf("expected errCorrupt for too many dentries; got %v", err)
	}
}

func TestLookup(t *testing.T) {
	fs := testImage(t)

	specs := []struct {
		name    string
		expType FileType
		expErr  *kernel.Error
	}{
		{".", TypeDirectory, nil},
		{"hello", TypeRegular, nil},
		{"rtc", TypeRTC, nil},
		{"verylargetextwithverylongname.tx", TypeRegular, nil},
		{"verylargetextwithverylongname.txt", 0, ErrNotFound},
		{"", 0, ErrNotFound},
		{"hell", 0, ErrNotFound},
		{"nope", 0, ErrNotFound},
	}

	for specIndex, spec := range specs {
		d, err := fs.Lookup(spec.name)
		if spec.expErr != nil {
			if err != spec.expErr {
				t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if d.Name != spec.name || d.Type != spec.expType {
			t.Errorf("[spec %d] expected %q of type %s; got %q of type %s", specIndex, spec.name, spec.expType, d.Name, d.Type)
		}
	}
}

func TestDentryAt(t *testing.T) {
	fs := testImage(t)

	if exp, got := 6, fs.Count(); got != exp {
		t.Fatalf("expected %d dentries; got %d", exp, got)
	}

	var names []string
	for i := 0; i < fs.Count(); i++ {
		d, err := fs.DentryAt(i)
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, d.Name)
	}

	if exp, got := ".,hello,big,verylargetextwithverylongname.tx,empty,rtc", strings.Join(names, ","); got != exp {
		t.Fatalf("expected dentries %q; got %q", exp, got)
	}

	for _, index := range []int{-1, fs.Count()} {
		if _, err := fs.DentryAt(index); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for index %d; got %v", index, err)
		}
	}
}

func TestReadData(t *testing.T) {
	fs := testImage(t)

	big, _ := fs.Lookup("big")
	length, err := fs.Length(big.Inode)
	if err != nil {
		t.Fatal(err)
	}
	if length != 9600 {
		t.Fatalf("expected big to be 9600 bytes long; got %d", length)
	}

	// Read the whole file in odd sized chunks crossing block boundaries.
	var (
		out    bytes.Buffer
		buf    = make([]byte, 1000)
		offset uint32
	)
	for {
		n, err := fs.ReadData(big.Inode, offset, buf)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		out.Write(buf[:n])
		offset += uint32(n)
	}

	if exp := bytes.Repeat([]byte("0123456789abcdef"), 600); !bytes.Equal(out.Bytes(), exp) {
		t.Fatal("expected chunked reads to reproduce the file contents")
	}

	specs := []struct {
		name   string
		offset uint32
		size   int
		exp    string
	}{
		{"hello", 0, 5, "hello"},
		{"hello", 6, 100, "world\n"},
		{"hello", 12, 10, ""},
		{"hello", 1000, 10, ""},
		{"empty", 0, 10, ""},
		{"big", BlockSize - 2, 4, "ef01"},
	}

	for specIndex, spec := range specs {
		d, _ := fs.Lookup(spec.name)
		buf := make([]byte, spec.size)
		n, err := fs.ReadData(d.Inode, spec.offset, buf)
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if got := string(buf[:n]); got != spec.exp {
			t.Errorf("[spec %d] expected to read %q; got %q", specIndex, spec.exp, got)
		}
	}

	if _, err := fs.ReadData(100, 0, buf); err != ErrBadInode {
		t.Fatalf("expected ErrBadInode; got %v", err)
	}
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder()

	specs := []struct {
		name   string
		data   []byte
		expErr *kernel.Error
	}{
		{"", nil, errNameLength},
		{strings.Repeat("x", NameLen+1), nil, errNameLength},
		{".", nil, errDuplicate},
		{"huge", make([]byte, MaxFileSize+1), errFileTooLarge},
	}

	for specIndex, spec := range specs {
		if err := b.AddFile(spec.name, spec.data); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	for i := 1; i < MaxDentries; i++ {
		if err := b.AddDevice(strings.Repeat("r", i%16+1) + string(rune('a'+i/16))); err != nil {
			t.Fatalf("unexpected error adding entry %d: %v", i, err)
		}
	}

	if err := b.AddDevice("full"); err != errTooManyFiles {
		t.Fatalf("expected errTooManyFiles; got %v", err)
	}
}

func TestFileTypeString(t *testing.T) {
	specs := []struct {
		typ FileType
		exp string
	}{
		{TypeRTC, "rtc"},
		{TypeDirectory, "dir"},
		{TypeRegular, "file"},
		{FileType(9), "unknown"},
	}

	for _, spec := range specs {
		if got := spec.typ.String(); got != spec.exp {
			t.Errorf("expected %q; got %q", spec.exp, got)
		}
	}
}
