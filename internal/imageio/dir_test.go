package imageio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func newTestDirImage(t *testing.T, files map[string][]byte) *dirImage {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, data := range files {
		writeTestFile(t, fs, filepath.Join("evidence", name), data)
	}
	img := newDirImage(fs, "evidence", Config{Recurse: true})
	if err := img.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return img
}

func TestDirImage_WholeFilePages(t *testing.T) {
	t.Parallel()

	img := newTestDirImage(t, map[string][]byte{
		"a.txt":                        []byte("alpha"),
		filepath.Join("sub", "b.bin"): []byte("bravo-bravo"),
	})

	if img.ImageSize() != 2 {
		t.Fatalf("ImageSize() = %d, want 2 files", img.ImageSize())
	}

	seen := map[string]int{}
	for c := img.Begin(); !c.EOF; img.Increment(&c) {
		page, err := img.AllocPage(&c)
		if err != nil {
			t.Fatalf("AllocPage() failed: %v", err)
		}
		if page.Addr.Offset != 0 {
			t.Fatalf("directory page offset = %d, want 0", page.Addr.Offset)
		}
		// A directory page has no margin: the whole file is usable.
		if page.PageSize != len(page.Buf) {
			t.Fatalf("usable %d != total %d", page.PageSize, len(page.Buf))
		}
		seen[page.Addr.Path] = len(page.Buf)
	}

	if seen["a.txt"] != 5 {
		t.Fatalf("a.txt page = %d bytes", seen["a.txt"])
	}
	if seen[filepath.Join("sub", "b.bin")] != 11 {
		t.Fatalf("sub/b.bin page = %d bytes", seen[filepath.Join("sub", "b.bin")])
	}
}

func TestDirImage_NoByteReads(t *testing.T) {
	t.Parallel()

	img := newTestDirImage(t, map[string][]byte{"a.txt": []byte("alpha")})

	_, err := img.PRead(make([]byte, 4), 0)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("PRead() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDirImage_CursorSemantics(t *testing.T) {
	t.Parallel()

	img := newTestDirImage(t, map[string][]byte{
		"a": []byte("1"), "b": []byte("2"), "c": []byte("3"), "d": []byte("4"),
	})

	c := img.Begin()
	if got := img.SeekBlock(&c, 2); got != 2 {
		t.Fatalf("SeekBlock(2) = %d", got)
	}
	if f := img.FractionDone(c); f != 0.5 {
		t.Fatalf("FractionDone = %v, want 0.5", f)
	}

	// Seek past the end clamps to the file count and is terminal.
	if got := img.SeekBlock(&c, 99); got != 4 {
		t.Fatalf("SeekBlock(99) = %d, want 4", got)
	}
	if !c.EOF {
		t.Fatal("cursor should be EOF after clamped seek")
	}
	if _, err := img.AllocPage(&c); !errors.Is(err, ErrEndOfImage) {
		t.Fatalf("AllocPage(at end) error = %v, want ErrEndOfImage", err)
	}

	if img.MaxBlocks() != 4 {
		t.Fatalf("MaxBlocks() = %d, want 4", img.MaxBlocks())
	}
}
