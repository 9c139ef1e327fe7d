package imageio

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// dirImage treats a directory tree as an image whose unit of iteration is a
// whole file: page size and margin do not apply, each page is one file, and
// the provenance address is the file's path relative to the root.
type dirImage struct {
	fs    afero.Fs
	root  string
	cfg   Config
	files []string
	log   *slog.Logger
}

var _ ImageSource = (*dirImage)(nil)

func newDirImage(fs afero.Fs, root string, cfg Config) *dirImage {
	return &dirImage{
		fs:   fs,
		root: root,
		cfg:  cfg,
		log:  slog.Default().With("component", "dir-image"),
	}
}

func (d *dirImage) Open() error {
	err := afero.Walk(d.fs, d.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		d.files = append(d.files, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerate directory %s: %w", d.root, err)
	}
	d.log.Debug("opened directory image", "root", d.root, "files", len(d.files))
	return nil
}

// PRead is not supported: a directory image is file-addressed, not
// byte-addressed.
func (d *dirImage) PRead(p []byte, off uint64) (int, error) {
	return 0, fmt.Errorf("%w: directory images do not support byte reads", ErrUnsupportedFormat)
}

// ImageSize returns the number of files; the 'size' of a directory image is
// counted in files, not bytes.
func (d *dirImage) ImageSize() uint64 { return uint64(len(d.files)) }

func (d *dirImage) Begin() Cursor { return Cursor{} }

func (d *dirImage) End() Cursor {
	return Cursor{FileIndex: len(d.files), EOF: true}
}

func (d *dirImage) Increment(c *Cursor) {
	c.FileIndex++
	if c.FileIndex >= len(d.files) {
		c.FileIndex = len(d.files)
		c.EOF = true
	}
}

func (d *dirImage) SeekBlock(c *Cursor, block uint64) uint64 {
	if block > uint64(len(d.files)) {
		block = uint64(len(d.files))
	}
	c.FileIndex = int(block)
	c.EOF = c.FileIndex >= len(d.files)
	return block
}

// AllocPage loads the whole file at the cursor as one page. The usable
// length is the entire file and there is no margin.
func (d *dirImage) AllocPage(c *Cursor) (*Page, error) {
	if c.FileIndex >= len(d.files) {
		c.EOF = true
		return nil, ErrEndOfImage
	}

	rel := d.files[c.FileIndex]
	data, err := afero.ReadFile(d.fs, filepath.Join(d.root, rel))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, rel, err)
	}

	return &Page{
		Addr:     Address{Path: rel},
		Buf:      data,
		PageSize: len(data),
	}, nil
}

func (d *dirImage) FractionDone(c Cursor) float64 {
	if len(d.files) == 0 {
		return 1
	}
	return float64(c.FileIndex) / float64(len(d.files))
}

func (d *dirImage) MaxBlocks() uint64 { return uint64(len(d.files)) }

func (d *dirImage) Label(c Cursor) string {
	if c.FileIndex >= len(d.files) {
		return "File (done)"
	}
	return "File " + d.files[c.FileIndex]
}

func (d *dirImage) Close() error { return nil }
