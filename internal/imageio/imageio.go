// Package imageio provides uniform access to forensic disk images: single raw
// files, split raw segment series (.000/.001), EWF containers via an external
// decoder, and directory trees of individual files. Every backend is driven
// through one contract: random-offset reads plus fixed-size paginated
// iteration with a look-ahead margin, so the scanning engine never branches
// on how the image is physically stored.
package imageio

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Config carries the page geometry an image source is opened with. It is
// immutable after Open.
type Config struct {
	// PageSize is the usable length of each page in bytes.
	PageSize int
	// Margin is the extra look-ahead appended past the usable page length so
	// analyses spanning a page boundary still see following context.
	Margin int
	// Recurse permits opening a directory of individual files.
	Recurse bool
}

// Address identifies where a page originated within the logical image space.
// Path is the parent label (empty at the top level, a file path for directory
// images, and a nested label when a page is re-extracted from inside another
// page); Offset is the byte offset within that parent.
type Address struct {
	Path   string
	Offset uint64
}

func (a Address) String() string {
	if a.Path == "" {
		return fmt.Sprintf("%d", a.Offset)
	}
	return fmt.Sprintf("%s-%d", a.Path, a.Offset)
}

// Child returns the address of data extracted from inside the page at this
// address, labeled so the provenance chain stays reconstructible.
func (a Address) Child(offset uint64) Address {
	return Address{Path: a.String(), Offset: offset}
}

// Page is one chunk of image bytes handed to the scanning engine. Buf holds
// PageSize usable bytes plus the look-ahead margin, both clipped so they
// never extend past the end of the image.
type Page struct {
	Addr     Address
	Buf      []byte
	PageSize int
}

// Usable returns the buffer without the look-ahead margin.
func (p *Page) Usable() []byte {
	return p.Buf[:p.PageSize]
}

// Cursor is a restartable position marker over an image: a byte offset for
// byte-addressed backends, a file index for directory images. Multiple
// cursors may iterate one ImageSource independently.
type Cursor struct {
	Offset    uint64
	FileIndex int
	EOF       bool
}

// ImageSource is the uniform image-access contract. Implementations are safe
// for concurrent use after Open; per-cursor page sequences are strictly
// ordered by increasing offset (or file index), with no ordering guarantee
// across independent cursors.
type ImageSource interface {
	// Open prepares the backend: it probes for follow-on split segments,
	// opens file handles and determines the total image size. Any failure
	// here is fatal for the image.
	Open() error

	// PRead reads len(p) bytes at logical byte offset off, transparently
	// spanning segment boundaries. It returns the number of bytes read;
	// zero with a nil error means nothing is available at off. Directory
	// images do not support byte-level reads and fail with
	// ErrUnsupportedFormat.
	PRead(p []byte, off uint64) (int, error)

	// ImageSize returns the total logical size in bytes, or the file count
	// for directory images.
	ImageSize() uint64

	Begin() Cursor
	End() Cursor
	Increment(c *Cursor)

	// SeekBlock positions the cursor at the given page-aligned block,
	// clamped to the image, and returns the block actually seeked to.
	SeekBlock(c *Cursor, block uint64) uint64

	// AllocPage reads the page at the cursor's position. At the end of the
	// image it marks the cursor EOF and returns ErrEndOfImage instead of an
	// empty page; a short final page is still a valid non-empty page.
	AllocPage(c *Cursor) (*Page, error)

	FractionDone(c Cursor) float64
	MaxBlocks() uint64

	// Label returns a human-readable position for progress reporting.
	Label(c Cursor) string

	Close() error
}

// byteImage holds the cursor arithmetic shared by the byte-addressed
// backends (segmented raw and EWF).
type byteImage struct {
	cfg  Config
	size uint64
}

func (b *byteImage) ImageSize() uint64 { return b.size }

func (b *byteImage) Begin() Cursor { return Cursor{} }

func (b *byteImage) End() Cursor { return Cursor{Offset: b.size, EOF: true} }

func (b *byteImage) Increment(c *Cursor) {
	c.Offset += uint64(b.cfg.PageSize)
	if c.Offset >= b.size {
		c.Offset = b.size
		c.EOF = true
	}
}

func (b *byteImage) SeekBlock(c *Cursor, block uint64) uint64 {
	pagesize := uint64(b.cfg.PageSize)
	if block*pagesize > b.size {
		block = b.size / pagesize
	}
	c.Offset = block * pagesize
	c.EOF = c.Offset >= b.size
	return block
}

func (b *byteImage) FractionDone(c Cursor) float64 {
	if b.size == 0 {
		return 1
	}
	return float64(c.Offset) / float64(b.size)
}

func (b *byteImage) MaxBlocks() uint64 {
	pagesize := uint64(b.cfg.PageSize)
	return (b.size + pagesize - 1) / pagesize
}

func (b *byteImage) Label(c Cursor) string {
	return "Offset " + humanize.Bytes(c.Offset)
}

// preader is the random-read primitive each byte-addressed backend supplies
// to the shared page producer.
type preader interface {
	PRead(p []byte, off uint64) (int, error)
}

// allocPage implements the shared page production of the byte-addressed
// backends: read page size plus margin, clipped at the image end, and
// translate "no bytes available" into the terminal ErrEndOfImage.
func (b *byteImage) allocPage(r preader, c *Cursor) (*Page, error) {
	if c.Offset >= b.size {
		c.EOF = true
		return nil, ErrEndOfImage
	}

	count := uint64(b.cfg.PageSize + b.cfg.Margin)
	if b.size-c.Offset < count {
		count = b.size - c.Offset
	}
	usable := b.cfg.PageSize
	if uint64(usable) > count {
		usable = int(count)
	}

	buf := make([]byte, count)
	n, err := r.PRead(buf, c.Offset)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		c.EOF = true
		return nil, ErrEndOfImage
	}
	if n < usable {
		usable = n
	}

	return &Page{
		Addr:     Address{Offset: c.Offset},
		Buf:      buf[:n],
		PageSize: usable,
	}, nil
}
