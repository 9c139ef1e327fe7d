package imageio

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// rawImage reads single raw files and split raw series through a segment
// table that maps the logical byte address space onto the physical files.
type rawImage struct {
	byteImage
	fs    afero.Fs
	path  string
	table *SegmentTable
	log   *slog.Logger
}

var _ ImageSource = (*rawImage)(nil)

func newRawImage(fs afero.Fs, path string, cfg Config) *rawImage {
	return &rawImage{
		byteImage: byteImage{cfg: cfg},
		fs:        fs,
		path:      path,
		log:       slog.Default().With("component", "raw-image"),
	}
}

func (r *rawImage) Open() error {
	table, err := buildSegmentTable(r.fs, r.path)
	if err != nil {
		return err
	}
	r.table = table
	r.size = table.TotalSize()
	r.log.Debug("opened raw image",
		"path", r.path,
		"segments", table.Len(),
		"size", r.size)
	return nil
}

// PRead reads len(p) bytes at logical offset off. A request that straddles a
// segment boundary is satisfied by looping into the following segments and
// accumulating the counts. Zero bytes available at off terminates the loop
// (end of image); a segment delivering fewer bytes than its table entry
// promises is a truncated or corrupted segment and fails the whole read.
func (r *rawImage) PRead(p []byte, off uint64) (int, error) {
	total := 0
	for len(p) > 0 {
		seg, ok := r.table.Locate(off)
		if !ok {
			break // nothing to read at off
		}

		fileOff := off - seg.Start
		want := uint64(len(p))
		if avail := seg.Length - fileOff; want > avail {
			want = avail
		}

		n, err := seg.readAt(p[:want], fileOff)
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
		off += uint64(n)
		p = p[n:]

		if uint64(n) < want {
			// The table says these bytes exist but the file ended early.
			return total, fmt.Errorf("%w: segment %s truncated: got %d of %d bytes at offset %d",
				ErrRead, seg.Path, n, want, fileOff)
		}
	}
	return total, nil
}

func (r *rawImage) AllocPage(c *Cursor) (*Page, error) {
	return r.allocPage(r, c)
}

// Segments exposes the number of physical files backing the image, for
// reporting.
func (r *rawImage) Segments() int { return r.table.Len() }

func (r *rawImage) Close() error {
	if r.table == nil {
		return nil
	}
	return r.table.Close()
}
