package imageio

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Segment is one physical file contributing a contiguous byte range
// [Start, Start+Length) to the logical address space of a split image.
type Segment struct {
	Path   string
	Start  uint64
	Length uint64

	// The handle carries a mutable seek position, so concurrent reads
	// landing in the same segment are serialized here.
	mu sync.Mutex
	f  afero.File
}

// readAt seeks to off within the segment file and reads len(p) bytes.
// A zero count with a nil error means the file ended early; the caller
// decides whether that is end-of-image or corruption.
func (s *Segment) readAt(p []byte, off uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Seek(int64(off), io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %s offset %d: %v", ErrSeek, s.Path, off, err)
	}

	n, err := io.ReadFull(s.f, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("%w: %s offset %d: %v", ErrRead, s.Path, off, err)
	}
	return n, nil
}

// SegmentTable is the ordered list of segments backing a split raw image.
// Segments are appended in increasing start-offset order with no gaps and no
// overlap; the sum of lengths equals the logical image size. The table is
// read-only after open and may be shared freely.
type SegmentTable struct {
	fs       afero.Fs
	segments []*Segment
	total    uint64
}

func newSegmentTable(fs afero.Fs) *SegmentTable {
	return &SegmentTable{fs: fs}
}

// addFile appends path as the next segment, keeping the running total.
func (t *SegmentTable) addFile(path string) error {
	info, err := t.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat segment %s: %w", path, err)
	}

	f, err := t.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", path, err)
	}

	t.segments = append(t.segments, &Segment{
		Path:   path,
		Start:  t.total,
		Length: uint64(info.Size()),
		f:      f,
	})
	t.total += uint64(info.Size())
	return nil
}

// Locate returns the segment whose half-open range contains off, or false if
// off is at or past the end of the image. A linear scan is fine here: split
// images have few segments in practice.
func (t *SegmentTable) Locate(off uint64) (*Segment, bool) {
	for _, s := range t.segments {
		if s.Start <= off && off < s.Start+s.Length {
			return s, true
		}
	}
	return nil, false
}

// TotalSize returns the logical size of the whole split image.
func (t *SegmentTable) TotalSize() uint64 { return t.total }

// Len returns the number of segments.
func (t *SegmentTable) Len() int { return len(t.segments) }

func (t *SegmentTable) Close() error {
	var firstErr error
	for _, s := range t.segments {
		if err := s.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.segments = nil
	return firstErr
}

// isMultipartName reports whether path looks like the first file of a split
// raw series.
func isMultipartName(path string) bool {
	return strings.HasSuffix(path, ".000") ||
		strings.HasSuffix(path, ".001") ||
		strings.HasSuffix(path, "001.vmdk")
}

// splitProbe turns a split-series name into a sibling generator: the last
// "000" or "001" run in the name becomes a 3-digit counter starting at the
// following number.
func splitProbe(path string) (prefix, suffix string, next int, ok bool) {
	p := strings.LastIndex(path, "000")
	if p < 0 {
		p = strings.LastIndex(path, "001")
	}
	if p < 0 {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(path[p : p+3])
	if err != nil {
		return "", "", 0, false
	}
	return path[:p], path[p+3:], n + 1, true
}

// buildSegmentTable opens path as the first segment and, if it is named like
// a split series, appends successively numbered sibling files until a probe
// misses.
func buildSegmentTable(fs afero.Fs, path string) (*SegmentTable, error) {
	t := newSegmentTable(fs)
	if err := t.addFile(path); err != nil {
		return nil, err
	}

	if !isMultipartName(path) {
		return t, nil
	}

	prefix, suffix, next, ok := splitProbe(path)
	if !ok {
		return t, nil
	}
	for n := next; ; n++ {
		probe := fmt.Sprintf("%s%03d%s", prefix, n, suffix)
		exists, err := afero.Exists(fs, probe)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("probe segment %s: %w", probe, err)
		}
		if !exists {
			break
		}
		if err := t.addFile(probe); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}
