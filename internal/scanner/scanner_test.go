package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/imageio"
)

type collectSink struct {
	mu      sync.Mutex
	offsets []uint64
	paths   []string
	bytes   int
}

func (c *collectSink) ProcessPage(_ context.Context, page *imageio.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, page.Addr.Offset)
	c.paths = append(c.paths, page.Addr.Path)
	c.bytes += page.PageSize
	return nil
}

type failingSink struct{}

func (failingSink) ProcessPage(context.Context, *imageio.Page) error {
	return errors.New("sink exploded")
}

func openTestImage(t *testing.T, size int, cfg imageio.Config) imageio.ImageSource {
	t.Helper()
	fs := afero.NewMemMapFs()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, afero.WriteFile(fs, "disk.raw", data, 0o644))

	src, err := imageio.Open(fs, "disk.raw", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestScanner_VisitsEveryPageOnce(t *testing.T) {
	t.Parallel()

	src := openTestImage(t, 250, imageio.Config{PageSize: 100, Margin: 20})
	sink := &collectSink{}

	s := New(src, sink, Config{Workers: 4})
	require.NoError(t, s.Run(context.Background()))

	sort.Slice(sink.offsets, func(i, j int) bool { return sink.offsets[i] < sink.offsets[j] })
	require.Equal(t, []uint64{0, 100, 200}, sink.offsets)

	// Usable lengths cover the image exactly once.
	require.Equal(t, 250, sink.bytes)
	require.Equal(t, uint64(3), s.Tracker().Done())
}

func TestScanner_DirectoryImage(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "evidence/a.txt", []byte("alpha"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "evidence/b.txt", []byte("bravo"), 0o644))

	src, err := imageio.Open(fs, "evidence", imageio.Config{PageSize: 100, Recurse: true})
	require.NoError(t, err)
	defer src.Close()

	sink := &collectSink{}
	require.NoError(t, New(src, sink, Config{Workers: 2}).Run(context.Background()))

	sort.Strings(sink.paths)
	require.Equal(t, []string{"a.txt", "b.txt"}, sink.paths)
}

func TestScanner_SinkErrorFailsRun(t *testing.T) {
	t.Parallel()

	src := openTestImage(t, 300, imageio.Config{PageSize: 100})

	err := New(src, failingSink{}, Config{Workers: 2}).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sink exploded")
}

func TestScanner_FatalReadErrorAborts(t *testing.T) {
	t.Parallel()

	src := &brokenSource{size: 300, pageSize: 100, failBlock: 1}
	err := New(src, &collectSink{}, Config{Workers: 1}).Run(context.Background())
	require.ErrorIs(t, err, imageio.ErrRead)
}

func TestScanner_ContextCancellation(t *testing.T) {
	t.Parallel()

	src := openTestImage(t, 1000, imageio.Config{PageSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(src, &collectSink{}, Config{Workers: 2}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// brokenSource is a byte-addressed source whose read fails at a chosen block.
type brokenSource struct {
	size      uint64
	pageSize  uint64
	failBlock uint64
}

var _ imageio.ImageSource = (*brokenSource)(nil)

func (b *brokenSource) Open() error { return nil }

func (b *brokenSource) PRead(p []byte, off uint64) (int, error) {
	if off/b.pageSize == b.failBlock {
		return 0, fmt.Errorf("%w: synthetic failure", imageio.ErrRead)
	}
	return len(p), nil
}

func (b *brokenSource) ImageSize() uint64 { return b.size }

func (b *brokenSource) Begin() imageio.Cursor { return imageio.Cursor{} }

func (b *brokenSource) End() imageio.Cursor {
	return imageio.Cursor{Offset: b.size, EOF: true}
}

func (b *brokenSource) Increment(c *imageio.Cursor) {
	c.Offset += b.pageSize
	if c.Offset >= b.size {
		c.Offset = b.size
		c.EOF = true
	}
}

func (b *brokenSource) SeekBlock(c *imageio.Cursor, block uint64) uint64 {
	c.Offset = block * b.pageSize
	return block
}

func (b *brokenSource) AllocPage(c *imageio.Cursor) (*imageio.Page, error) {
	if c.Offset >= b.size {
		c.EOF = true
		return nil, imageio.ErrEndOfImage
	}
	buf := make([]byte, b.pageSize)
	n, err := b.PRead(buf, c.Offset)
	if err != nil {
		return nil, err
	}
	return &imageio.Page{
		Addr:     imageio.Address{Offset: c.Offset},
		Buf:      buf[:n],
		PageSize: n,
	}, nil
}

func (b *brokenSource) FractionDone(c imageio.Cursor) float64 {
	return float64(c.Offset) / float64(b.size)
}

func (b *brokenSource) MaxBlocks() uint64 {
	return (b.size + b.pageSize - 1) / b.pageSize
}

func (b *brokenSource) Label(c imageio.Cursor) string {
	return fmt.Sprintf("Offset %d", c.Offset)
}

func (b *brokenSource) Close() error { return nil }
