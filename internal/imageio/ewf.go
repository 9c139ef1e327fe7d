package imageio

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"
)

// Decoder is the contract an external EWF (Expert Witness Format) library
// must satisfy. The container decoding itself is opaque to this package: we
// hand the decoder the segment paths, ask for the media size, and issue
// sized random reads.
type Decoder interface {
	// OpenSegments opens the ordered container segment files. A failure
	// here is fatal for the image.
	OpenSegments(paths []string) error

	// ReadAt reads len(p) bytes of decoded media at offset off.
	ReadAt(p []byte, off int64) (int, error)

	// MediaSize returns the total decoded media size in bytes.
	MediaSize() uint64

	Close() error
}

var (
	decoderMu  sync.RWMutex
	newDecoder func() Decoder
)

// RegisterDecoder installs the EWF decoder constructor. It is called from an
// init function when decoder support is built in; without it, opening an
// .E01 image fails with ErrUnsupportedFormat.
func RegisterDecoder(fn func() Decoder) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	newDecoder = fn
}

func decoderAvailable() bool {
	decoderMu.RLock()
	defer decoderMu.RUnlock()
	return newDecoder != nil
}

// ewfImage adapts an external EWF decoder to the ImageSource contract. The
// decoder's random reads are inherently positional, so no per-handle
// serialization is needed here.
type ewfImage struct {
	byteImage
	fs   afero.Fs
	path string
	dec  Decoder
	log  *slog.Logger
}

var _ ImageSource = (*ewfImage)(nil)

func newEWFImage(fs afero.Fs, path string, cfg Config) *ewfImage {
	return &ewfImage{
		byteImage: byteImage{cfg: cfg},
		fs:        fs,
		path:      path,
		log:       slog.Default().With("component", "ewf-image"),
	}
}

// ewfSiblings collects the container's segment files using its own numbering
// convention: file.E01, file.E02, ... until a probe misses.
func ewfSiblings(fs afero.Fs, path string) ([]string, error) {
	paths := []string{path}

	ext := filepath.Ext(path)
	if len(ext) != 4 || !strings.EqualFold(ext, ".e01") {
		return paths, nil
	}
	base := strings.TrimSuffix(path, ext)

	for n := 2; ; n++ {
		probe := fmt.Sprintf("%s.E%02d", base, n)
		exists, err := afero.Exists(fs, probe)
		if err != nil {
			return nil, fmt.Errorf("probe container segment %s: %w", probe, err)
		}
		if !exists {
			break
		}
		paths = append(paths, probe)
	}
	return paths, nil
}

func (e *ewfImage) Open() error {
	decoderMu.RLock()
	fn := newDecoder
	decoderMu.RUnlock()
	if fn == nil {
		return fmt.Errorf("%w: compiled without EWF support", ErrUnsupportedFormat)
	}

	paths, err := ewfSiblings(e.fs, e.path)
	if err != nil {
		return err
	}

	dec := fn()
	if err := dec.OpenSegments(paths); err != nil {
		return fmt.Errorf("open EWF image %s: %w", e.path, err)
	}
	e.dec = dec
	e.size = dec.MediaSize()
	e.log.Debug("opened EWF image",
		"path", e.path,
		"container_segments", len(paths),
		"media_size", e.size)
	return nil
}

// PRead delegates to the decoder, clamping the request so it never extends
// past the media size. Decoder failures are retried briefly before being
// reported: container reads can fail transiently on decompression of a
// damaged chunk without the rest of the image being unreadable.
func (e *ewfImage) PRead(p []byte, off uint64) (int, error) {
	if off >= e.size {
		return 0, nil
	}
	if remaining := e.size - off; uint64(len(p)) > remaining {
		p = p[:remaining]
	}

	var n int
	err := retry.Do(
		func() error {
			var readErr error
			n, readErr = e.dec.ReadAt(p, int64(off))
			return readErr
		},
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return n, fmt.Errorf("%w: EWF read at offset %d: %v", ErrRead, off, err)
	}
	return n, nil
}

func (e *ewfImage) AllocPage(c *Cursor) (*Page, error) {
	return e.allocPage(e, c)
}

func (e *ewfImage) Close() error {
	if e.dec == nil {
		return nil
	}
	return e.dec.Close()
}
