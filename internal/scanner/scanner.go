// Package scanner drives paginated iteration over an image source and hands
// the pages to a sink through a bounded worker pool. The sequence of pages
// produced by one cursor is strictly ordered by increasing offset; the order
// in which workers finish processing them is not specified.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"

	"github.com/scanforge/scanforge/internal/imageio"
	"github.com/scanforge/scanforge/internal/progress"
	"github.com/scanforge/scanforge/internal/slogutil"
)

// PageSink consumes pages produced by a scan. Implementations must be safe
// for concurrent calls. The page is owned by the sink for the duration of
// the call and must not be retained afterwards.
type PageSink interface {
	ProcessPage(ctx context.Context, page *imageio.Page) error
}

// Config controls a scan run.
type Config struct {
	// Workers bounds the number of pages processed concurrently. Zero means
	// one worker per CPU.
	Workers int

	// LogEvery emits a progress log line every N blocks. Zero disables
	// periodic progress logging.
	LogEvery uint64
}

// Scanner pulls pages from an image source and fans them out to a sink.
type Scanner struct {
	src     imageio.ImageSource
	sink    PageSink
	cfg     Config
	log     *slog.Logger
	tracker *progress.Tracker
}

func New(src imageio.ImageSource, sink PageSink, cfg Config) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{
		src:     src,
		sink:    sink,
		cfg:     cfg,
		log:     slog.Default().With("component", "scanner"),
		tracker: progress.NewTracker(src.MaxBlocks()),
	}
}

// Tracker exposes the progress tracker for external reporting.
func (s *Scanner) Tracker() *progress.Tracker { return s.tracker }

// Run iterates the image from the beginning and processes every page. Page
// reads happen sequentially on the calling goroutine, preserving per-cursor
// ordering; sink calls run on the pool. A read failure distinct from
// end-of-data aborts the scan: the address space past the failing offset is
// presumed corrupted. Sink errors cancel the run after in-flight pages
// finish.
func (s *Scanner) Run(ctx context.Context) error {
	scanID := uuid.NewString()
	ctx = slogutil.With(ctx, "scan_id", scanID)

	s.log.InfoContext(ctx, "scan started",
		"image_size", s.src.ImageSize(),
		"max_blocks", s.src.MaxBlocks(),
		"workers", s.cfg.Workers)

	pl := concpool.New().WithErrors().WithFirstError().WithMaxGoroutines(s.cfg.Workers)

	var blocks uint64
	for cur := s.src.Begin(); !cur.EOF; s.src.Increment(&cur) {
		if err := ctx.Err(); err != nil {
			_ = pl.Wait()
			return err
		}

		page, err := s.src.AllocPage(&cur)
		if errors.Is(err, imageio.ErrEndOfImage) {
			break
		}
		if err != nil {
			waitErr := pl.Wait()
			s.log.ErrorContext(ctx, "fatal read error, aborting scan",
				"position", s.src.Label(cur), "error", err)
			if waitErr != nil {
				return fmt.Errorf("read %s: %w (sink: %v)", s.src.Label(cur), err, waitErr)
			}
			return fmt.Errorf("read %s: %w", s.src.Label(cur), err)
		}

		pl.Go(func() error {
			if err := s.sink.ProcessPage(ctx, page); err != nil {
				return fmt.Errorf("process page %s: %w", page.Addr, err)
			}
			s.tracker.Add(1)
			return nil
		})

		blocks++
		if s.cfg.LogEvery > 0 && blocks%s.cfg.LogEvery == 0 {
			s.log.InfoContext(ctx, "scan progress",
				"position", s.src.Label(cur),
				"fraction_done", fmt.Sprintf("%.3f", s.src.FractionDone(cur)))
		}
	}

	if err := pl.Wait(); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "scan finished",
		"blocks", blocks,
		"elapsed", s.tracker.Elapsed().Round(time.Millisecond))
	return nil
}
