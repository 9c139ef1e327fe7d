// Package progress tracks how far a scan has advanced through an image.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker counts completed blocks against a known total. Safe for concurrent
// use.
type Tracker struct {
	total   uint64
	done    atomic.Uint64
	started time.Time
}

func NewTracker(total uint64) *Tracker {
	return &Tracker{total: total, started: time.Now()}
}

// Add records n completed blocks.
func (t *Tracker) Add(n uint64) {
	t.done.Add(n)
}

// Done returns the number of completed blocks.
func (t *Tracker) Done() uint64 {
	return t.done.Load()
}

// Fraction returns completion in [0, 1]. An empty image counts as done.
func (t *Tracker) Fraction() float64 {
	if t.total == 0 {
		return 1
	}
	return float64(t.done.Load()) / float64(t.total)
}

// Elapsed returns the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.started)
}

func (t *Tracker) String() string {
	return fmt.Sprintf("%s of %s blocks (%.1f%%)",
		humanize.Comma(int64(t.done.Load())),
		humanize.Comma(int64(t.total)),
		t.Fraction()*100)
}
