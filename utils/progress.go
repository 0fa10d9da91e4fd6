package utils

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker displays byte-level progress for a single streamed
// asset download
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
}

// NewProgressTracker creates a progress tracker for one download
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:     quiet,
		startTime: time.Now(),
		total:     total,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		tracker.bar = bar
	}

	return tracker
}

// Reader wraps r so reads advance the bar
func (p *ProgressTracker) Reader(r io.Reader) io.Reader {
	if p.bar == nil {
		return r
	}
	return p.bar.NewProxyReader(r)
}

// Finish completes the progress bar
func (p *ProgressTracker) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

// BatchTracker displays item-level progress for one scope's dispatch
// phase. Safe for concurrent Increment calls from batch workers.
type BatchTracker struct {
	bar   *pb.ProgressBar
	quiet bool
	mutex sync.Mutex

	success int
	failed  int
	skipped int
}

// NewBatchTracker creates an item counter bar for a batch of the given size
func NewBatchTracker(total int, quiet bool) *BatchTracker {
	tracker := &BatchTracker{quiet: quiet}
	if !quiet && total > 0 {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }}`
		bar := pb.ProgressBarTemplate(tmpl).Start(total)
		bar.Set("prefix", "Items: ")
		tracker.bar = bar
	}
	return tracker
}

// Increment records one finished item with its outcome category
func (b *BatchTracker) Increment(success, skipped bool) {
	b.mutex.Lock()
	switch {
	case skipped:
		b.skipped++
	case success:
		b.success++
	default:
		b.failed++
	}
	b.mutex.Unlock()

	if b.bar != nil {
		b.bar.Increment()
	}
}

// Finish completes the bar and prints a one-line batch summary
func (b *BatchTracker) Finish() {
	if b.bar != nil {
		b.bar.Finish()
	}
	if !b.quiet {
		fmt.Printf("Batch done: %d ok, %d failed, %d skipped\n", b.success, b.failed, b.skipped)
	}
}
