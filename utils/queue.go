package utils

import (
	"context"
	"fmt"
	"sync"

	"dyfetch/internal"
)

// ProcessFunc handles one item and reports its outcome. Returned
// outcomes must carry the item's ID; an error return is recorded as a
// failed outcome for that item.
type ProcessFunc func(ctx context.Context, item internal.Item) internal.Outcome

// QueueManager bounds concurrency for batches of independent download
// tasks and aggregates per-item outcomes.
type QueueManager struct {
	maxWorkers int
}

// NewQueueManager creates a queue manager with the given worker bound.
// A bound below 1 is clamped to 1.
func NewQueueManager(maxWorkers int) *QueueManager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &QueueManager{maxWorkers: maxWorkers}
}

// MaxWorkers returns the concurrency bound
func (q *QueueManager) MaxWorkers() int {
	return q.maxWorkers
}

type indexedJob struct {
	index int
	item  internal.Item
}

// DownloadBatch processes every item through fn with at most maxWorkers
// running concurrently. It returns one outcome per input item, in input
// order, and only after every submitted item has produced an outcome.
// A failure or panic in one item's fn never cancels sibling items.
func (q *QueueManager) DownloadBatch(ctx context.Context, fn ProcessFunc, items []internal.Item) []internal.Outcome {
	outcomes := make([]internal.Outcome, len(items))
	if len(items) == 0 {
		return outcomes
	}

	workers := q.maxWorkers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan indexedJob)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcomes[job.index] = q.processOne(ctx, fn, job.item)
			}
		}()
	}

	for i, item := range items {
		jobs <- indexedJob{index: i, item: item}
	}
	close(jobs)

	wg.Wait()
	return outcomes
}

// processOne runs fn for a single item, converting panics into failed
// outcomes so they never escape the batch call
func (q *QueueManager) processOne(ctx context.Context, fn ProcessFunc, item internal.Item) (outcome internal.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			internal.LogError("Item %s: panic during processing: %v", item.ID, r)
			outcome = internal.Outcome{
				Status: internal.OutcomeFailed,
				ItemID: item.ID,
				Detail: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	// A cancelled context fails the item without invoking fn; in-flight
	// items already inside fn finish on their own terms.
	if err := ctx.Err(); err != nil {
		return internal.Outcome{
			Status: internal.OutcomeFailed,
			ItemID: item.ID,
			Detail: err.Error(),
		}
	}

	return fn(ctx, item)
}
