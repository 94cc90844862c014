// Package queue provides the two in-memory queues of the pipeline: the
// retry-aware download queue, a binary heap ordered by each job's
// not-before timestamp, and the unbounded FIFO of failed-discovery
// descriptors drained by the dedicated retry worker. Both are rebuilt
// from the durable stores at startup, never persisted themselves.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/eduvid/harvester/pkg/core"
)

type jobHeap []core.Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].NotBefore.Before(h[j].NotBefore) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(core.Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Download is the retry-aware download queue. Pop blocks until the
// earliest job's not-before timestamp has passed, so workers never busy
// poll a future entry. An unfinished counter covers entries a worker has
// popped but not yet acknowledged, which Join waits on.
type Download struct {
	mu         sync.Mutex
	items      jobHeap
	unfinished int
	notify     chan struct{}
	drainers   []chan struct{}
}

// NewDownload returns an empty download queue.
func NewDownload() *Download {
	return &Download{notify: make(chan struct{}, 1)}
}

// Push inserts a job ordered by its NotBefore timestamp and counts it as
// unfinished until a matching Done call.
func (q *Download) Push(job core.Job) {
	q.mu.Lock()
	heap.Push(&q.items, job)
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the earliest eligible job, blocking until one
// becomes due or ctx is done. The caller owns the returned job and must
// acknowledge it: Done on terminal success or failure, or Push followed by
// Done when re-queueing a retry.
func (q *Download) Pop(ctx context.Context) (core.Job, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			wait := time.Until(q.items[0].NotBefore)
			if wait <= 0 {
				job := heap.Pop(&q.items).(core.Job)
				q.mu.Unlock()
				return job, true
			}
			q.mu.Unlock()

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return core.Job{}, false
			case <-timer.C:
			case <-q.notify:
				// an earlier entry may have arrived
				timer.Stop()
			}
			continue
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return core.Job{}, false
		case <-q.notify:
		}
	}
}

// Done acknowledges one previously pushed entry. When the unfinished count
// reaches zero all Join waiters are released.
func (q *Download) Done() {
	q.mu.Lock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		for _, ch := range q.drainers {
			close(ch)
		}
		q.drainers = nil
	}
	q.mu.Unlock()
}

// Join blocks until every pushed entry has been acknowledged, including
// entries temporarily held by a worker mid-processing, or until ctx is
// done.
func (q *Download) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.drainers = append(q.drainers, ch)
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// Len returns the number of entries currently waiting in the heap.
func (q *Download) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of pushed entries not yet acknowledged.
func (q *Download) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
