package queue

import (
	"context"
	"sync"
	"time"

	"github.com/eduvid/harvester/pkg/core"
)

// Retry is the unbounded FIFO of failed-discovery descriptors. It is
// deliberately separate from the download queue so a storm of discovery
// failures cannot starve download workers, and vice versa.
type Retry struct {
	mu     sync.Mutex
	items  []core.SearchRetry
	notify chan struct{}
}

// NewRetry returns an empty retry queue.
func NewRetry() *Retry {
	return &Retry{notify: make(chan struct{}, 1)}
}

// Push appends a descriptor.
func (q *Retry) Push(item core.SearchRetry) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest descriptor, waiting up to timeout for one to
// arrive. The second return is false on timeout or context cancellation.
func (q *Retry) Pop(ctx context.Context, timeout time.Duration) (core.SearchRetry, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return core.SearchRetry{}, false
		case <-deadline.C:
			return core.SearchRetry{}, false
		case <-q.notify:
		}
	}
}

// Len returns the number of queued descriptors.
func (q *Retry) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
