package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/metrics"
	"github.com/eduvid/harvester/pkg/queue"
	"github.com/eduvid/harvester/pkg/search"
)

const (
	retryPollTimeout = time.Second
	retryMaxDelay    = 30 * time.Second
	retryMaxAttempts = 5
)

// RetryWorker drains the search retry queue. Each entry is a search that
// previously produced no results; the worker waits out an exponential
// delay, re-runs the search, and journals any URLs it finds. Discovered
// jobs are picked up from the journal on the next run rather than
// enqueued directly.
type RetryWorker struct {
	queue   *queue.Retry
	finder  *search.Finder
	journal core.Journal
	metrics *metrics.Metrics
	logger  *slog.Logger
	delay   func(attempts int) time.Duration
}

// NewRetryWorker creates a retry worker over the given queue, finder and
// journal.
func NewRetryWorker(q *queue.Retry, f *search.Finder, j core.Journal, m *metrics.Metrics) *RetryWorker {
	if m == nil {
		m = metrics.Nop()
	}
	return &RetryWorker{
		queue:   q,
		finder:  f,
		journal: j,
		metrics: m,
		logger:  slog.Default(),
		delay:   retryDelay,
	}
}

// Start processes retry entries until the context is cancelled.
func (w *RetryWorker) Start(ctx context.Context) error {
	for {
		entry, ok := w.queue.Pop(ctx, retryPollTimeout)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err := w.handle(ctx, entry); err != nil {
			return err
		}
	}
}

func (w *RetryWorker) handle(ctx context.Context, entry core.SearchRetry) error {
	if err := sleepFor(ctx, w.delay(entry.Attempts)); err != nil {
		return nil
	}

	w.logger.Info("retrying search",
		"topic", entry.Topic,
		"subtopic", entry.Subtopic,
		"attempt", entry.Attempts)
	w.metrics.SearchRetries.Inc()

	urls, err := w.finder.Find(ctx, entry.Topic, entry.Subtopic, entry.MaxResults)
	if err == nil {
		if recErr := w.journal.RecordSearchAttempt(entry.Topic, entry.Subtopic, len(urls)); recErr != nil {
			return recErr
		}
	}
	if err != nil || len(urls) == 0 {
		return w.requeue(entry, err)
	}

	for _, u := range urls {
		job := core.Job{
			URL:      u,
			Topic:    entry.Topic,
			Subtopic: entry.Subtopic,
			GroupKey: entry.GroupKey,
			Subject:  entry.Subject,
		}
		if err := w.journal.RecordDiscovered(job); err != nil {
			return err
		}
		w.metrics.Discovered.Inc()
	}
	w.logger.Info("search retry succeeded",
		"topic", entry.Topic,
		"subtopic", entry.Subtopic,
		"results", len(urls))
	return nil
}

func (w *RetryWorker) requeue(entry core.SearchRetry, cause error) error {
	entry.Attempts++
	if entry.Attempts > retryMaxAttempts {
		w.logger.Warn("dropping search after repeated failures",
			"topic", entry.Topic,
			"subtopic", entry.Subtopic,
			"attempts", entry.Attempts,
			"error", cause)
		return nil
	}
	w.logger.Info("requeueing search",
		"topic", entry.Topic,
		"subtopic", entry.Subtopic,
		"attempt", entry.Attempts,
		"error", cause)
	w.queue.Push(entry)
	return nil
}

// retryDelay grows exponentially with the attempt count, capped at 30s.
func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
