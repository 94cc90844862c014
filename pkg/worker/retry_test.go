package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/queue"
	"github.com/eduvid/harvester/pkg/search"
)

type scriptedProvider struct {
	mu      sync.Mutex
	results []search.Result
	errs    []error
	calls   int
}

func (s *scriptedProvider) Search(ctx context.Context, query string, maxResults int, region, safety string) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.results, nil
}

func newRetryWorkerForTest(p search.Provider, q *queue.Retry, jnl *fakeJournal) *RetryWorker {
	finder := search.NewFinder(p, search.DefaultFinderConfig(), nil)
	w := NewRetryWorker(q, finder, jnl, nil)
	w.delay = func(int) time.Duration { return 0 }
	return w
}

func startRetryWorker(t *testing.T, w *RetryWorker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx) //nolint:errcheck
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestRetryWorker_JournalsFoundVideos(t *testing.T) {
	p := &scriptedProvider{results: []search.Result{
		{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
	}}
	q := queue.NewRetry()
	jnl := &fakeJournal{}
	w := newRetryWorkerForTest(p, q, jnl)

	cancel := startRetryWorker(t, w)
	defer cancel()

	q.Push(core.SearchRetry{
		Topic:      "physics",
		Subtopic:   "gravity",
		GroupKey:   "science",
		Subject:    "nature",
		MaxResults: 2,
		Attempts:   1,
	})

	waitFor(t, func() bool {
		jnl.mu.Lock()
		defer jnl.mu.Unlock()
		return len(jnl.discovered) == 1
	})

	jnl.mu.Lock()
	defer jnl.mu.Unlock()
	job := jnl.discovered[0]
	assert.Equal(t, "https://www.youtube.com/watch?v=aaaaaaaaaaa", job.URL)
	assert.Equal(t, "physics", job.Topic)
	assert.Equal(t, "gravity", job.Subtopic)
	assert.Equal(t, "science", job.GroupKey)
	assert.Equal(t, "nature", job.Subject)
	require.Len(t, jnl.attempts, 1)
	assert.Equal(t, 1, jnl.attempts[0].ResultCount)
}

func TestRetryWorker_RequeuesOnError(t *testing.T) {
	p := &scriptedProvider{
		errs: []error{errors.New("rate limited"), nil},
		results: []search.Result{
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}
	q := queue.NewRetry()
	jnl := &fakeJournal{}
	w := newRetryWorkerForTest(p, q, jnl)

	cancel := startRetryWorker(t, w)
	defer cancel()

	q.Push(core.SearchRetry{Topic: "physics", Subtopic: "gravity", MaxResults: 2, Attempts: 1})

	waitFor(t, func() bool {
		jnl.mu.Lock()
		defer jnl.mu.Unlock()
		return len(jnl.discovered) == 1
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.GreaterOrEqual(t, p.calls, 2)
}

func TestRetryWorker_DropsAfterRepeatedFailures(t *testing.T) {
	p := &scriptedProvider{} // always zero results
	q := queue.NewRetry()
	jnl := &fakeJournal{}
	w := newRetryWorkerForTest(p, q, jnl)

	cancel := startRetryWorker(t, w)
	defer cancel()

	q.Push(core.SearchRetry{Topic: "physics", Subtopic: "gravity", MaxResults: 2, Attempts: 1})

	// Entry retries until it hits the attempt ceiling, then is dropped.
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls >= 5 && q.Len() == 0
	})

	jnl.mu.Lock()
	defer jnl.mu.Unlock()
	assert.Empty(t, jnl.discovered)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(0))
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 16*time.Second, retryDelay(4))
	assert.Equal(t, 30*time.Second, retryDelay(5))
	assert.Equal(t, 30*time.Second, retryDelay(9))
}
