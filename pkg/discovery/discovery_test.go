package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvid/harvester/pkg/journal"
	"github.com/eduvid/harvester/pkg/queue"
	"github.com/eduvid/harvester/pkg/runstate"
	"github.com/eduvid/harvester/pkg/search"
	"github.com/eduvid/harvester/pkg/topics"
)

type stubProvider struct {
	mu      sync.Mutex
	results map[string][]search.Result
	errs    map[string]error
	calls   int
}

func (s *stubProvider) Search(ctx context.Context, query string, maxResults int, region, safety string) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.results[query], nil
}

type harness struct {
	producer *Producer
	journal  *journal.Journal
	state    *runstate.Store
	retries  *queue.Retry
	provider *stubProvider
}

func fastConfig() Config {
	return Config{
		MaxPerSubtopic: 2,
		MinDelay:       0,
		MaxDelay:       0,
		SearchRetries:  2,
		RetryPause:     time.Millisecond,
	}
}

func newHarness(t *testing.T, provider *stubProvider) *harness {
	t.Helper()
	dir := t.TempDir()

	jnl, err := journal.Open(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	state, err := runstate.Open(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	finder := search.NewFinder(provider, search.DefaultFinderConfig(), nil)
	retries := queue.NewRetry()

	return &harness{
		producer: NewProducer(finder, jnl, state, retries, fastConfig(), nil),
		journal:  jnl,
		state:    state,
		retries:  retries,
		provider: provider,
	}
}

func loadHierarchy(t *testing.T, content string) *topics.Hierarchy {
	t.Helper()
	path := filepath.Join(t.TempDir(), "science.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	h, err := topics.Load(path)
	require.NoError(t, err)
	return h
}

const singleSubtopic = `{"grades 1-3": [{"topic": "physics", "subtopics": ["gravity"]}]}`

func TestProducer_DiscoversAndEnqueues(t *testing.T) {
	p := &stubProvider{results: map[string][]search.Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
			{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Duration: "4:00"},
		},
	}}
	h := newHarness(t, p)
	downloads := queue.NewDownload()

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), downloads))

	assert.Equal(t, 2, downloads.Len())

	pending, err := h.journal.PendingJobs(100)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "physics", pending[0].Topic)
	assert.Equal(t, "gravity", pending[0].Subtopic)
	assert.Equal(t, "grades 1-3", pending[0].GroupKey)
	assert.Equal(t, "science", pending[0].Subject)

	attempted, err := h.journal.SearchAttempted("physics", "gravity")
	require.NoError(t, err)
	assert.True(t, attempted)
	assert.True(t, h.state.IsSubtopicCompleted("physics", "gravity"))
}

func TestProducer_NilSinkJournalsOnly(t *testing.T) {
	p := &stubProvider{results: map[string][]search.Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
		},
	}}
	h := newHarness(t, p)

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))

	pending, err := h.journal.PendingJobs(100)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestProducer_Idempotent(t *testing.T) {
	p := &stubProvider{results: map[string][]search.Result{
		"physics gravity video": {
			{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"},
			{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Duration: "4:00"},
		},
	}}
	h := newHarness(t, p)
	hier := loadHierarchy(t, singleSubtopic)

	require.NoError(t, h.producer.Run(context.Background(), hier, nil))
	require.NoError(t, h.producer.Run(context.Background(), hier, nil))

	pending, err := h.journal.PendingJobs(100)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "second run must not re-journal")
}

func TestProducer_SkipsAttemptedSearchAcrossRestarts(t *testing.T) {
	p := &stubProvider{}
	h := newHarness(t, p)

	// A previous process already searched this pair and found nothing.
	require.NoError(t, h.journal.RecordSearchAttempt("physics", "gravity", 0))

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))

	p.mu.Lock()
	calls := p.calls
	p.mu.Unlock()
	assert.Zero(t, calls, "attempted search must not be repeated")
	assert.True(t, h.state.IsSubtopicCompleted("physics", "gravity"))
}

func TestProducer_ZeroResultsGoToRetryQueue(t *testing.T) {
	p := &stubProvider{} // nothing found for any query
	h := newHarness(t, p)

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))

	require.Equal(t, 1, h.retries.Len())
	entry, ok := h.retries.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "physics", entry.Topic)
	assert.Equal(t, "gravity", entry.Subtopic)
	assert.Equal(t, 1, entry.Attempts)

	// The empty search is still journaled so it is not repeated.
	attempted, err := h.journal.SearchAttempted("physics", "gravity")
	require.NoError(t, err)
	assert.True(t, attempted)
}

func TestProducer_SearchErrorsGoToRetryQueue(t *testing.T) {
	p := &stubProvider{errs: map[string]error{
		"physics gravity video":     errors.New("rate limited"),
		"gravity educational video": errors.New("rate limited"),
		"gravity animated video":    errors.New("rate limited"),
	}}
	h := newHarness(t, p)

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))

	assert.Equal(t, 1, h.retries.Len())

	// Errors are not search attempts; a later run may try again directly.
	attempted, err := h.journal.SearchAttempted("physics", "gravity")
	require.NoError(t, err)
	assert.False(t, attempted)
}

func TestProducer_SkipsCompletedSubtopics(t *testing.T) {
	p := &stubProvider{}
	h := newHarness(t, p)

	require.NoError(t, h.state.MarkSubtopicCompleted("physics", "gravity"))
	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Zero(t, p.calls)
}

func TestProducer_PauseEndsTheWalk(t *testing.T) {
	p := &stubProvider{results: map[string][]search.Result{
		"physics gravity video": {{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"}},
	}}
	h := newHarness(t, p)
	require.NoError(t, h.state.Pause())

	done := make(chan error, 1)
	go func() {
		done <- h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("paused producer must return, not wait")
	}

	p.mu.Lock()
	calls := p.calls
	p.mu.Unlock()
	assert.Zero(t, calls, "no search after pause")

	// The subtopic was never marked completed, so resuming picks it up.
	assert.False(t, h.state.IsSubtopicCompleted("physics", "gravity"))
	require.NoError(t, h.state.Resume())
	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, singleSubtopic), nil))
	assert.True(t, h.state.IsSubtopicCompleted("physics", "gravity"))
}

func TestProducer_WalksWholeHierarchy(t *testing.T) {
	content := `{
	  "grades 1-3": [{"topic": "plants", "subtopics": ["seeds", "roots"]}],
	  "grades 4-6": [{"topic": "physics", "subtopics": ["gravity"]}]
	}`
	p := &stubProvider{results: map[string][]search.Result{
		"plants seeds video":    {{URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa", Duration: "5:00"}},
		"plants roots video":    {{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Duration: "5:00"}},
		"physics gravity video": {{URL: "https://www.youtube.com/watch?v=ccccccccccc", Duration: "5:00"}},
	}}
	h := newHarness(t, p)

	require.NoError(t, h.producer.Run(context.Background(), loadHierarchy(t, content), nil))

	pending, err := h.journal.PendingJobs(100)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
	assert.True(t, h.state.IsSubtopicCompleted("plants", "seeds"))
	assert.True(t, h.state.IsSubtopicCompleted("plants", "roots"))
	assert.True(t, h.state.IsSubtopicCompleted("physics", "gravity"))
}
