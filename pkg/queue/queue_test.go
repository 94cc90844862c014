package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvid/harvester/pkg/core"
)

func TestDownload_PopOrdersByNotBefore(t *testing.T) {
	q := NewDownload()
	now := time.Now()

	q.Push(core.Job{URL: "b", NotBefore: now.Add(20 * time.Millisecond)})
	q.Push(core.Job{URL: "a", NotBefore: now})
	q.Push(core.Job{URL: "c", NotBefore: now.Add(40 * time.Millisecond)})

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		job, ok := q.Pop(ctx)
		require.True(t, ok)
		got = append(got, job.URL)
		q.Done()
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDownload_PopWaitsForNotBefore(t *testing.T) {
	q := NewDownload()
	delay := 50 * time.Millisecond
	q.Push(core.Job{URL: "a", NotBefore: time.Now().Add(delay)})

	start := time.Now()
	job, ok := q.Pop(context.Background())
	require.True(t, ok)
	q.Done()

	assert.Equal(t, "a", job.URL)
	assert.GreaterOrEqual(t, time.Since(start), delay-5*time.Millisecond)
}

func TestDownload_PopUnblocksOnPush(t *testing.T) {
	q := NewDownload()

	done := make(chan core.Job, 1)
	go func() {
		job, ok := q.Pop(context.Background())
		if ok {
			done <- job
			q.Done()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(core.Job{URL: "a", NotBefore: time.Now()})

	select {
	case job := <-done:
		assert.Equal(t, "a", job.URL)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}
}

func TestDownload_PopReturnsFalseOnCancel(t *testing.T) {
	q := NewDownload()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestDownload_JoinWaitsForInFlightWork(t *testing.T) {
	q := NewDownload()
	q.Push(core.Job{URL: "a", NotBefore: time.Now()})

	job, ok := q.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a", job.URL)

	// Queue is empty but the popped job is unacknowledged.
	joined := make(chan struct{})
	go func() {
		_ = q.Join(context.Background())
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join returned before Done")
	case <-time.After(30 * time.Millisecond):
	}

	q.Done()

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join never returned after Done")
	}
}

func TestDownload_JoinImmediateWhenEmpty(t *testing.T) {
	q := NewDownload()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, q.Join(ctx))
}

func TestDownload_JoinHonorsContext(t *testing.T) {
	q := NewDownload()
	q.Push(core.Job{URL: "a", NotBefore: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, q.Join(ctx))
}

func TestDownload_ConcurrentPushPop(t *testing.T) {
	q := NewDownload()
	const n = 50

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]struct{})

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.Pop(ctx)
				if !ok {
					return
				}
				mu.Lock()
				seen[job.URL] = struct{}{}
				mu.Unlock()
				q.Done()
			}
		}()
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		q.Push(core.Job{URL: string(rune('a'+i%26)) + string(rune('0'+i/26)), NotBefore: now})
	}

	joinCtx, joinCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer joinCancel()
	require.NoError(t, q.Join(joinCtx))
	cancel()
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestRetry_FIFO(t *testing.T) {
	q := NewRetry()

	q.Push(core.SearchRetry{Topic: "a"})
	q.Push(core.SearchRetry{Topic: "b"})

	first, ok := q.Pop(context.Background(), time.Second)
	require.True(t, ok)
	second, ok := q.Pop(context.Background(), time.Second)
	require.True(t, ok)

	assert.Equal(t, "a", first.Topic)
	assert.Equal(t, "b", second.Topic)
}

func TestRetry_PopTimesOut(t *testing.T) {
	q := NewRetry()

	start := time.Now()
	_, ok := q.Pop(context.Background(), 30*time.Millisecond)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestRetry_Len(t *testing.T) {
	q := NewRetry()
	assert.Zero(t, q.Len())

	q.Push(core.SearchRetry{Topic: "a"})
	assert.Equal(t, 1, q.Len())
}
