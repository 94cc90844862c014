package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/fsutil"
	"github.com/eduvid/harvester/pkg/media"
	"github.com/eduvid/harvester/pkg/metastore"
	"github.com/eduvid/harvester/pkg/metrics"
	"github.com/eduvid/harvester/pkg/queue"
)

// Pool processes download jobs from the delay queue.
type Pool struct {
	queue   *queue.Download
	journal core.Journal
	state   core.StateStore
	tool    media.Tool
	config  PoolConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewPool creates a pool over the given queue, journal, state store and
// media tool.
func NewPool(q *queue.Download, j core.Journal, s core.StateStore, t media.Tool, opts ...PoolOption) *Pool {
	config := PoolConfig{
		Workers:     3,
		MaxAttempts: 5,
		Backoff:     core.DefaultBackoff(),
		MaxDuration: 15 * time.Minute,
		MinPace:     2 * time.Second,
		MaxPace:     5 * time.Second,
		DownloadDir: "downloads",
		OutputDir:   "processed",
	}
	for _, opt := range opts {
		opt.ApplyPool(&config)
	}
	if config.Metrics == nil {
		config.Metrics = metrics.Nop()
	}

	return &Pool{
		queue:   q,
		journal: j,
		state:   s,
		tool:    t,
		config:  config,
		logger:  slog.Default(),
	}
}

// Start launches the workers and blocks until the context is cancelled or
// a worker hits a storage failure it cannot recover from.
func (p *Pool) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, p.config.Workers)
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.run(ctx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}

	p.wg.Wait()
	close(errs)
	for err := range errs {
		if core.IsFatal(err) {
			return err
		}
	}
	return ctx.Err()
}

func (p *Pool) run(ctx context.Context) error {
	workerID := uuid.New().String()
	logger := p.logger.With("worker_id", workerID)

	for {
		if err := p.waitWhilePaused(ctx); err != nil {
			return nil
		}

		job, ok := p.queue.Pop(ctx)
		if !ok {
			return nil
		}
		p.config.Metrics.QueueDepth.Set(float64(p.queue.Len()))

		err := p.process(ctx, logger, job)
		p.queue.Done()
		if err != nil {
			return err
		}

		if err := p.pace(ctx); err != nil {
			return nil
		}
	}
}

// waitWhilePaused blocks while the run is paused. In-flight work is never
// interrupted; the check only gates picking up the next job.
func (p *Pool) waitWhilePaused(ctx context.Context) error {
	for p.state.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return ctx.Err()
}

func (p *Pool) pace(ctx context.Context) error {
	delay := p.config.MinPace
	if span := p.config.MaxPace - p.config.MinPace; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// process downloads one job. The returned error is non-nil only for
// storage failures that must stop the pool; ordinary download failures
// are handled by requeueing or journaling.
func (p *Pool) process(ctx context.Context, logger *slog.Logger, job core.Job) error {
	if err := p.state.SetCurrentTask(&job); err != nil {
		return err
	}
	defer p.state.SetCurrentTask(nil) //nolint:errcheck

	logger.Info("processing video",
		"url", job.URL,
		"topic", job.Topic,
		"subtopic", job.Subtopic,
		"attempt", job.Attempts)

	res, err := p.download(ctx, job)
	if err != nil {
		return p.handleFailure(logger, job, err)
	}

	if err := p.journal.RecordCompleted(job, res); err != nil {
		return err
	}
	if err := p.state.AddCompletedTask(job); err != nil {
		return err
	}
	p.config.Metrics.Completed.Inc()
	p.recordMetadata(ctx, logger, job, res)

	logger.Info("video completed", "url", job.URL, "path", res.LocalPath)
	return nil
}

func (p *Pool) download(ctx context.Context, job core.Job) (core.Result, error) {
	info, err := p.tool.FetchInfo(ctx, job.URL)
	if err != nil {
		return core.Result{}, err
	}
	if p.config.MaxDuration > 0 && info.Duration > p.config.MaxDuration {
		return core.Result{}, core.Reject(fmt.Errorf("video too long: %s", info.Duration))
	}

	src, err := p.tool.FetchMedia(ctx, job.URL, p.config.DownloadDir)
	if err != nil {
		return core.Result{}, err
	}
	defer os.Remove(src)

	dst := media.OutputPath(p.config.OutputDir, job, info)
	if err := p.tool.Transcode(ctx, src, dst); err != nil {
		return core.Result{}, err
	}

	return core.Result{
		VideoID:    info.ID,
		LocalPath:  dst,
		Duration:   int(info.Duration.Seconds()),
		Title:      info.Title,
		Channel:    info.Channel,
		UploadDate: info.UploadDate,
	}, nil
}

// handleFailure requeues the job with backoff, or records it as failed
// when the content was rejected or the attempt ceiling is reached.
func (p *Pool) handleFailure(logger *slog.Logger, job core.Job, cause error) error {
	reason := fsutil.TruncateError(cause.Error())

	if core.IsRejected(cause) {
		logger.Warn("video rejected", "url", job.URL, "reason", reason)
		return p.fail(job, reason)
	}

	job.Attempts++
	if job.Attempts > p.config.MaxAttempts {
		logger.Warn("giving up on video",
			"url", job.URL,
			"attempts", job.Attempts,
			"reason", reason)
		return p.fail(job, reason)
	}

	delay := p.config.Backoff.Delay(job.Attempts)
	job.NotBefore = time.Now().Add(delay)
	logger.Info("requeueing video",
		"url", job.URL,
		"attempt", job.Attempts,
		"retry_in", delay,
		"reason", reason)
	p.queue.Push(job)
	p.config.Metrics.Retries.Inc()
	return nil
}

func (p *Pool) fail(job core.Job, reason string) error {
	if err := p.journal.RecordFailed(job, reason); err != nil {
		return err
	}
	if err := p.state.AddFailedTask(job, reason); err != nil {
		return err
	}
	p.config.Metrics.Failed.Inc()
	return nil
}

func (p *Pool) recordMetadata(ctx context.Context, logger *slog.Logger, job core.Job, res core.Result) {
	if p.config.Metastore == nil {
		return
	}
	rec := &metastore.VideoRecord{
		VideoID:    res.VideoID,
		URL:        job.URL,
		Title:      res.Title,
		Channel:    res.Channel,
		Duration:   res.Duration,
		UploadDate: res.UploadDate,
		Subject:    job.Subject,
		GroupKey:   job.GroupKey,
		Topic:      job.Topic,
		Subtopic:   job.Subtopic,
		LocalPath:  res.LocalPath,
	}
	if err := p.config.Metastore.Upsert(ctx, rec); err != nil {
		logger.Warn("metadata write failed", "video_id", res.VideoID, "error", err)
	}
}
