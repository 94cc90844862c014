// Package runner coordinates a harvest run: discovery, the download pool,
// the search retry worker, and pause/resume control.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/discovery"
	"github.com/eduvid/harvester/pkg/media"
	"github.com/eduvid/harvester/pkg/metrics"
	"github.com/eduvid/harvester/pkg/queue"
	"github.com/eduvid/harvester/pkg/search"
	"github.com/eduvid/harvester/pkg/topics"
	"github.com/eduvid/harvester/pkg/worker"
)

// pendingLoadLimit caps how many journaled-but-unfinished jobs a run
// reloads into the queue at startup.
const pendingLoadLimit = 1000

// Options selects what a run does.
type Options struct {
	// Mode selects discovery, download, or both.
	Mode core.Mode

	// MaxPerSubtopic overrides the configured per-subtopic discovery cap
	// for this run when positive.
	MaxPerSubtopic int

	// Resume keeps the existing run state instead of resetting it.
	Resume bool
}

// Params wires a Runner together.
type Params struct {
	Hierarchy   *topics.Hierarchy
	Journal     core.Journal
	State       core.StateStore
	Finder      *search.Finder
	Tool        media.Tool
	Discovery   discovery.Config
	PoolOptions []worker.PoolOption
	Metrics     *metrics.Metrics
}

// Runner executes harvest runs. Only one run may be active at a time.
type Runner struct {
	hierarchy *topics.Hierarchy
	journal   core.Journal
	state     core.StateStore
	finder    *search.Finder
	tool      media.Tool
	discovery discovery.Config
	poolOpts  []worker.PoolOption
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu          sync.Mutex
	running     bool
	phase       core.Phase
	prePause    core.Phase
	startedAt   time.Time
	baseline    int
	perSubtopic int
	downloads   *queue.Download
}

// New creates a runner from the given parts.
func New(p Params) *Runner {
	if p.Metrics == nil {
		p.Metrics = metrics.Nop()
	}
	return &Runner{
		hierarchy: p.Hierarchy,
		journal:   p.Journal,
		state:     p.State,
		finder:    p.Finder,
		tool:      p.Tool,
		discovery: p.Discovery,
		poolOpts:  p.PoolOptions,
		metrics:   p.Metrics,
		logger:    slog.Default(),
		phase:     core.PhaseIdle,
	}
}

// Run executes one harvest run and blocks until it finishes or the
// context is cancelled. Returns core.ErrAlreadyRunning if a run is active.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return core.ErrAlreadyRunning
	}
	r.running = true
	r.startedAt = time.Now()
	r.phase = phaseFor(opts.Mode)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.phase = core.PhaseStopped
		r.downloads = nil
		r.mu.Unlock()
	}()

	if err := r.prepare(opts); err != nil {
		return err
	}

	cfg := r.discovery
	if opts.MaxPerSubtopic > 0 {
		cfg.MaxPerSubtopic = opts.MaxPerSubtopic
	}

	downloads := queue.NewDownload()
	retries := queue.NewRetry()
	r.mu.Lock()
	r.downloads = downloads
	r.baseline = r.state.Summary().CompletedCount
	r.perSubtopic = cfg.MaxPerSubtopic
	r.mu.Unlock()

	// Pending jobs are reloaded before anything else in every mode, so a
	// crashed run's work is never lost. Discover-only runs leave the
	// queue undrained; the jobs stay pending in the journal.
	if err := r.loadPending(downloads); err != nil {
		return err
	}

	switch opts.Mode {
	case core.ModeDiscover:
		return r.runDiscover(ctx, retries, cfg)
	case core.ModeDownload:
		return r.runDownload(ctx, downloads)
	default:
		return r.runCombined(ctx, downloads, retries, cfg)
	}
}

// prepare resets or resumes the run state and seeds the search dedup set
// from everything the journal has ever seen.
func (r *Runner) prepare(opts Options) error {
	if opts.Resume {
		if err := r.state.Resume(); err != nil {
			return err
		}
	} else {
		if err := r.state.Reset(); err != nil {
			return err
		}
	}

	seen, err := r.journal.ExistingURLs()
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	r.finder.MarkSeen(urls...)
	return nil
}

// loadPending requeues journaled jobs that never completed or failed.
func (r *Runner) loadPending(downloads *queue.Download) error {
	pending, err := r.journal.PendingJobs(pendingLoadLimit)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, job := range pending {
		if job.NotBefore.Before(now) {
			job.NotBefore = now
		}
		downloads.Push(job)
	}
	if len(pending) > 0 {
		r.logger.Info("requeued unfinished jobs", "count", len(pending))
	}
	if pc, ok := r.state.(interface{ SetPendingCount(int) error }); ok {
		if err := pc.SetPendingCount(len(pending)); err != nil {
			return err
		}
	}
	r.metrics.QueueDepth.Set(float64(downloads.Len()))
	return nil
}

func (r *Runner) runDiscover(ctx context.Context, retries *queue.Retry, cfg discovery.Config) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	retryWorker := worker.NewRetryWorker(retries, r.finder, r.journal, r.metrics)
	go retryWorker.Start(runCtx) //nolint:errcheck

	producer := discovery.NewProducer(r.finder, r.journal, r.state, retries, cfg, r.metrics)
	if err := producer.Run(ctx, r.hierarchy, nil); err != nil {
		return err
	}
	return r.drainRetries(ctx, retries)
}

func (r *Runner) runDownload(ctx context.Context, downloads *queue.Download) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := worker.NewPool(downloads, r.journal, r.state, r.tool, r.poolOpts...)
	poolErr := make(chan error, 1)
	go func() { poolErr <- pool.Start(runCtx) }()

	return r.awaitDrain(runCtx, cancel, downloads, poolErr)
}

func (r *Runner) runCombined(ctx context.Context, downloads *queue.Download, retries *queue.Retry, cfg discovery.Config) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := worker.NewPool(downloads, r.journal, r.state, r.tool, r.poolOpts...)
	poolErr := make(chan error, 1)
	go func() { poolErr <- pool.Start(runCtx) }()

	retryWorker := worker.NewRetryWorker(retries, r.finder, r.journal, r.metrics)
	go retryWorker.Start(runCtx) //nolint:errcheck

	// Discovery runs serially here; the pool consumes as it produces.
	producer := discovery.NewProducer(r.finder, r.journal, r.state, retries, cfg, r.metrics)
	if err := producer.Run(ctx, r.hierarchy, downloads); err != nil {
		cancel()
		<-poolErr
		return err
	}

	return r.awaitDrain(runCtx, cancel, downloads, poolErr)
}

// awaitDrain waits for the queue to empty, then stops the pool. A pool
// that dies early (fatal storage failure) short-circuits the wait so the
// run never hangs on jobs nobody will process.
func (r *Runner) awaitDrain(runCtx context.Context, cancel context.CancelFunc, downloads *queue.Download, poolErr <-chan error) error {
	joined := make(chan error, 1)
	go func() { joined <- downloads.Join(runCtx) }()

	select {
	case err := <-joined:
		cancel()
		if err != nil {
			<-poolErr
			return err
		}
		return fatalOnly(<-poolErr)
	case err := <-poolErr:
		cancel()
		return fatalOnly(err)
	}
}

// drainRetries waits for the retry queue to empty so discover-only runs
// give failed searches a second chance before exiting.
func (r *Runner) drainRetries(ctx context.Context, retries *queue.Retry) error {
	for retries.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

func fatalOnly(err error) error {
	if core.IsFatal(err) {
		return err
	}
	return nil
}

func phaseFor(mode core.Mode) core.Phase {
	switch mode {
	case core.ModeDiscover:
		return core.PhaseDiscovering
	case core.ModeDownload:
		return core.PhaseDownloading
	default:
		return core.PhaseDiscoveringAndDownloading
	}
}

// Pause stops workers from picking up new jobs. In-flight downloads
// finish normally.
func (r *Runner) Pause() error {
	r.mu.Lock()
	if r.phase != core.PhasePaused {
		r.prePause = r.phase
		r.phase = core.PhasePaused
	}
	r.mu.Unlock()
	return r.state.Pause()
}

// Resume lets workers pick up jobs again.
func (r *Runner) Resume() error {
	r.mu.Lock()
	if r.phase == core.PhasePaused {
		r.phase = r.prePause
	}
	r.mu.Unlock()
	return r.state.Resume()
}
