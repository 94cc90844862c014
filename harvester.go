// Package harvester builds topic-driven libraries of short educational
// videos: it searches the web for candidate videos per subtopic, downloads
// them, normalizes them to a uniform format, and records every step in
// durable append logs so interrupted runs resume where they left off.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	cfg, _ := config.Load()
//	h, _ := harvester.New(cfg)
//	defer h.Close()
//
//	// One combined discovery+download sweep.
//	h.Run(ctx, harvester.Options{Mode: harvester.ModeCombined})
//
//	// Or a nightly recurring sweep.
//	h.RunEvery(ctx, harvester.Daily(2, 30), harvester.Options{Resume: true})
package harvester

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduvid/harvester/pkg/config"
	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/discovery"
	"github.com/eduvid/harvester/pkg/journal"
	"github.com/eduvid/harvester/pkg/media"
	"github.com/eduvid/harvester/pkg/metastore"
	"github.com/eduvid/harvester/pkg/metrics"
	"github.com/eduvid/harvester/pkg/runner"
	"github.com/eduvid/harvester/pkg/runstate"
	"github.com/eduvid/harvester/pkg/schedule"
	"github.com/eduvid/harvester/pkg/search"
	"github.com/eduvid/harvester/pkg/topics"
	"github.com/eduvid/harvester/pkg/worker"
)

// Type aliases re-exported from pkg/.
type (
	// Job is one video to download.
	Job = core.Job

	// Result holds the completion details of a downloaded video.
	Result = core.Result

	// Mode selects what a run does.
	Mode = core.Mode

	// Phase describes what a run is currently doing.
	Phase = core.Phase

	// Backoff is the retry delay policy.
	Backoff = core.Backoff

	// Options configures a single run.
	Options = runner.Options

	// Status is a point-in-time run snapshot.
	Status = runner.Status

	// Summary combines hierarchy totals with run state counters.
	Summary = runner.Summary

	// Schedule computes recurring sweep times.
	Schedule = schedule.Schedule
)

// Run modes.
const (
	ModeDiscover = core.ModeDiscover
	ModeDownload = core.ModeDownload
	ModeCombined = core.ModeCombined
)

// ErrAlreadyRunning is returned when a run is requested while one is
// active.
var ErrAlreadyRunning = core.ErrAlreadyRunning

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule { return schedule.Every(d) }

// Daily creates a schedule that runs at a specific time each day.
func Daily(hour, minute int) Schedule { return schedule.Daily(hour, minute) }

// Weekly creates a schedule that runs at a specific day and time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a cron expression.
func Cron(expr string) Schedule { return schedule.Cron(expr) }

// Jitter staggers a schedule's ticks by a random amount up to max.
func Jitter(s Schedule, max time.Duration) Schedule { return schedule.Jitter(s, max) }

// Harvester is a fully wired pipeline.
type Harvester struct {
	runner   *runner.Runner
	meta     *metastore.Store
	registry *prometheus.Registry
}

// New builds a harvester from configuration: journal and state under the
// data directory, a DuckDuckGo search provider, and yt-dlp/ffmpeg for
// media handling.
func New(cfg *config.Config) (*Harvester, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	jnl, err := journal.Open(cfg.JournalDir())
	if err != nil {
		return nil, err
	}
	state, err := runstate.Open(cfg.StatePath())
	if err != nil {
		return nil, err
	}
	meta, err := metastore.Open(cfg.MetastorePath())
	if err != nil {
		return nil, err
	}
	hierarchy, err := topics.Load(cfg.TopicsFile)
	if err != nil {
		return nil, err
	}

	finder := search.NewFinder(search.NewDuckDuckGo(nil), search.FinderConfig{
		Region:      cfg.SearchRegion,
		SafeSearch:  cfg.SearchSafety,
		MaxDuration: cfg.MaxDuration(),
		FetchLimit:  search.DefaultFinderConfig().FetchLimit,
	}, nil)

	tool := media.NewYTDLP()
	tool.YTDLPPath = cfg.YTDLPPath
	tool.FFmpegPath = cfg.FFmpegPath
	tool.Width = cfg.OutputWidth
	tool.Height = cfg.OutputHeight

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	backoff := core.DefaultBackoff()
	backoff.Base = time.Duration(cfg.BackoffBaseSecs) * time.Second
	backoff.Max = time.Duration(cfg.BackoffMaxSecs) * time.Second

	r := runner.New(runner.Params{
		Hierarchy: hierarchy,
		Journal:   jnl,
		State:     state,
		Finder:    finder,
		Tool:      tool,
		Discovery: discovery.Config{
			MaxPerSubtopic: cfg.MaxPerSubtopic,
			MinDelay:       time.Duration(cfg.MinSearchDelay) * time.Second,
			MaxDelay:       time.Duration(cfg.MaxSearchDelay) * time.Second,
			SearchRetries:  discovery.DefaultConfig().SearchRetries,
			RetryPause:     discovery.DefaultConfig().RetryPause,
		},
		PoolOptions: []worker.PoolOption{
			worker.Workers(cfg.DownloadWorkers),
			worker.MaxAttempts(cfg.MaxAttempts),
			worker.WithBackoff(backoff),
			worker.MaxDuration(cfg.MaxDuration()),
			worker.Pacing(
				time.Duration(cfg.MinPaceSecs)*time.Second,
				time.Duration(cfg.MaxPaceSecs)*time.Second,
			),
			worker.Dirs(cfg.DownloadDir(), cfg.OutputDir()),
			worker.WithMetastore(meta),
			worker.WithMetrics(m),
		},
		Metrics: m,
	})

	return &Harvester{runner: r, meta: meta, registry: registry}, nil
}

// Metastore exposes the completed-video metadata store.
func (h *Harvester) Metastore() *metastore.Store { return h.meta }

// Close releases the metadata database.
func (h *Harvester) Close() error { return h.meta.Close() }

// MetricsHandler serves the harvester's Prometheus metrics.
func (h *Harvester) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

// Run executes one harvest run and blocks until it finishes. The summary
// reflects totals after the run, whether or not it succeeded.
func (h *Harvester) Run(ctx context.Context, opts Options) (Summary, error) {
	err := h.runner.Run(ctx, opts)
	return h.runner.Summarize(), err
}

// RunEvery executes runs on a schedule until the context is cancelled.
func (h *Harvester) RunEvery(ctx context.Context, sched Schedule, opts Options) error {
	return h.runner.RunEvery(ctx, sched, opts)
}

// Pause stops workers from picking up new jobs. In-flight downloads
// finish normally.
func (h *Harvester) Pause() error { return h.runner.Pause() }

// Resume lets workers pick up jobs again.
func (h *Harvester) Resume() error { return h.runner.Resume() }

// Status reports the current run snapshot.
func (h *Harvester) Status() Status { return h.runner.Status() }

// Summarize reports hierarchy and run state totals.
func (h *Harvester) Summarize() Summary { return h.runner.Summarize() }
