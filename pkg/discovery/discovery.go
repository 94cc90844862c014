// Package discovery walks the topic hierarchy, searches for candidate
// videos and feeds the download queue.
package discovery

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/metrics"
	"github.com/eduvid/harvester/pkg/queue"
	"github.com/eduvid/harvester/pkg/search"
	"github.com/eduvid/harvester/pkg/topics"
)

// Config holds producer tunables.
type Config struct {
	// MaxPerSubtopic caps the number of videos discovered per subtopic.
	MaxPerSubtopic int

	// MinDelay and MaxDelay bound the randomized pause between searches.
	MinDelay time.Duration
	MaxDelay time.Duration

	// SearchRetries is the number of immediate attempts per search before
	// the subtopic is handed to the retry worker.
	SearchRetries int

	// RetryPause is the fixed wait between immediate search attempts.
	RetryPause time.Duration
}

// DefaultConfig returns the standard producer settings.
func DefaultConfig() Config {
	return Config{
		MaxPerSubtopic: 3,
		MinDelay:       3 * time.Second,
		MaxDelay:       8 * time.Second,
		SearchRetries:  2,
		RetryPause:     3 * time.Second,
	}
}

// Producer discovers videos for every subtopic in a hierarchy. It runs
// serially; concurrency lives in the download pool, not here.
type Producer struct {
	finder  *search.Finder
	journal core.Journal
	state   core.StateStore
	retries *queue.Retry
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProducer creates a producer. The retry queue receives searches that
// failed or came back empty.
func NewProducer(f *search.Finder, j core.Journal, s core.StateStore, r *queue.Retry, cfg Config, m *metrics.Metrics) *Producer {
	if cfg.MaxPerSubtopic < 1 {
		cfg.MaxPerSubtopic = DefaultConfig().MaxPerSubtopic
	}
	if cfg.SearchRetries < 1 {
		cfg.SearchRetries = 1
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Producer{
		finder:  f,
		journal: j,
		state:   s,
		retries: r,
		config:  cfg,
		metrics: m,
		logger:  slog.Default(),
	}
}

// Run walks the hierarchy and discovers videos for every subtopic not yet
// completed. When sink is non-nil each discovered job is also enqueued for
// download; a nil sink journals only. A pause observed between subtopics
// ends the walk; unsearched subtopics were never marked completed, so the
// next run picks them up. Run also returns on context cancellation or a
// journal failure.
func (p *Producer) Run(ctx context.Context, h *topics.Hierarchy, sink *queue.Download) error {
	for _, entry := range h.Entries() {
		for _, subtopic := range entry.Subtopics {
			if ctx.Err() != nil {
				return nil
			}
			if p.state.IsPaused() {
				p.logger.Info("pause observed, ending discovery")
				return nil
			}
			if err := p.discoverSubtopic(ctx, entry, subtopic, sink); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Producer) discoverSubtopic(ctx context.Context, entry topics.Entry, subtopic string, sink *queue.Download) error {
	topic := entry.Topic
	if p.state.IsSubtopicCompleted(topic, subtopic) {
		return nil
	}

	// A search that already ran (even with zero results) is not repeated;
	// empty searches belong to the retry worker.
	attempted, err := p.journal.SearchAttempted(topic, subtopic)
	if err != nil {
		return err
	}
	if attempted {
		return p.state.MarkSubtopicCompleted(topic, subtopic)
	}

	p.logger.Info("searching", "topic", topic, "subtopic", subtopic)

	urls, searchErr := p.searchWithRetry(ctx, topic, subtopic)
	if searchErr != nil {
		p.handToRetryWorker(entry, subtopic, searchErr)
		return p.pause(ctx)
	}

	if err := p.journal.RecordSearchAttempt(topic, subtopic, len(urls)); err != nil {
		return err
	}
	if len(urls) == 0 {
		p.handToRetryWorker(entry, subtopic, nil)
		if err := p.state.MarkSubtopicCompleted(topic, subtopic); err != nil {
			return err
		}
		return p.pause(ctx)
	}

	for _, u := range urls {
		job := core.Job{
			URL:       u,
			Topic:     topic,
			Subtopic:  subtopic,
			GroupKey:  entry.GroupKey,
			Subject:   entry.Subject,
			NotBefore: time.Now(),
		}
		if err := p.journal.RecordDiscovered(job); err != nil {
			return err
		}
		p.metrics.Discovered.Inc()
		if sink != nil {
			sink.Push(job)
		}
	}
	p.logger.Info("discovered videos", "topic", topic, "subtopic", subtopic, "count", len(urls))

	if err := p.state.MarkSubtopicCompleted(topic, subtopic); err != nil {
		return err
	}
	return p.pause(ctx)
}

func (p *Producer) searchWithRetry(ctx context.Context, topic, subtopic string) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.config.SearchRetries; attempt++ {
		urls, err := p.finder.Find(ctx, topic, subtopic, p.config.MaxPerSubtopic)
		if err == nil {
			return urls, nil
		}
		lastErr = err
		p.logger.Warn("search failed",
			"topic", topic,
			"subtopic", subtopic,
			"attempt", attempt,
			"error", err)
		if attempt < p.config.SearchRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.config.RetryPause):
			}
		}
	}
	return nil, lastErr
}

func (p *Producer) handToRetryWorker(entry topics.Entry, subtopic string, cause error) {
	if p.retries == nil {
		return
	}
	p.logger.Info("scheduling search retry",
		"topic", entry.Topic,
		"subtopic", subtopic,
		"error", cause)
	p.retries.Push(core.SearchRetry{
		Topic:      entry.Topic,
		Subtopic:   subtopic,
		GroupKey:   entry.GroupKey,
		Subject:    entry.Subject,
		MaxResults: p.config.MaxPerSubtopic,
		Attempts:   1,
	})
}

// pause sleeps for a random interval inside the configured window so
// consecutive searches do not hammer the provider.
func (p *Producer) pause(ctx context.Context) error {
	delay := p.config.MinDelay
	if span := p.config.MaxDelay - p.config.MinDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(delay):
		return nil
	}
}
