// Package search provides the video search side of the pipeline: the
// Provider interface the core consumes, the DuckDuckGo implementation of
// it, and the Finder that applies the core's filtering policy (domain,
// short-form exclusion, duration cap, dedup, URL normalization) on top of
// raw provider results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Result is one raw provider hit. Duration is the provider's display
// string (e.g. "12:34") and may be empty.
type Result struct {
	URL      string
	Duration string
}

// Provider is the external search collaborator.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int, region, safety string) ([]Result, error)
}

// FinderConfig tunes the filtering policy.
type FinderConfig struct {
	Region      string
	SafeSearch  string
	MaxDuration time.Duration // results longer than this are dropped
	FetchLimit  int           // upper bound on raw results requested per query
}

// DefaultFinderConfig returns the policy used by the reference deployment.
func DefaultFinderConfig() FinderConfig {
	return FinderConfig{
		Region:      "wt-wt",
		SafeSearch:  "moderate",
		MaxDuration: 15 * time.Minute,
		FetchLimit:  50,
	}
}

// Finder wraps a Provider with the core-side result policy and a working
// set of already-seen normalized URLs. The working set is seeded from the
// journal's dedup scan at startup and grows as URLs are accepted; the
// journal remains the source of truth across runs.
type Finder struct {
	provider Provider
	cfg      FinderConfig
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFinder builds a Finder seeded with the given already-seen URLs.
func NewFinder(p Provider, cfg FinderConfig, seen map[string]struct{}) *Finder {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = DefaultFinderConfig().FetchLimit
	}
	return &Finder{
		provider: p,
		cfg:      cfg,
		logger:   slog.Default(),
		seen:     seen,
	}
}

// queryVariants are tried in order until enough results are collected.
func queryVariants(topic, subtopic string) []string {
	return []string{
		fmt.Sprintf("%s %s video", topic, subtopic),
		fmt.Sprintf("%s educational video", subtopic),
		fmt.Sprintf("%s animated video", subtopic),
	}
}

// Find searches for up to max new videos for the pair, returning
// normalized canonical watch URLs that survive the filtering policy.
// Accepted URLs join the working set so later searches skip them.
func (f *Finder) Find(ctx context.Context, topic, subtopic string, max int) ([]string, error) {
	var collected []string
	local := make(map[string]struct{})

	for _, q := range queryVariants(topic, subtopic) {
		if len(collected) >= max {
			break
		}
		need := max - len(collected)
		fetch := need * 5
		if fetch > f.cfg.FetchLimit {
			fetch = f.cfg.FetchLimit
		}

		results, err := f.provider.Search(ctx, q, fetch, f.cfg.Region, f.cfg.SafeSearch)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}

		for _, r := range results {
			if len(collected) >= max {
				break
			}
			url, ok := f.accept(r)
			if !ok {
				continue
			}
			if _, dup := local[url]; dup {
				continue
			}
			local[url] = struct{}{}
			collected = append(collected, url)
		}
	}

	f.logger.Debug("search finished", "topic", topic, "subtopic", subtopic, "found", len(collected))
	return collected, nil
}

// accept applies the filtering policy to one raw result and, on success,
// records its normalized URL in the working set.
func (f *Finder) accept(r Result) (string, bool) {
	if r.URL == "" || !IsYouTubeDomain(r.URL) || IsShorts(r.URL) {
		return "", false
	}
	id := ExtractVideoID(r.URL)
	if id == "" {
		return "", false
	}
	if d, ok := ParseDuration(r.Duration); ok && d > f.cfg.MaxDuration {
		return "", false
	}

	url := Normalize(r.URL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.seen[url]; exists {
		return "", false
	}
	f.seen[url] = struct{}{}
	return url, true
}

// MarkSeen adds URLs to the working set, e.g. after another actor
// journaled them.
func (f *Finder) MarkSeen(urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		f.seen[u] = struct{}{}
	}
}

// Seen reports whether a normalized URL is in the working set.
func (f *Finder) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}
