package worker

import (
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/metastore"
	"github.com/eduvid/harvester/pkg/metrics"
)

// PoolOption configures a Pool.
type PoolOption interface {
	ApplyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) ApplyPool(c *PoolConfig) { f(c) }

// PoolConfig holds pool configuration.
type PoolConfig struct {
	Workers     int
	MaxAttempts int
	Backoff     core.Backoff
	MaxDuration time.Duration
	MinPace     time.Duration
	MaxPace     time.Duration
	DownloadDir string
	OutputDir   string
	Metastore   *metastore.Store
	Metrics     *metrics.Metrics
}

// Workers sets the number of concurrent download workers.
// Values below 1 are clamped to 1.
func Workers(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n < 1 {
			n = 1
		}
		c.Workers = n
	})
}

// MaxAttempts sets the download attempt ceiling.
func MaxAttempts(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n < 1 {
			n = 1
		}
		c.MaxAttempts = n
	})
}

// WithBackoff sets the retry backoff policy.
func WithBackoff(b core.Backoff) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.Backoff = b
	})
}

// MaxDuration rejects videos longer than d. Zero disables the check.
func MaxDuration(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxDuration = d
	})
}

// Pacing sets the randomized delay window between jobs on each worker.
func Pacing(min, max time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MinPace = min
		c.MaxPace = max
	})
}

// Dirs sets the scratch download directory and the final output root.
func Dirs(download, output string) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.DownloadDir = download
		c.OutputDir = output
	})
}

// WithMetastore records completed videos in the metadata store.
func WithMetastore(s *metastore.Store) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.Metastore = s
	})
}

// WithMetrics sets the Prometheus collectors the pool updates.
func WithMetrics(m *metrics.Metrics) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.Metrics = m
	})
}
