// Package journal implements the durable append log: JSON-lines streams for
// discovered, completed and failed videos plus a search-attempt log. Appends
// are single atomic writes flushed to disk before the call returns; reads
// skip blank, malformed or unterminated lines so a crash mid-append never
// poisons the log. The union of URLs across the three streams is the
// deduplication source of truth and is always re-derived by scanning.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/fsutil"
)

const (
	discoveredFile    = "discovered.jsonl"
	completedFile     = "completed.jsonl"
	failedFile        = "failed.jsonl"
	searchAttemptFile = "search_attempts.jsonl"
)

// Journal is a file-backed append log rooted at a single directory.
// One Journal (one directory) is shared by a whole deployment.
type Journal struct {
	dir string
	mu  sync.Mutex

	now func() time.Time
}

// Open creates the log directory if needed and returns a Journal over it.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// RecordDiscovered appends a discovered record for the job.
func (j *Journal) RecordDiscovered(job core.Job) error {
	rec := recordFrom(job, core.StatusPending, j.now())
	return j.append(discoveredFile, rec)
}

// RecordCompleted appends a terminal success record with full metadata.
func (j *Journal) RecordCompleted(job core.Job, res core.Result) error {
	rec := recordFrom(job, core.StatusCompleted, j.now())
	rec.LocalPath = res.LocalPath
	rec.Duration = res.Duration
	rec.Title = res.Title
	rec.Channel = res.Channel
	rec.UploadDate = res.UploadDate
	return j.append(completedFile, rec)
}

// RecordFailed appends a terminal failure record.
func (j *Journal) RecordFailed(job core.Job, reason string) error {
	rec := recordFrom(job, core.StatusFailed, j.now())
	rec.Error = fsutil.TruncateError(reason)
	return j.append(failedFile, rec)
}

// RecordSearchAttempt appends a search-attempt entry for the pair, even
// when the search returned zero results.
func (j *Journal) RecordSearchAttempt(topic, subtopic string, count int) error {
	return j.append(searchAttemptFile, core.SearchAttempt{
		Topic:       topic,
		Subtopic:    subtopic,
		ResultCount: count,
		Timestamp:   j.now(),
	})
}

// ExistingURLs re-derives the dedup set from a full scan of all three
// record streams.
func (j *Journal) ExistingURLs() (map[string]struct{}, error) {
	urls := make(map[string]struct{})
	for _, name := range []string{discoveredFile, completedFile, failedFile} {
		err := j.scan(name, func(rec core.Record) bool {
			if rec.URL != "" {
				urls[rec.URL] = struct{}{}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return urls, nil
}

// SearchAttempted reports whether the pair appears in the search-attempt log.
func (j *Journal) SearchAttempted(topic, subtopic string) (bool, error) {
	found := false
	err := j.scanAttempts(func(a core.SearchAttempt) bool {
		if a.Topic == topic && a.Subtopic == subtopic {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// PendingJobs returns up to limit jobs present in the discovered stream but
// absent from both terminal streams, preserving discovery order.
func (j *Journal) PendingJobs(limit int) ([]core.Job, error) {
	terminal := make(map[string]struct{})
	for _, name := range []string{completedFile, failedFile} {
		err := j.scan(name, func(rec core.Record) bool {
			if rec.URL != "" {
				terminal[rec.URL] = struct{}{}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	var pending []core.Job
	seen := make(map[string]struct{})
	err := j.scan(discoveredFile, func(rec core.Record) bool {
		if rec.URL == "" {
			return true
		}
		if _, done := terminal[rec.URL]; done {
			return true
		}
		if _, dup := seen[rec.URL]; dup {
			return true
		}
		seen[rec.URL] = struct{}{}
		pending = append(pending, rec.Job())
		return len(pending) < limit
	})
	return pending, err
}

// append marshals v and writes it as one line to the named stream. The
// write happens under the journal mutex against an O_APPEND descriptor and
// is fsynced, so concurrent appends never interleave and a record that was
// acknowledged survives a crash.
func (j *Journal) append(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.Fatal(fmt.Errorf("journal: marshal %s record: %w", name, err))
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return core.Fatal(fmt.Errorf("journal: open %s: %w", name, err))
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return core.Fatal(fmt.Errorf("journal: append %s: %w", name, err))
	}
	if err := f.Sync(); err != nil {
		return core.Fatal(fmt.Errorf("journal: sync %s: %w", name, err))
	}
	return nil
}

// scan streams records from the named file, skipping lines that do not
// parse. A missing file reads as empty. The callback returns false to stop.
func (j *Journal) scan(name string, fn func(core.Record) bool) error {
	return j.scanLines(name, func(line []byte) bool {
		var rec core.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return true // partial or malformed entry, not fatal
		}
		return fn(rec)
	})
}

func (j *Journal) scanAttempts(fn func(core.SearchAttempt) bool) error {
	return j.scanLines(searchAttemptFile, func(line []byte) bool {
		var a core.SearchAttempt
		if err := json.Unmarshal(line, &a); err != nil {
			return true
		}
		return fn(a)
	})
}

func (j *Journal) scanLines(name string, fn func([]byte) bool) error {
	f, err := os.Open(j.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("journal: open %s: %w", name, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("journal: read %s: %w", name, err)
	}
	return nil
}

func (j *Journal) path(name string) string {
	return filepath.Join(j.dir, name)
}

func recordFrom(job core.Job, status core.Status, ts time.Time) core.Record {
	return core.Record{
		URL:       job.URL,
		Topic:     job.Topic,
		Subtopic:  job.Subtopic,
		GroupKey:  job.GroupKey,
		Subject:   job.Subject,
		Status:    status,
		Timestamp: ts,
	}
}
