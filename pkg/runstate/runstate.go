// Package runstate persists the small run-progress document: the pause
// flag, the task currently in flight, and the set of fully completed
// (topic, subtopic) pairs. Every mutation is written through to disk
// before the call returns, so a run is resumable after an abrupt
// termination at any point. One document exists per hierarchy source file.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/fsutil"
)

type failedTask struct {
	core.Job
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type subtopicKey struct {
	Topic    string `json:"topic"`
	Subtopic string `json:"subtopic"`
}

type document struct {
	Paused             bool          `json:"paused"`
	CurrentTask        *core.Job     `json:"current_task"`
	CompletedTasks     []core.Job    `json:"completed_tasks"`
	FailedTasks        []failedTask  `json:"failed_tasks"`
	CompletedSubtopics []subtopicKey `json:"completed_subtopics"`
	PendingCount       int           `json:"pending_count"`
	LastUpdated        time.Time     `json:"last_updated"`
}

// Store is the file-backed run state. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document

	now func() time.Time
}

// Open loads the state document at path, starting empty if it does not
// exist or cannot be parsed. A corrupt state file is not fatal: everything
// in it can be re-derived from the append log.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("runstate: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		s.doc = document{}
	}
	return s, nil
}

// Pause sets the pause flag. Producers and workers observe it at their
// next checkpoint; in-flight work is never interrupted.
func (s *Store) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Paused = true
	return s.save()
}

// Resume clears the pause flag only. Completed and failed history is
// preserved.
func (s *Store) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Paused = false
	return s.save()
}

// IsPaused reports the pause flag. The flag is re-read from disk first,
// so a pause written by another process (the CLI pause command) is
// observed by an active run at its next checkpoint.
func (s *Store) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	return s.doc.Paused
}

// SetCurrentTask records the job a worker is about to process, or clears
// it when nil.
func (s *Store) SetCurrentTask(job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	if job != nil {
		copied := *job
		s.doc.CurrentTask = &copied
	} else {
		s.doc.CurrentTask = nil
	}
	return s.save()
}

// AddCompletedTask appends the job to the completed history.
func (s *Store) AddCompletedTask(job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	for _, t := range s.doc.CompletedTasks {
		if t.URL == job.URL {
			return nil
		}
	}
	s.doc.CompletedTasks = append(s.doc.CompletedTasks, job)
	return s.save()
}

// AddFailedTask appends the job to the failed history with its reason.
func (s *Store) AddFailedTask(job core.Job, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	for _, t := range s.doc.FailedTasks {
		if t.URL == job.URL && t.Error == reason {
			return nil
		}
	}
	s.doc.FailedTasks = append(s.doc.FailedTasks, failedTask{
		Job:      job,
		Error:    fsutil.TruncateError(reason),
		FailedAt: s.now(),
	})
	return s.save()
}

// SetPendingCount records the current download-queue depth for Summary.
func (s *Store) SetPendingCount(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	s.doc.PendingCount = n
	return s.save()
}

// MarkSubtopicCompleted records that the pair's discovery iteration
// finished.
func (s *Store) MarkSubtopicCompleted(topic, subtopic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	for _, k := range s.doc.CompletedSubtopics {
		if k.Topic == topic && k.Subtopic == subtopic {
			return nil
		}
	}
	s.doc.CompletedSubtopics = append(s.doc.CompletedSubtopics, subtopicKey{topic, subtopic})
	return s.save()
}

// IsSubtopicCompleted is the fast-path "is this subtopic done" check,
// consulted before falling back to the slower append-log scan.
func (s *Store) IsSubtopicCompleted(topic, subtopic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.doc.CompletedSubtopics {
		if k.Topic == topic && k.Subtopic == subtopic {
			return true
		}
	}
	return false
}

// Reset discards all prior progress.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = document{}
	return s.save()
}

// Summary returns the last successfully persisted progress snapshot.
func (s *Store) Summary() core.StateSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptDiskPause()
	return core.StateSummary{
		Paused:         s.doc.Paused,
		CurrentTask:    s.doc.CurrentTask,
		CompletedCount: len(s.doc.CompletedTasks),
		PendingCount:   s.doc.PendingCount,
		FailedCount:    len(s.doc.FailedTasks),
		SubtopicsDone:  len(s.doc.CompletedSubtopics),
		LastUpdated:    s.doc.LastUpdated,
	}
}

// adoptDiskPause refreshes the pause flag from the file so progress
// writes from this process never overwrite a pause issued by another
// one. Only Pause, Resume and Reset set the flag directly. Callers
// hold s.mu.
func (s *Store) adoptDiskPause() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var onDisk document
	if json.Unmarshal(data, &onDisk) != nil {
		return
	}
	s.doc.Paused = onDisk.Paused
}

// save persists the document atomically. Callers hold s.mu.
func (s *Store) save() error {
	s.doc.LastUpdated = s.now()
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return core.Fatal(fmt.Errorf("runstate: marshal: %w", err))
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(s.path, data); err != nil {
		return core.Fatal(fmt.Errorf("runstate: %w", err))
	}
	return nil
}
