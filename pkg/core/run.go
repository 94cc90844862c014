package core

import (
	"time"
)

// Mode selects which halves of the pipeline a run executes.
type Mode string

const (
	// ModeDiscover runs the search producer alone; discovered jobs are
	// journaled but not downloaded.
	ModeDiscover Mode = "discover"
	// ModeDownload drains previously journaled pending jobs without
	// searching for new ones.
	ModeDownload Mode = "download"
	// ModeCombined runs discovery and the download workers together.
	ModeCombined Mode = "combined"
)

// Phase is the run controller's observable state.
type Phase string

const (
	PhaseIdle                      Phase = "idle"
	PhaseDiscovering               Phase = "discovering"
	PhaseDownloading               Phase = "downloading"
	PhaseDiscoveringAndDownloading Phase = "discovering+downloading"
	PhasePaused                    Phase = "paused"
	PhaseStopped                   Phase = "stopped"
)

// StateSummary is the persisted progress snapshot reported by Status.
type StateSummary struct {
	Paused         bool      `json:"paused"`
	CurrentTask    *Job      `json:"current_task"`
	CompletedCount int       `json:"completed_count"`
	PendingCount   int       `json:"pending_count"`
	FailedCount    int       `json:"failed_count"`
	SubtopicsDone  int       `json:"subtopics_done"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Journal is the durable append log: three record streams (discovered,
// completed, failed) plus the search-attempt log. Appends are atomic and
// durable before the call returns. The union of URLs across the three
// streams is the sole deduplication source of truth.
type Journal interface {
	RecordDiscovered(job Job) error
	RecordCompleted(job Job, res Result) error
	RecordFailed(job Job, reason string) error
	RecordSearchAttempt(topic, subtopic string, count int) error
	ExistingURLs() (map[string]struct{}, error)
	SearchAttempted(topic, subtopic string) (bool, error)
	PendingJobs(limit int) ([]Job, error)
}

// StateStore is the fast-path progress document. Every mutating call
// persists synchronously before returning.
type StateStore interface {
	Pause() error
	Resume() error
	IsPaused() bool
	SetCurrentTask(job *Job) error
	AddCompletedTask(job Job) error
	AddFailedTask(job Job, reason string) error
	MarkSubtopicCompleted(topic, subtopic string) error
	IsSubtopicCompleted(topic, subtopic string) bool
	Reset() error
	Summary() StateSummary
}
