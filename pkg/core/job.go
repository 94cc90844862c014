package core

import (
	"time"
)

// Status labels a record in the append log.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one video's pending unit of work. Its URL is the normalized,
// canonical form and is unique across all pending or completed jobs.
// Jobs are passed by value between stages; only the worker that currently
// owns a job mutates Attempts and NotBefore.
type Job struct {
	URL       string    `json:"url"`
	Topic     string    `json:"topic"`
	Subtopic  string    `json:"subtopic"`
	GroupKey  string    `json:"group_key"`
	Subject   string    `json:"subject"`
	Attempts  int       `json:"attempts"`
	NotBefore time.Time `json:"not_before"`
}

// Result carries the artifacts of a successfully processed job.
type Result struct {
	VideoID    string `json:"video_id"`
	LocalPath  string `json:"local_path"`
	Duration   int    `json:"duration"`
	Title      string `json:"title"`
	Channel    string `json:"channel"`
	UploadDate string `json:"upload_date"`
}

// Record is one immutable append-log entry. The same shape serves the
// discovered, completed and failed streams; completion-only fields are
// omitted elsewhere.
type Record struct {
	URL        string    `json:"url"`
	Topic      string    `json:"topic"`
	Subtopic   string    `json:"subtopic"`
	GroupKey   string    `json:"group_key"`
	Subject    string    `json:"subject"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	LocalPath  string    `json:"local_path,omitempty"`
	Duration   int       `json:"duration,omitempty"`
	Title      string    `json:"title,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	UploadDate string    `json:"upload_date,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Job reconstructs the pending unit of work a discovered record describes.
func (r Record) Job() Job {
	return Job{
		URL:      r.URL,
		Topic:    r.Topic,
		Subtopic: r.Subtopic,
		GroupKey: r.GroupKey,
		Subject:  r.Subject,
	}
}

// SearchAttempt asserts that a (topic, subtopic) pair was searched,
// regardless of how many results came back.
type SearchAttempt struct {
	Topic       string    `json:"topic"`
	Subtopic    string    `json:"subtopic"`
	ResultCount int       `json:"result_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// SearchRetry describes a subtopic whose search itself failed and is
// waiting on the dedicated retry worker.
type SearchRetry struct {
	Topic      string `json:"topic"`
	Subtopic   string `json:"subtopic"`
	GroupKey   string `json:"group_key"`
	Subject    string `json:"subject"`
	MaxResults int    `json:"max_results"`
	Attempts   int    `json:"attempts"`
}
