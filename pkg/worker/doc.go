// Package worker runs the download worker pool and the search retry
// worker.
//
// The pool pops jobs from the delay queue, downloads and transcodes each
// video, and journals the outcome. Failed jobs are requeued with
// exponential backoff until the attempt ceiling, then recorded as failed.
// The retry worker re-runs searches that produced no results and journals
// any URLs it finds.
package worker
