package runner

import (
	"time"

	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/topics"
)

// Status is a point-in-time snapshot of a run.
type Status struct {
	Phase       core.Phase    `json:"phase"`
	Paused      bool          `json:"paused"`
	Running     bool          `json:"running"`
	Elapsed     time.Duration `json:"elapsed"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	QueueDepth  int           `json:"queue_depth"`
	CurrentTask *core.Job     `json:"current_task,omitempty"`
	ETA         time.Duration `json:"eta"`
}

// Summary combines topic hierarchy totals with run state counters.
type Summary struct {
	Hierarchy topics.Summary    `json:"hierarchy"`
	State     core.StateSummary `json:"state"`
}

// Status reports the current phase, counters and a rough completion
// estimate extrapolated from throughput so far.
func (r *Runner) Status() Status {
	r.mu.Lock()
	phase := r.phase
	running := r.running
	startedAt := r.startedAt
	baseline := r.baseline
	perSubtopic := r.perSubtopic
	downloads := r.downloads
	r.mu.Unlock()

	state := r.state.Summary()
	st := Status{
		Phase:       phase,
		Paused:      state.Paused,
		Running:     running,
		Completed:   state.CompletedCount,
		Failed:      state.FailedCount,
		CurrentTask: state.CurrentTask,
	}
	if downloads != nil {
		st.QueueDepth = downloads.Len()
	}
	if running {
		st.Elapsed = time.Since(startedAt)
		remaining := st.QueueDepth
		if phase == core.PhaseDiscovering || phase == core.PhaseDiscoveringAndDownloading {
			// Subtopics not yet searched are expected to each yield up
			// to the per-subtopic cap.
			unsearched := r.hierarchy.Summarize().TotalSubtopics - state.SubtopicsDone
			if unsearched > 0 {
				remaining += unsearched * perSubtopic
			}
		}
		st.ETA = estimateETA(st.Elapsed, state.CompletedCount-baseline, remaining)
	}
	return st
}

// Summarize reports hierarchy totals alongside run state counters.
func (r *Runner) Summarize() Summary {
	return Summary{
		Hierarchy: r.hierarchy.Summarize(),
		State:     r.state.Summary(),
	}
}

// estimateETA extrapolates the per-item rate so far onto the remaining
// work. Zero when nothing has completed yet.
func estimateETA(elapsed time.Duration, processed, remaining int) time.Duration {
	if processed <= 0 || remaining <= 0 {
		return 0
	}
	perItem := elapsed / time.Duration(processed)
	return perItem * time.Duration(remaining)
}
