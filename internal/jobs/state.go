package jobs

import (
	"encoding/json"
	"errors"

	"interviewscope/internal/progress"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

// Phase is the coordinator's lifecycle position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseErrored    Phase = "errored"
)

// State is one published snapshot. Pointer fields are never mutated after
// publication.
type State struct {
	Phase    Phase
	Handle   *analysisapi.JobHandle
	Status   *analysisapi.JobStatus
	Progress progress.Snapshot
	Results  *analysisapi.Results
	Err      error
	Revision uint64
}

// JobID returns the active job id, or "" before a handle is adopted.
func (s State) JobID() string {
	if s.Handle == nil {
		return ""
	}
	return s.Handle.ID
}

// Settled reports whether the state will not change again without a new
// submission or Reset.
func (s State) Settled() bool {
	switch s.Phase {
	case PhaseFailed, PhaseErrored:
		return true
	case PhaseCompleted:
		return s.Results != nil || errors.Is(s.Err, services.ErrResultFetch)
	default:
		return false
	}
}

type stateError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Advisory bool   `json:"advisory,omitempty"`
}

type stateJSON struct {
	Phase    Phase                  `json:"phase"`
	Revision uint64                 `json:"revision"`
	Job      *analysisapi.JobHandle `json:"job,omitempty"`
	Status   *analysisapi.JobStatus `json:"status,omitempty"`
	Progress progress.Snapshot      `json:"progress"`
	Results  *analysisapi.Results   `json:"results,omitempty"`
	Error    *stateError            `json:"error,omitempty"`
}

// MarshalJSON encodes the state with its error flattened to kind and message.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Phase:    s.Phase,
		Revision: s.Revision,
		Job:      s.Handle,
		Status:   s.Status,
		Progress: s.Progress,
		Results:  s.Results,
	}
	if s.Err != nil {
		out.Error = &stateError{
			Kind:     services.Kind(s.Err),
			Message:  s.Err.Error(),
			Advisory: services.IsAdvisory(s.Err),
		}
	}
	return json.Marshal(out)
}
