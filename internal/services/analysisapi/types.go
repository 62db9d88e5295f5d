package analysisapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the backend job state in canonical upper case.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalizes a wire status ("completed", "Completed", ...) to its
// canonical form. Unknown values are upper-cased and kept.
func ParseStatus(raw string) Status {
	return Status(cases.Upper(language.Und).String(strings.TrimSpace(raw)))
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string { return string(s) }

func (s *Status) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp decodes the backend's timestamps, which may be RFC3339 or a naive
// ISO form without zone (interpreted as local time).
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// JobHandle identifies one submission; it is decoded from the upload response.
type JobHandle struct {
	ID        string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	VideoURL  string    `json:"video_url,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// InitialStatus derives the status record implied by the upload response,
// before the first poll.
func (h JobHandle) InitialStatus() JobStatus {
	status := h.Status
	if status == "" {
		status = StatusPending
	}
	return JobStatus{
		ID:        h.ID,
		Filename:  h.Filename,
		Status:    status,
		CreatedAt: h.CreatedAt,
	}
}

// JobStatus is the latest known backend state for a job.
type JobStatus struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Status      Status    `json:"status"`
	CurrentStep string    `json:"current_step,omitempty"`
	Progress    *float64  `json:"progress,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// Score is one candidate evaluation category: free-text feedback plus a 0-10
// score. On the wire it is the pair [feedback, score].
type Score struct {
	Feedback string  `json:"feedback"`
	Value    float64 `json:"score"`
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("score: expected [feedback, score] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("score: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Feedback); err != nil {
		return fmt.Errorf("score feedback: %w", err)
	}
	value, err := decodeNumber(pair[1])
	if err != nil {
		return fmt.Errorf("score value: %w", err)
	}
	s.Value = value
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Feedback, s.Value})
}

// decodeNumber accepts a JSON number or a numeric string.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("not a number: %s", strings.TrimSpace(string(raw)))
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	return parsed, nil
}

// Narratives maps a category to narrative text. Non-string values are kept
// in their JSON form rather than rejected.
type Narratives map[string]string

func (n *Narratives) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("narratives: %w", err)
	}
	out := make(Narratives, len(raw))
	for key, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			out[key] = text
			continue
		}
		out[key] = strings.TrimSpace(string(value))
	}
	*n = out
	return nil
}

// AnalysisResult is the structured outcome of a completed job.
type AnalysisResult struct {
	CandidateScores map[string]Score `json:"candidate_score"`
	BodyLanguage    Narratives       `json:"body_language_analysis"`
}

// ScoreCategories returns the candidate score categories in sorted order.
func (r AnalysisResult) ScoreCategories() []string {
	return sortedKeys(r.CandidateScores)
}

// NarrativeCategories returns the body language categories in sorted order.
func (r AnalysisResult) NarrativeCategories() []string {
	return sortedKeys(r.BodyLanguage)
}

// AverageScore returns the mean of all category scores, rounded to one
// decimal place. ok is false when there are no scores.
func (r AnalysisResult) AverageScore() (avg float64, ok bool) {
	if len(r.CandidateScores) == 0 {
		return 0, false
	}
	var sum float64
	for _, score := range r.CandidateScores {
		sum += score.Value
	}
	return math.Round(sum/float64(len(r.CandidateScores))*10) / 10, true
}

// Results is the results endpoint payload.
type Results struct {
	JobID       string          `json:"job_id"`
	Status      Status          `json:"status"`
	Filename    string          `json:"filename"`
	Transcript  string          `json:"transcript,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   Timestamp       `json:"created_at"`
	CompletedAt Timestamp       `json:"completed_at"`
	Analysis    *AnalysisResult `json:"analysis_result"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
