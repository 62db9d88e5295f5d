package progress

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"interviewscope/internal/services/analysisapi"
)

// PlaceholderPercent is reported when a job has started but neither a
// numeric progress nor a known step is available.
const PlaceholderPercent = 5

const initializingLabel = "Initializing"

// DefaultSteps lists the backend processing steps in execution order.
var DefaultSteps = []string{
	"starting video processing",
	"extracting audio from video",
	"transcribing audio",
	"analyzing body language",
	"scoring candidate",
}

// Snapshot is the derived progress of a job.
type Snapshot struct {
	Percent   int    `json:"percent"`
	StepLabel string `json:"step_label"`
}

// Resolve maps a status payload to a Snapshot using the ordered step list.
func Resolve(status analysisapi.JobStatus, steps []string) Snapshot {
	snapshot := Snapshot{StepLabel: FormatStepLabel(status.CurrentStep)}

	if analysisapi.ParseStatus(string(status.Status)) == analysisapi.StatusCompleted {
		snapshot.Percent = 100
		return snapshot
	}
	if status.Progress != nil && !math.IsNaN(*status.Progress) {
		snapshot.Percent = clampPercent(math.Round(*status.Progress * 100))
		return snapshot
	}
	if index := stepIndex(status.CurrentStep, steps); index >= 0 {
		snapshot.Percent = clampPercent(math.Round(100 * float64(index+1) / float64(len(steps))))
		return snapshot
	}
	snapshot.Percent = PlaceholderPercent
	return snapshot
}

// Clamp keeps a live job's percentage from moving backwards. The label of
// next is kept.
func Clamp(prev, next Snapshot) Snapshot {
	if next.Percent < prev.Percent {
		next.Percent = prev.Percent
	}
	return next
}

// NormalizeStep case-folds a step label for matching.
func NormalizeStep(step string) string {
	// Casers carry state; build one per call.
	return cases.Fold().String(strings.TrimSpace(step))
}

// FormatStepLabel capitalizes the first letter of a backend step. An empty
// step reads "Initializing".
func FormatStepLabel(step string) string {
	step = strings.TrimSpace(step)
	if step == "" {
		return initializingLabel
	}
	first, size := utf8.DecodeRuneInString(step)
	return string(unicode.ToUpper(first)) + step[size:]
}

func stepIndex(step string, steps []string) int {
	normalized := NormalizeStep(step)
	if normalized == "" {
		return -1
	}
	for i, known := range steps {
		if NormalizeStep(known) == normalized {
			return i
		}
	}
	return -1
}

func clampPercent(value float64) int {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return int(value)
	}
}
