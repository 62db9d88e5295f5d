package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmission    = errors.New("submission failed")
	ErrTransientPoll = errors.New("status poll failed")
	ErrJobFailure    = errors.New("job failed")
	ErrResultFetch   = errors.New("result retrieval failed")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransientPoll
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the failure class of err for display. Unclassified errors
// report "error".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrTransientPoll):
		return "transient"
	case errors.Is(err, ErrJobFailure):
		return "job"
	case errors.Is(err, ErrResultFetch):
		return "results"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}

// IsAdvisory reports whether err is informational only: the job it refers to
// is still healthy and polling continues.
func IsAdvisory(err error) bool {
	return errors.Is(err, ErrTransientPoll)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
