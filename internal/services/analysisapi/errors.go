package analysisapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"interviewscope/internal/services"
)

const maxErrorBody = 4 << 10

var (
	// ErrEmptyUpload is returned before any I/O when an upload has no content.
	ErrEmptyUpload = fmt.Errorf("%w: upload has no content", services.ErrValidation)
	// ErrUnsupportedVideo is returned when the file extension is not one the
	// backend accepts.
	ErrUnsupportedVideo = fmt.Errorf("%w: unsupported video file", services.ErrValidation)
	// ErrMissingJobID is returned when an operation is invoked without a job id.
	ErrMissingJobID = fmt.Errorf("%w: job id is required", services.ErrValidation)
	// ErrDownloadInProgress is returned when another process holds the
	// download lock for the same target.
	ErrDownloadInProgress = errors.New("video download already in progress")
)

// NetworkError reports a transport-level failure: the request never produced
// an HTTP response.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError reports a non-2xx response.
type BackendError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, detail)
	}
	return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
}

// Detail extracts the backend's "detail" message when the body is JSON, and
// falls back to the trimmed body otherwise.
func (e *BackendError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return ""
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Detail != nil {
		if text, ok := payload.Detail.(string); ok {
			return text
		}
		if encoded, err := json.Marshal(payload.Detail); err == nil {
			return string(encoded)
		}
	}
	return body
}

// IsNetworkError reports whether err wraps a NetworkError.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsBackendError reports whether err wraps a BackendError, returning it.
func IsBackendError(err error) (*BackendError, bool) {
	var target *BackendError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func checkResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &BackendError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}
