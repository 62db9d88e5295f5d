// Package analysisapi provides a typed HTTP client for the interview analysis
// backend.
//
// The client covers the backend's job contract:
//
//   - POST /api/v1/upload: multipart upload (field "file"), returns the job handle
//   - GET /api/v1/status/{id}: job status, requested with no-cache directives
//   - GET /api/v1/results/{id}: structured results once a job has COMPLETED
//   - GET /api/v1/jobs: every job the backend knows about
//   - GET /api/v1/videos/{id}: the uploaded video
//
// The client holds no job state and never retries; the job coordinator owns
// cadence and retry policy. Failures surface as *NetworkError when no HTTP
// response was received and *BackendError for non-2xx responses, so callers
// can tell an unreachable backend from a rejected request.
//
// Status values are case-insensitive on the wire and normalized to upper case
// (PENDING, PROCESSING, COMPLETED, FAILED). Timestamps accept RFC3339 as well
// as the backend's zone-less ISO form.
package analysisapi
