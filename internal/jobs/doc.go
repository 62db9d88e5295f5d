// Package jobs coordinates the lifecycle of one analysis job.
//
// A Coordinator submits a video through the gateway, polls the job's status
// on a fixed cadence, derives progress, fetches results exactly once after
// the backend reports COMPLETED, and publishes every change as a complete
// State snapshot to its subscribers.
//
// Only one job is live per Coordinator. Starting a new upload or calling
// Reset cancels the previous poll loop and waits for it to exit; every
// response is checked against the run that issued it before it is applied,
// so a late response for a superseded job never reaches subscribers.
//
// Errors are classified with the markers from internal/services. A failed
// poll is advisory and polling continues; a FAILED job, a rejected
// submission, and a failed result fetch are terminal. An error is cleared
// only by a new submission or Reset.
package jobs
