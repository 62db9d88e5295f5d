package jobs_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"interviewscope/internal/jobs"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

const testInterval = 5 * time.Millisecond

type fakeGateway struct {
	submitFn  func(ctx context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error)
	statusFn  func(ctx context.Context, id string, call int) (analysisapi.JobStatus, error)
	resultsFn func(ctx context.Context, id string) (analysisapi.Results, error)

	mu          sync.Mutex
	statusCalls map[string]int
	resultCalls map[string]int
	requestIDs  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statusCalls: make(map[string]int),
		resultCalls: make(map[string]int),
	}
}

func (f *fakeGateway) SubmitJob(ctx context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error) {
	if f.submitFn == nil {
		return analysisapi.JobHandle{ID: "j1", Filename: upload.Filename, Status: analysisapi.StatusPending}, nil
	}
	return f.submitFn(ctx, upload)
}

func (f *fakeGateway) GetStatus(ctx context.Context, id string) (analysisapi.JobStatus, error) {
	f.mu.Lock()
	f.statusCalls[id]++
	call := f.statusCalls[id]
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		f.requestIDs = append(f.requestIDs, rid)
	}
	f.mu.Unlock()
	if f.statusFn == nil {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusPending}, nil
	}
	return f.statusFn(ctx, id, call)
}

func (f *fakeGateway) GetResults(ctx context.Context, id string) (analysisapi.Results, error) {
	f.mu.Lock()
	f.resultCalls[id]++
	f.mu.Unlock()
	if f.resultsFn == nil {
		return completedResults(id), nil
	}
	return f.resultsFn(ctx, id)
}

func (f *fakeGateway) statusCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[id]
}

func (f *fakeGateway) resultCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultCalls[id]
}

func completedResults(id string) analysisapi.Results {
	return analysisapi.Results{
		JobID:  id,
		Status: analysisapi.StatusCompleted,
		Analysis: &analysisapi.AnalysisResult{
			CandidateScores: map[string]analysisapi.Score{
				"communication_score": {Feedback: "Clear", Value: 8},
			},
			BodyLanguage: analysisapi.Narratives{"posture": "Upright"},
		},
	}
}

func processing(id, step string) analysisapi.JobStatus {
	return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusProcessing, CurrentStep: step}
}

func withProgress(status analysisapi.JobStatus, p float64) analysisapi.JobStatus {
	status.Progress = &p
	return status
}

func testUpload(name string) analysisapi.Upload {
	return analysisapi.Upload{Filename: name, Content: strings.NewReader("video"), Size: 5}
}

func newCoordinator(t *testing.T, gw *fakeGateway) *jobs.Coordinator {
	t.Helper()
	coord := jobs.New(gw, jobs.WithInterval(testInterval))
	t.Cleanup(coord.Close)
	return coord
}

func waitFor(t *testing.T, updates <-chan jobs.State, desc string, match func(jobs.State) bool) jobs.State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", desc)
			}
			if match(state) {
				return state
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func waitSettled(t *testing.T, coord *jobs.Coordinator) jobs.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := coord.WaitSettled(ctx)
	if err != nil {
		t.Fatalf("WaitSettled error: %v (phase %s)", err, state.Phase)
	}
	return state
}

func assertNoFurtherPolls(t *testing.T, gw *fakeGateway, id string) {
	t.Helper()
	before := gw.statusCount(id)
	time.Sleep(10 * testInterval)
	if after := gw.statusCount(id); after != before {
		t.Fatalf("job %s polled after stop: %d -> %d", id, before, after)
	}
}

func TestCoordinatorEndToEnd(t *testing.T) {
	release := make(chan struct{})
	gw := newFakeGateway()
	gw.statusFn = func(ctx context.Context, id string, call int) (analysisapi.JobStatus, error) {
		if call == 1 {
			return processing(id, "scoring candidate"), nil
		}
		select {
		case <-release:
		case <-ctx.Done():
			return analysisapi.JobStatus{}, ctx.Err()
		}
		return analysisapi.JobStatus{ID: id, Status: analysisapi.Status("completed")}, nil
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.StartUpload(context.Background(), testUpload("interview.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}

	state := waitFor(t, updates, "processing status", func(s jobs.State) bool {
		return s.Status != nil && s.Status.Status == analysisapi.StatusProcessing
	})
	if state.Progress.Percent != 100 {
		t.Fatalf("expected 100%% for last step, got %d", state.Progress.Percent)
	}
	if state.Phase != jobs.PhasePolling {
		t.Fatalf("expected polling while PROCESSING, got %s", state.Phase)
	}
	if state.Results != nil {
		t.Fatal("results must not be fetched before COMPLETED")
	}
	if state.JobID() != "j1" {
		t.Fatalf("job id = %q", state.JobID())
	}
	close(release)

	final := waitSettled(t, coord)
	if final.Phase != jobs.PhaseCompleted || final.Status.Status != analysisapi.StatusCompleted {
		t.Fatalf("unexpected final state: phase=%s status=%s", final.Phase, final.Status.Status)
	}
	if final.Results == nil || final.Results.Analysis == nil {
		t.Fatal("expected results populated")
	}
	if final.Err != nil {
		t.Fatalf("unexpected error: %v", final.Err)
	}
	if final.Progress.Percent != 100 {
		t.Fatalf("final percent = %d", final.Progress.Percent)
	}
	if gw.resultCount("j1") != 1 {
		t.Fatalf("expected one result fetch, got %d", gw.resultCount("j1"))
	}
	assertNoFurtherPolls(t, gw, "j1")
}

func TestCoordinatorFetchResultsIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.FetchResults(context.Background()); !errors.Is(err, jobs.ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted while idle, got %v", err)
	}

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	waitSettled(t, coord)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := coord.FetchResults(context.Background()); err != nil {
				t.Errorf("FetchResults error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := gw.resultCount("j1"); got != 1 {
		t.Fatalf("expected exactly one result fetch, got %d", got)
	}
}

func TestCoordinatorFetchResultsWaitsForInflightFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
	}
	gw.resultsFn = func(ctx context.Context, id string) (analysisapi.Results, error) {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return analysisapi.Results{}, ctx.Err()
		}
		return completedResults(id), nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the result fetch")
	}

	returned := make(chan error, 1)
	go func() {
		returned <- coord.FetchResults(context.Background())
	}()

	select {
	case err := <-returned:
		t.Fatalf("FetchResults returned %v before the fetch finished", err)
	case <-time.After(10 * testInterval):
	}

	close(release)
	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("FetchResults error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchResults did not return after the fetch finished")
	}
	if state := coord.Snapshot(); state.Results == nil {
		t.Fatal("expected results published when FetchResults returns")
	}
	if got := gw.resultCount("j1"); got != 1 {
		t.Fatalf("expected exactly one result fetch, got %d", got)
	}
}

func TestCoordinatorFetchResultsHonorsContextWhileWaiting(t *testing.T) {
	entered := make(chan struct{})
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
	}
	gw.resultsFn = func(ctx context.Context, _ string) (analysisapi.Results, error) {
		close(entered)
		<-ctx.Done()
		return analysisapi.Results{}, ctx.Err()
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*testInterval)
	defer cancel()
	if err := coord.FetchResults(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while waiting, got %v", err)
	}
}

func TestCoordinatorSerializesTicks(t *testing.T) {
	var inflight, maxInflight atomic.Int32
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, call int) (analysisapi.JobStatus, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			seen := maxInflight.Load()
			if n <= seen || maxInflight.CompareAndSwap(seen, n) {
				break
			}
		}
		time.Sleep(4 * testInterval)
		if call >= 6 {
			return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
		}
		return processing(id, "transcribing"), nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	waitSettled(t, coord)

	if got := gw.statusCount("j1"); got != 6 {
		t.Fatalf("expected 6 polls, got %d", got)
	}
	if got := maxInflight.Load(); got != 1 {
		t.Fatalf("status polls overlapped: max in flight = %d", got)
	}
}

func TestCoordinatorDiscardsStaleResponses(t *testing.T) {
	gw := newFakeGateway()
	var submits int
	gw.submitFn = func(_ context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error) {
		submits++
		id := "A"
		if submits > 1 {
			id = "B"
		}
		return analysisapi.JobHandle{ID: id, Filename: upload.Filename, Status: analysisapi.StatusPending}, nil
	}
	inFlight := make(chan struct{})
	var inFlightOnce sync.Once
	gw.statusFn = func(ctx context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		if id == "A" {
			inFlightOnce.Do(func() { close(inFlight) })
			<-ctx.Done()
			// A late but well-formed response for the superseded job.
			return withProgress(processing("A", "transcribing audio"), 0.9), nil
		}
		return withProgress(processing("B", "transcribing audio"), 0.1), nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload A error: %v", err)
	}
	select {
	case <-inFlight:
	case <-time.After(2 * time.Second):
		t.Fatal("job A was never polled")
	}

	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()
	if err := coord.StartUpload(context.Background(), testUpload("b.mp4")); err != nil {
		t.Fatalf("StartUpload B error: %v", err)
	}

	state := waitFor(t, updates, "job B progress", func(s jobs.State) bool {
		return s.Status != nil && s.Status.ID == "B" && s.Progress.Percent == 10
	})
	if state.JobID() != "B" {
		t.Fatalf("active job = %q, want B", state.JobID())
	}

	snapshot := coord.Snapshot()
	if snapshot.JobID() != "B" || snapshot.Status.ID != "B" {
		t.Fatalf("stale response leaked into state: %+v", snapshot.Status)
	}
	if snapshot.Progress.Percent != 10 {
		t.Fatalf("percent = %d, want 10", snapshot.Progress.Percent)
	}
	assertNoFurtherPolls(t, gw, "A")
}

func TestCoordinatorIgnoresStatusForOtherJob(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, call int) (analysisapi.JobStatus, error) {
		if call == 1 {
			return withProgress(processing("someone-else", ""), 0.9), nil
		}
		return withProgress(processing(id, ""), 0.3), nil
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	state := waitFor(t, updates, "own status", func(s jobs.State) bool {
		return s.Status != nil && s.Status.Status == analysisapi.StatusProcessing
	})
	if state.Status.ID != "j1" || state.Progress.Percent != 30 {
		t.Fatalf("unexpected status: id=%s percent=%d", state.Status.ID, state.Progress.Percent)
	}
}

func TestCoordinatorTransientErrorKeepsPolling(t *testing.T) {
	release := make(chan struct{})
	gw := newFakeGateway()
	gw.statusFn = func(ctx context.Context, id string, call int) (analysisapi.JobStatus, error) {
		switch call {
		case 1:
			return withProgress(processing(id, "transcribing audio"), 0.42), nil
		case 2:
			return analysisapi.JobStatus{}, &analysisapi.NetworkError{Op: "get status", URL: "http://backend", Err: errors.New("connection refused")}
		case 3:
			select {
			case <-release:
			case <-ctx.Done():
				return analysisapi.JobStatus{}, ctx.Err()
			}
			return withProgress(processing(id, "analyzing body language"), 0.5), nil
		default:
			return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
		}
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}

	state := waitFor(t, updates, "transient error", func(s jobs.State) bool { return s.Err != nil })
	if !errors.Is(state.Err, services.ErrTransientPoll) || !services.IsAdvisory(state.Err) {
		t.Fatalf("expected advisory poll error, got %v", state.Err)
	}
	if !analysisapi.IsNetworkError(state.Err) {
		t.Fatalf("expected underlying network error, got %v", state.Err)
	}
	if state.Phase != jobs.PhasePolling {
		t.Fatalf("transient error must not change phase, got %s", state.Phase)
	}
	if state.Status == nil || state.Status.CurrentStep != "transcribing audio" || state.Progress.Percent != 42 {
		t.Fatalf("last valid status lost: %+v / %+v", state.Status, state.Progress)
	}
	close(release)

	final := waitSettled(t, coord)
	if final.Phase != jobs.PhaseCompleted || final.Results == nil {
		t.Fatalf("polling did not recover: phase=%s", final.Phase)
	}
	if gw.statusCount("j1") < 4 {
		t.Fatalf("expected polling to continue past the error, got %d polls", gw.statusCount("j1"))
	}
}

func TestCoordinatorFailedJobStopsPolling(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.Status("failed"), CurrentStep: "transcribing audio", Error: "audio track missing"}, nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	final := waitSettled(t, coord)
	if final.Phase != jobs.PhaseFailed {
		t.Fatalf("phase = %s, want failed", final.Phase)
	}
	if !errors.Is(final.Err, services.ErrJobFailure) || errors.Is(final.Err, services.ErrResultFetch) {
		t.Fatalf("expected job failure, got %v", final.Err)
	}
	if !strings.Contains(final.Err.Error(), "audio track missing") {
		t.Fatalf("failure reason missing: %v", final.Err)
	}
	if gw.statusCount("j1") != 1 {
		t.Fatalf("expected a single poll, got %d", gw.statusCount("j1"))
	}
	assertNoFurtherPolls(t, gw, "j1")
	if gw.resultCount("j1") != 0 {
		t.Fatal("results must not be fetched for a failed job")
	}
}

func TestCoordinatorResetThenResubmit(t *testing.T) {
	gw := newFakeGateway()
	submitGate := make(chan struct{})
	var submits int
	gw.submitFn = func(_ context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error) {
		submits++
		if submits == 1 {
			return analysisapi.JobHandle{ID: "j1", Filename: upload.Filename}, nil
		}
		<-submitGate
		return analysisapi.JobHandle{ID: "j2", Filename: upload.Filename}, nil
	}
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		if id == "j1" {
			return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusFailed}, nil
		}
		return processing(id, "starting video processing"), nil
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("first.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	if state := waitSettled(t, coord); state.Phase != jobs.PhaseFailed {
		t.Fatalf("phase = %s, want failed", state.Phase)
	}
	j1Polls := gw.statusCount("j1")

	coord.Reset()
	reset := coord.Snapshot()
	if reset.Phase != jobs.PhaseIdle || reset.Handle != nil || reset.Err != nil || reset.Status != nil {
		t.Fatalf("reset did not clear state: %+v", reset)
	}

	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()
	errCh := make(chan error, 1)
	go func() { errCh <- coord.StartUpload(context.Background(), testUpload("second.mp4")) }()

	submitting := waitFor(t, updates, "submitting", func(s jobs.State) bool { return s.Phase == jobs.PhaseSubmitting })
	if submitting.Results != nil || submitting.Err != nil || submitting.Handle != nil || submitting.Progress.Percent != 0 {
		t.Fatalf("submitting state not fully reset: %+v", submitting)
	}
	close(submitGate)
	if err := <-errCh; err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}

	waitFor(t, updates, "j2 polling", func(s jobs.State) bool {
		return s.Status != nil && s.Status.ID == "j2" && s.Status.Status == analysisapi.StatusProcessing
	})
	if got := gw.statusCount("j1"); got != j1Polls {
		t.Fatalf("j1 polled after reset: %d -> %d", j1Polls, got)
	}
}

func TestCoordinatorSubmissionError(t *testing.T) {
	gw := newFakeGateway()
	gw.submitFn = func(context.Context, analysisapi.Upload) (analysisapi.JobHandle, error) {
		return analysisapi.JobHandle{}, &analysisapi.BackendError{Op: "submit job", StatusCode: http.StatusBadRequest, Body: `{"detail":"File must be a video"}`}
	}
	coord := newCoordinator(t, gw)

	err := coord.StartUpload(context.Background(), testUpload("a.mp4"))
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if _, ok := analysisapi.IsBackendError(err); !ok {
		t.Fatalf("expected backend error cause, got %v", err)
	}
	state := coord.Snapshot()
	if state.Phase != jobs.PhaseErrored || !state.Settled() {
		t.Fatalf("phase = %s, want errored", state.Phase)
	}
	if state.Handle != nil {
		t.Fatal("no handle expected after failed submission")
	}
	time.Sleep(5 * testInterval)
	gw.mu.Lock()
	polls := len(gw.statusCalls)
	gw.mu.Unlock()
	if polls != 0 {
		t.Fatalf("no polling expected, got %d jobs polled", polls)
	}
}

func TestCoordinatorResultFetchError(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
	}
	gw.resultsFn = func(context.Context, string) (analysisapi.Results, error) {
		return analysisapi.Results{}, &analysisapi.BackendError{Op: "get results", StatusCode: http.StatusInternalServerError}
	}
	coord := newCoordinator(t, gw)

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	final := waitSettled(t, coord)
	if final.Phase != jobs.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", final.Phase)
	}
	if !errors.Is(final.Err, services.ErrResultFetch) || errors.Is(final.Err, services.ErrJobFailure) {
		t.Fatalf("expected result fetch error, got %v", final.Err)
	}
	if !strings.Contains(final.Err.Error(), "result retrieval failed") {
		t.Fatalf("unexpected message: %v", final.Err)
	}
	if final.Results != nil {
		t.Fatal("results must stay empty")
	}

	if err := coord.FetchResults(context.Background()); !errors.Is(err, services.ErrResultFetch) {
		t.Fatalf("repeat FetchResults = %v", err)
	}
	if gw.resultCount("j1") != 1 {
		t.Fatalf("expected no automatic retry, got %d fetches", gw.resultCount("j1"))
	}
}

func TestCoordinatorStartUploadSuperseded(t *testing.T) {
	gw := newFakeGateway()
	gate := make(chan struct{})
	gw.submitFn = func(_ context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error) {
		<-gate
		return analysisapi.JobHandle{ID: "j1", Filename: upload.Filename}, nil
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() { errCh <- coord.StartUpload(context.Background(), testUpload("a.mp4")) }()
	waitFor(t, updates, "submitting", func(s jobs.State) bool { return s.Phase == jobs.PhaseSubmitting })

	coord.Reset()
	close(gate)

	if err := <-errCh; !errors.Is(err, jobs.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if state := coord.Snapshot(); state.Phase != jobs.PhaseIdle || state.Handle != nil {
		t.Fatalf("superseded submission leaked into state: %+v", state)
	}
	if gw.statusCount("j1") != 0 {
		t.Fatal("superseded job must not be polled")
	}
}

func TestCoordinatorClampsProgressRegression(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(ctx context.Context, id string, call int) (analysisapi.JobStatus, error) {
		if call == 1 {
			return processing(id, "transcribing audio"), nil
		}
		return processing(id, "re-encoding"), nil
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	state := waitFor(t, updates, "unknown step", func(s jobs.State) bool {
		return s.Status != nil && s.Status.CurrentStep == "re-encoding"
	})
	if state.Progress.Percent != 60 {
		t.Fatalf("percent regressed to %d", state.Progress.Percent)
	}
	if state.Progress.StepLabel != "Re-encoding" {
		t.Fatalf("label = %q", state.Progress.StepLabel)
	}
}

func TestCoordinatorTagsEachPollWithRequestID(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, call int) (analysisapi.JobStatus, error) {
		if call < 3 {
			return processing(id, ""), nil
		}
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusFailed}, nil
	}
	coord := newCoordinator(t, gw)
	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	waitSettled(t, coord)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.requestIDs) != 3 {
		t.Fatalf("expected 3 request ids, got %d", len(gw.requestIDs))
	}
	seen := make(map[string]struct{})
	for _, rid := range gw.requestIDs {
		if rid == "" {
			t.Fatal("empty request id")
		}
		seen[rid] = struct{}{}
	}
	if len(seen) != 3 {
		t.Fatalf("request ids not unique: %v", gw.requestIDs)
	}
}

func TestCoordinatorCloseEndsSubscriptions(t *testing.T) {
	gw := newFakeGateway()
	coord := jobs.New(gw, jobs.WithInterval(testInterval))
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	first := <-updates
	if first.Phase != jobs.PhaseIdle {
		t.Fatalf("initial phase = %s", first.Phase)
	}
	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	coord.Close()
	coord.Close()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				if err := coord.StartUpload(context.Background(), testUpload("b.mp4")); !errors.Is(err, jobs.ErrClosed) {
					t.Fatalf("StartUpload after Close = %v", err)
				}
				return
			}
		case <-timeout:
			t.Fatal("subscription not closed")
		}
	}
}

func TestStateRevisionsIncrease(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(_ context.Context, id string, _ int) (analysisapi.JobStatus, error) {
		return analysisapi.JobStatus{ID: id, Status: analysisapi.StatusCompleted}, nil
	}
	coord := newCoordinator(t, gw)
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	if err := coord.StartUpload(context.Background(), testUpload("a.mp4")); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}
	var last uint64
	waitFor(t, updates, "settled", func(s jobs.State) bool {
		if s.Revision < last {
			t.Fatalf("revision went backwards: %d -> %d", last, s.Revision)
		}
		last = s.Revision
		return s.Settled()
	})
}
