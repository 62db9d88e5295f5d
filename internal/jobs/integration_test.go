package jobs_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"interviewscope/internal/jobs"
	"interviewscope/internal/services/analysisapi"
	"interviewscope/internal/testsupport"
)

func TestCoordinatorAgainstHTTPBackend(t *testing.T) {
	backend := testsupport.NewFakeBackend(t)
	backend.QueueJobs("j1")
	backend.ScriptStatus("j1",
		testsupport.StatusReply("j1", "pending", "", -1),
		testsupport.StatusReply("j1", "processing", "transcribing audio", -1),
		testsupport.Reply{Code: http.StatusBadGateway, Body: "upstream unavailable"},
		testsupport.StatusReply("j1", "processing", "analyzing body language", 0.85),
		testsupport.StatusReply("j1", "completed", "scoring candidate", 1),
	)
	backend.SetResults("j1", testsupport.ResultsReply("j1", map[string]float64{
		"communication_score": 8,
		"confidence_score":    7,
	}))

	client, err := analysisapi.NewClient(backend.URL())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	coord := jobs.New(client, jobs.WithInterval(10*time.Millisecond))
	t.Cleanup(coord.Close)

	path := testsupport.WriteVideo(t, t.TempDir(), "interview.mp4", 2048)
	upload, err := analysisapi.OpenUpload(path)
	if err != nil {
		t.Fatalf("OpenUpload error: %v", err)
	}
	defer upload.Close()

	if err := coord.StartUpload(context.Background(), upload); err != nil {
		t.Fatalf("StartUpload error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := coord.WaitSettled(ctx)
	if err != nil {
		t.Fatalf("WaitSettled error: %v", err)
	}

	if final.Phase != jobs.PhaseCompleted || final.Results == nil {
		t.Fatalf("unexpected final state: phase=%s results=%v err=%v", final.Phase, final.Results, final.Err)
	}
	if avg, ok := final.Results.Analysis.AverageScore(); !ok || avg != 7.5 {
		t.Fatalf("average = %v, %v", avg, ok)
	}
	if final.Progress.Percent != 100 {
		t.Fatalf("percent = %d", final.Progress.Percent)
	}
	// The 502 in the middle of the script is advisory and remains visible.
	if final.Err == nil {
		t.Fatal("expected the transient poll error to be retained")
	}
	if got := backend.Calls("results", "j1"); got != 1 {
		t.Fatalf("results fetched %d times", got)
	}
	if got := backend.Calls("status", "j1"); got != 5 {
		t.Fatalf("status polled %d times, want 5", got)
	}

	uploads := backend.Uploads()
	if len(uploads) != 1 || uploads[0].Field != analysisapi.UploadField || uploads[0].Size != 2048 {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
}
