package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Reply is a canned HTTP response.
type Reply struct {
	Code int
	Body string
}

// JSON encodes v as a 200 reply.
func JSON(t testing.TB, v any) Reply {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	return Reply{Code: http.StatusOK, Body: string(data)}
}

// Detail builds an error reply in the backend's {"detail": ...} shape.
func Detail(code int, message string) Reply {
	data, _ := json.Marshal(map[string]string{"detail": message})
	return Reply{Code: code, Body: string(data)}
}

// StatusReply builds a status payload. progress < 0 omits the field.
func StatusReply(id, status, step string, progress float64) Reply {
	payload := map[string]any{
		"job_id":     id,
		"filename":   "interview.mp4",
		"status":     status,
		"created_at": "2024-05-01T10:00:00",
	}
	if step != "" {
		payload["current_step"] = step
	}
	if progress >= 0 {
		payload["progress"] = progress
	}
	data, _ := json.Marshal(payload)
	return Reply{Code: http.StatusOK, Body: string(data)}
}

// ResultsReply builds a results payload with the given candidate scores.
func ResultsReply(id string, scores map[string]float64) Reply {
	candidate := make(map[string][]any, len(scores))
	for category, score := range scores {
		candidate[category] = []any{"Feedback for " + category, score}
	}
	data, _ := json.Marshal(map[string]any{
		"job_id":       id,
		"status":       "COMPLETED",
		"filename":     "interview.mp4",
		"transcript":   "Thank you for having me.",
		"created_at":   "2024-05-01T10:00:00",
		"completed_at": "2024-05-01T10:05:00",
		"analysis_result": map[string]any{
			"candidate_score":        candidate,
			"body_language_analysis": map[string]string{"posture": "Upright and attentive"},
		},
	})
	return Reply{Code: http.StatusOK, Body: string(data)}
}

// UploadRecord captures one received upload.
type UploadRecord struct {
	Field    string
	Filename string
	Size     int
}

// FakeBackend is a scripted stand-in for the analysis backend served over
// httptest. Status replies are served in order per job; the last one repeats.
type FakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	jobIDs   []string
	upload   *Reply
	statuses map[string][]Reply
	results  map[string]Reply
	videos   map[string][]byte
	jobs     *Reply
	calls    map[string]int
	uploads  []UploadRecord
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		statuses: make(map[string][]Reply),
		results:  make(map[string]Reply),
		videos:   make(map[string][]byte),
		calls:    make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/upload", fb.handleUpload)
	mux.HandleFunc("GET /api/v1/status/{id}", fb.handleStatus)
	mux.HandleFunc("GET /api/v1/results/{id}", fb.handleResults)
	mux.HandleFunc("GET /api/v1/videos/{id}", fb.handleVideo)
	mux.HandleFunc("GET /api/v1/jobs", fb.handleJobs)
	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

// URL returns the fake backend's base URL.
func (fb *FakeBackend) URL() string {
	return fb.server.URL
}

// QueueJobs sets the ids handed out by successive uploads.
func (fb *FakeBackend) QueueJobs(ids ...string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.jobIDs = append(fb.jobIDs, ids...)
}

// RejectUploads makes every upload answer with reply.
func (fb *FakeBackend) RejectUploads(reply Reply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.upload = &reply
}

// ScriptStatus appends status replies for a job.
func (fb *FakeBackend) ScriptStatus(id string, replies ...Reply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statuses[id] = append(fb.statuses[id], replies...)
}

// SetResults sets the results reply for a job.
func (fb *FakeBackend) SetResults(id string, reply Reply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.results[id] = reply
}

// SetVideo sets the bytes served for a job's video.
func (fb *FakeBackend) SetVideo(id string, data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.videos[id] = append([]byte(nil), data...)
}

// SetJobs sets the job list reply.
func (fb *FakeBackend) SetJobs(reply Reply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.jobs = &reply
}

// Calls returns how many requests hit an endpoint kind ("status", "results",
// "videos") for a job.
func (fb *FakeBackend) Calls(kind, id string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[kind+"/"+id]
}

// Uploads returns the uploads received so far.
func (fb *FakeBackend) Uploads() []UploadRecord {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]UploadRecord(nil), fb.uploads...)
}

func (fb *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeReply(w, Detail(http.StatusBadRequest, err.Error()))
		return
	}
	part, err := reader.NextPart()
	if err != nil {
		writeReply(w, Detail(http.StatusBadRequest, err.Error()))
		return
	}
	size, _ := io.Copy(io.Discard, part)
	record := UploadRecord{Field: part.FormName(), Filename: part.FileName(), Size: int(size)}

	fb.mu.Lock()
	fb.uploads = append(fb.uploads, record)
	rejection := fb.upload
	var id string
	if len(fb.jobIDs) > 0 {
		id = fb.jobIDs[0]
		fb.jobIDs = fb.jobIDs[1:]
	} else {
		id = fmt.Sprintf("job-%d", len(fb.uploads))
	}
	fb.mu.Unlock()

	if rejection != nil {
		writeReply(w, *rejection)
		return
	}
	data, _ := json.Marshal(map[string]string{
		"job_id":     id,
		"filename":   record.Filename,
		"status":     "PENDING",
		"message":    "Video uploaded successfully",
		"created_at": "2024-05-01T10:00:00",
	})
	writeReply(w, Reply{Code: http.StatusOK, Body: string(data)})
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	fb.calls["status/"+id]++
	queue := fb.statuses[id]
	var reply Reply
	switch len(queue) {
	case 0:
		reply = Detail(http.StatusNotFound, "Job not found")
	case 1:
		reply = queue[0]
	default:
		reply = queue[0]
		fb.statuses[id] = queue[1:]
	}
	fb.mu.Unlock()
	writeReply(w, reply)
}

func (fb *FakeBackend) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	fb.calls["results/"+id]++
	reply, ok := fb.results[id]
	fb.mu.Unlock()
	if !ok {
		reply = Detail(http.StatusBadRequest, "Job not completed yet")
	}
	writeReply(w, reply)
}

func (fb *FakeBackend) handleVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	fb.calls["videos/"+id]++
	data, ok := fb.videos[id]
	fb.mu.Unlock()
	if !ok {
		writeReply(w, Detail(http.StatusNotFound, "Video not found"))
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	_, _ = w.Write(data)
}

func (fb *FakeBackend) handleJobs(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	reply := fb.jobs
	fb.mu.Unlock()
	if reply == nil {
		writeReply(w, Reply{Code: http.StatusOK, Body: "[]"})
		return
	}
	writeReply(w, *reply)
}

func writeReply(w http.ResponseWriter, reply Reply) {
	code := reply.Code
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, reply.Body)
}
