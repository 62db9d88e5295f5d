package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"interviewscope/internal/services/analysisapi"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Status", statusError, "FAILED", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Status:", "[ERROR] FAILED")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Status", statusOK, "COMPLETED", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestJobStatusKind(t *testing.T) {
	cases := map[analysisapi.Status]statusKind{
		analysisapi.StatusCompleted:  statusOK,
		analysisapi.StatusFailed:     statusError,
		analysisapi.StatusProcessing: statusInfo,
		analysisapi.StatusPending:    statusInfo,
	}
	for status, want := range cases {
		if got := jobStatusKind(status); got != want {
			t.Fatalf("jobStatusKind(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestRenderSectionHeaderMatchesWidth(t *testing.T) {
	lines := renderSectionHeader("Video Preview: entrevista.mp4", false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if len([]rune(lines[0])) != len(lines[1]) {
		t.Fatalf("rule width mismatch: %q / %q", lines[0], lines[1])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
