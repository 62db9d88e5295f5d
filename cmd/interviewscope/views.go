package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"interviewscope/internal/jobs"
	"interviewscope/internal/progress"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

const (
	progressBarWidth   = 30
	narrativeWrapWidth = 72
	feedbackWrapWidth  = 48
	createdLayout      = "2006-01-02 15:04:05"
	defaultVideoTitle  = "Uploaded Video"
)

func progressBar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * progressBarWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled) + "]"
}

func statusPanelLines(status analysisapi.JobStatus, snapshot progress.Snapshot, colorize bool) []string {
	lines := renderSectionHeader("Job Status", colorize)
	lines = append(lines,
		renderField("Job ID", status.ID),
		renderField("Filename", status.Filename),
		renderStatusLine("Status", jobStatusKind(status.Status), status.Status.String(), colorize),
		renderField("Current Step", snapshot.StepLabel),
		renderField("Created", formatTimestamp(status.CreatedAt)),
		renderField("Progress", fmt.Sprintf("%s %d%%", progressBar(snapshot.Percent), snapshot.Percent)),
	)
	if status.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, status.Error, colorize))
	}
	return lines
}

func progressLine(state jobs.State) string {
	switch state.Phase {
	case jobs.PhaseSubmitting:
		return "Uploading video..."
	case jobs.PhasePolling, jobs.PhaseCompleted, jobs.PhaseFailed:
		status := ""
		if state.Status != nil {
			status = state.Status.Status.String()
		}
		line := fmt.Sprintf("%-10s %s %3d%% %s", status, progressBar(state.Progress.Percent), state.Progress.Percent, state.Progress.StepLabel)
		advisory := services.IsAdvisory(state.Err)
		if state.Phase == jobs.PhaseCompleted && state.Results == nil && (state.Err == nil || advisory) {
			line += " (fetching results)"
		}
		if advisory && state.Phase == jobs.PhasePolling {
			line += " (last poll failed, retrying)"
		}
		return line
	default:
		return ""
	}
}

func videoViewLines(filename, url string, colorize bool) []string {
	title := strings.TrimSpace(filename)
	if title == "" {
		title = defaultVideoTitle
	}
	lines := renderSectionHeader("Video Preview: "+title, colorize)
	if url == "" {
		return append(lines, renderField("URL", "unavailable"))
	}
	return append(lines, renderField("URL", url))
}

func resultsViewLines(results analysisapi.Results, colorize bool) []string {
	lines := renderSectionHeader("Analysis Results", colorize)
	if results.Analysis == nil {
		return append(lines, statusIndent+"No analysis result available")
	}
	analysis := results.Analysis

	lines = append(lines, "", "Candidate Evaluation Scores")
	categories := analysis.ScoreCategories()
	if len(categories) == 0 {
		lines = append(lines, statusIndent+"No scores reported")
	} else {
		rows := make([][]string, 0, len(categories))
		for _, category := range categories {
			score := analysis.CandidateScores[category]
			rows = append(rows, []string{formatCategory(category), formatScore(score.Value), score.Feedback})
		}
		lines = append(lines, renderTable([]tableColumn{
			{header: "Category"},
			{header: "Score", align: alignRight},
			{header: "Feedback", wrap: feedbackWrapWidth},
		}, rows))
	}
	if avg, ok := analysis.AverageScore(); ok {
		lines = append(lines, renderField("Overall", fmt.Sprintf("%.1f/10", avg)))
	}

	narratives := analysis.NarrativeCategories()
	if len(narratives) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Body Language And Voice Analysis", colorize)...)
		for _, category := range narratives {
			lines = append(lines, formatCategory(category))
			wrapped := text.WrapSoft(analysis.BodyLanguage[category], narrativeWrapWidth)
			for _, line := range strings.Split(wrapped, "\n") {
				lines = append(lines, statusIndent+line)
			}
		}
	}
	return lines
}

func formatCategory(category string) string {
	name := strings.TrimSuffix(category, "_score")
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	caser := cases.Title(language.Und, cases.NoLower)
	for i, word := range words {
		words[i] = caser.String(word)
	}
	return strings.Join(words, " ")
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "/10"
}

func formatTimestamp(ts analysisapi.Timestamp) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.In(time.Local).Format(createdLayout)
}

func jobsTableRows(list []analysisapi.JobStatus, steps []string) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		snapshot := progress.Resolve(job, steps)
		rows = append(rows, []string{
			job.ID,
			job.Filename,
			job.Status.String(),
			snapshot.StepLabel,
			strconv.Itoa(snapshot.Percent) + "%",
			formatTimestamp(job.CreatedAt),
		})
	}
	return rows
}

var jobsTableColumns = []tableColumn{
	{header: "ID"},
	{header: "Filename"},
	{header: "Status"},
	{header: "Step"},
	{header: "Progress", align: alignRight},
	{header: "Created"},
}
