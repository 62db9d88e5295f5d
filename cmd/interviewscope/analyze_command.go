package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"interviewscope/internal/config"
	"interviewscope/internal/jobs"
	"interviewscope/internal/logging"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Upload a video and follow its analysis to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			upload, err := analysisapi.OpenUpload(path)
			if err != nil {
				return err
			}
			defer upload.Close()

			if interval <= 0 {
				interval = cfg.PollInterval()
			}
			coord := jobs.New(client,
				jobs.WithInterval(interval),
				jobs.WithSteps(cfg.KnownSteps()),
				jobs.WithLogger(logger),
			)
			defer coord.Close()

			logger.Debug("analyze started",
				logging.String("video", path),
				logging.String("backend", client.BaseURL()),
			)

			final, err := watchJob(cmd, coord, upload, !jsonOutput)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(cmd, final); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out)
				writeLines(out, finalStateLines(final, client, shouldColorize(out)))
			}
			return outcomeError(final)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final job state as JSON")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Status poll interval (default from polling.interval_ms)")
	return cmd
}

// watchJob starts the upload and follows published states until the job
// settles. When live is set, each distinct progress line is printed.
func watchJob(cmd *cobra.Command, coord *jobs.Coordinator, upload analysisapi.Upload, live bool) (jobs.State, error) {
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	ctx := cmd.Context()
	go func() {
		// Failures surface through published state.
		_ = coord.StartUpload(ctx, upload)
	}()

	out := cmd.OutOrStdout()
	var last string
	for {
		select {
		case <-ctx.Done():
			return coord.Snapshot(), ctx.Err()
		case state, ok := <-updates:
			if !ok {
				return coord.Snapshot(), jobs.ErrClosed
			}
			if live {
				if line := progressLine(state); line != "" && line != last {
					fmt.Fprintln(out, line)
					last = line
				}
			}
			if state.Settled() {
				return state, nil
			}
		}
	}
}

func finalStateLines(state jobs.State, client *analysisapi.Client, colorize bool) []string {
	var lines []string
	if state.Status != nil {
		lines = append(lines, statusPanelLines(*state.Status, state.Progress, colorize)...)
	}
	if state.Handle != nil {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, videoViewLines(state.Handle.Filename, client.VideoURL(*state.Handle), colorize)...)
	}
	if state.Results != nil {
		lines = append(lines, "")
		lines = append(lines, resultsViewLines(*state.Results, colorize)...)
	}
	if services.IsAdvisory(state.Err) {
		lines = append(lines, "", renderStatusLine("Note", statusWarn, state.Err.Error(), colorize))
	}
	return lines
}

// outcomeError returns the error that should fail the command: a rejected
// submission, a FAILED job, or a failed result fetch. Advisory poll errors
// do not fail a job that completed.
func outcomeError(state jobs.State) error {
	if state.Err == nil || services.IsAdvisory(state.Err) {
		return nil
	}
	switch {
	case errors.Is(state.Err, services.ErrSubmission),
		errors.Is(state.Err, services.ErrJobFailure),
		errors.Is(state.Err, services.ErrResultFetch):
		return state.Err
	default:
		return nil
	}
}
