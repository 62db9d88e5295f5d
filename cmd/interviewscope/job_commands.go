package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"interviewscope/internal/progress"
	"interviewscope/internal/services/analysisapi"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snapshot := progress.Resolve(status, cfg.KnownSteps())
			if jsonOutput {
				return writeJSON(cmd, struct {
					analysisapi.JobStatus
					Percent   int    `json:"percent"`
					StepLabel string `json:"step_label"`
				}{status, snapshot.Percent, snapshot.StepLabel})
			}
			out := cmd.OutOrStdout()
			writeLines(out, statusPanelLines(status, snapshot, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var showTranscript bool

	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Show the analysis results of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			results, err := client.GetResults(cmd.Context(), args[0])
			if err != nil {
				if backendErr, ok := analysisapi.IsBackendError(err); ok && backendErr.Detail() != "" {
					return fmt.Errorf("results for %s unavailable: %s", args[0], backendErr.Detail())
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := []string{
				renderField("Job ID", results.JobID),
				renderField("Filename", results.Filename),
				renderField("Completed", formatTimestamp(results.CompletedAt)),
				"",
			}
			lines = append(lines, resultsViewLines(results, colorize)...)
			if showTranscript && strings.TrimSpace(results.Transcript) != "" {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Transcript", colorize)...)
				lines = append(lines, strings.TrimSpace(results.Transcript))
			}
			writeLines(out, lines)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the results as JSON")
	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Include the interview transcript")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			list, err := client.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			fmt.Fprintln(out, renderTable(jobsTableColumns, jobsTableRows(list, cfg.KnownSteps())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job list as JSON")
	return cmd
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var save bool

	cmd := &cobra.Command{
		Use:   "video <job-id>",
		Short: "Print the playable video URL for a job, or download the video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			out := cmd.OutOrStdout()

			target := strings.TrimSpace(outputPath)
			if target == "" && save {
				target = filepath.Join(cfg.Video.DownloadDir, id+".mp4")
			}
			if target == "" {
				fmt.Fprintln(out, client.VideoURL(analysisapi.JobHandle{ID: id}))
				return nil
			}

			written, err := client.SaveVideo(cmd.Context(), id, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d bytes to %s\n", written, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Download the video to this path")
	cmd.Flags().BoolVar(&save, "save", false, "Download the video into video.download_dir")
	return cmd
}
