package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"interviewscope/internal/logging"
	"interviewscope/internal/progress"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

// poll runs the status loop for one job until the job is terminal or ctx is
// cancelled. Ticks are serialized: the limiter is consulted only after the
// previous tick's response has been handled.
func (c *Coordinator) poll(ctx context.Context, gen uint64, id string, done chan<- struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Every(c.interval), 1)
	sampler := logging.NewProgressSampler(5)
	logger := logging.WithContext(ctx, c.logger)

	for {
		if err := limiter.Wait(ctx); err != nil {
			logger.Debug("poll loop stopped", logging.String("reason", err.Error()))
			return
		}
		if !c.tick(ctx, gen, id, sampler) {
			return
		}
	}
}

// tick performs one status request and applies the response. It reports
// whether polling should continue.
func (c *Coordinator) tick(ctx context.Context, gen uint64, id string, sampler *logging.ProgressSampler) bool {
	c.mu.Lock()
	current := gen == c.generation
	c.mu.Unlock()
	if !current {
		return false
	}

	tickCtx := services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(tickCtx, c.logger)

	status, err := c.gateway.GetStatus(tickCtx, id)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		logger.Debug("discarding status for superseded job")
		return false
	}
	if err != nil {
		if ctx.Err() != nil {
			c.mu.Unlock()
			return false
		}
		c.state.Err = services.Wrap(services.ErrTransientPoll, "poll status", "job "+id, err)
		c.publishLocked()
		c.mu.Unlock()
		logging.WarnWithContext(logger, "status poll failed; retrying", "poll_failed",
			"progress may be stale until the next successful poll", logging.Error(err))
		return true
	}

	status.Status = analysisapi.ParseStatus(string(status.Status))
	if status.ID == "" {
		status.ID = id
	}
	if status.ID != id {
		c.mu.Unlock()
		logger.Debug("discarding status for another job", logging.String("response_job_id", status.ID))
		return true
	}

	snapshot := progress.Clamp(c.state.Progress, progress.Resolve(status, c.steps))
	c.state.Status = &status
	c.state.Progress = snapshot

	switch status.Status {
	case analysisapi.StatusCompleted:
		c.state.Phase = PhaseCompleted
		c.publishLocked()
		c.mu.Unlock()
		logger.Info("job completed")
		if err := c.fetchResults(ctx, gen, id); err != nil && !errors.Is(err, ErrSuperseded) {
			logger.Debug("result fetch ended with error", logging.Error(err))
		}
		return false
	case analysisapi.StatusFailed:
		c.state.Phase = PhaseFailed
		c.state.Err = services.Wrap(services.ErrJobFailure, "job "+id, failureReason(status), nil)
		c.publishLocked()
		c.mu.Unlock()
		logging.WarnWithContext(logger, "job failed", "job_failed", "no results will be produced",
			logging.String("reason", failureReason(status)))
		return false
	default:
		c.publishLocked()
		c.mu.Unlock()
		logProgress(logger, sampler, status, snapshot)
		return true
	}
}

// fetchResults retrieves results at most once per run. Later calls wait for
// the first attempt to finish and report its outcome without another request.
func (c *Coordinator) fetchResults(ctx context.Context, gen uint64, id string) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if c.state.Phase != PhaseCompleted {
		c.mu.Unlock()
		return ErrNotCompleted
	}
	if inflight := c.fetchDone; inflight != nil {
		c.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation {
			return ErrSuperseded
		}
		if errors.Is(c.state.Err, services.ErrResultFetch) {
			return c.state.Err
		}
		return nil
	}
	done := make(chan struct{})
	c.fetchDone = done
	c.mu.Unlock()

	logger := logging.WithContext(ctx, c.logger)
	results, err := c.gateway.GetResults(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(done)
	if gen != c.generation {
		return ErrSuperseded
	}
	if err != nil {
		c.state.Err = services.Wrap(services.ErrResultFetch, "fetch results", "job "+id, err)
		c.publishLocked()
		logging.WarnWithContext(logger, "result retrieval failed", "results_failed",
			"job completed but results are unavailable", logging.Error(err))
		return c.state.Err
	}
	c.state.Results = &results
	c.publishLocked()
	logger.Info("results received", logging.Int("score_categories", scoreCount(results)))
	return nil
}

func failureReason(status analysisapi.JobStatus) string {
	if status.Error != "" {
		return status.Error
	}
	return "backend reported FAILED"
}

func scoreCount(results analysisapi.Results) int {
	if results.Analysis == nil {
		return 0
	}
	return len(results.Analysis.CandidateScores)
}

func logProgress(logger *slog.Logger, sampler *logging.ProgressSampler, status analysisapi.JobStatus, snapshot progress.Snapshot) {
	if !sampler.ShouldLog(snapshot.Percent, status.CurrentStep) {
		return
	}
	logger.Info("job progress",
		logging.String("status", status.Status.String()),
		logging.String("step", snapshot.StepLabel),
		logging.Int("percent", snapshot.Percent),
	)
}
