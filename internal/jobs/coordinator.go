package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"interviewscope/internal/logging"
	"interviewscope/internal/progress"
	"interviewscope/internal/services"
	"interviewscope/internal/services/analysisapi"
)

const defaultInterval = time.Second

var (
	// ErrSuperseded is returned by StartUpload when a later StartUpload or
	// Reset replaced the submission while it was in flight.
	ErrSuperseded = errors.New("job superseded by a newer submission")
	// ErrNotCompleted is returned by FetchResults before the job reports
	// COMPLETED.
	ErrNotCompleted = errors.New("job has not completed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")
)

// Gateway is the subset of the backend client the coordinator drives.
type Gateway interface {
	SubmitJob(ctx context.Context, upload analysisapi.Upload) (analysisapi.JobHandle, error)
	GetStatus(ctx context.Context, id string) (analysisapi.JobStatus, error)
	GetResults(ctx context.Context, id string) (analysisapi.Results, error)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithInterval sets the poll cadence. Non-positive values are ignored.
func WithInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithSteps sets the ordered step list used for step-based progress. An
// empty list keeps the defaults.
func WithSteps(steps []string) Option {
	return func(c *Coordinator) {
		if len(steps) > 0 {
			c.steps = append([]string(nil), steps...)
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator owns the state of the active job.
type Coordinator struct {
	gateway  Gateway
	interval time.Duration
	steps    []string
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	cancel      context.CancelFunc
	done        chan struct{}
	fetchDone   chan struct{}
	subscribers map[uint64]chan State
	nextSub     uint64
	closed      bool
}

// New constructs an idle coordinator.
func New(gateway Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:     gateway,
		interval:    defaultInterval,
		steps:       append([]string(nil), progress.DefaultSteps...),
		logger:      logging.NewNop(),
		state:       State{Phase: PhaseIdle},
		subscribers: make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "coordinator")
	return c
}

// StartUpload discards any previous job, submits upload, and on success
// starts polling the new job. Polling runs until the job settles, Reset or
// Close is called, or ctx is cancelled.
func (c *Coordinator) StartUpload(ctx context.Context, upload analysisapi.Upload) error {
	gen, err := c.supersede(PhaseSubmitting)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("submitting video", logging.String("filename", upload.Filename))

	handle, err := c.gateway.SubmitJob(ctx, upload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		logger.Debug("discarding superseded submission result")
		return ErrSuperseded
	}
	if err != nil {
		c.state.Phase = PhaseErrored
		c.state.Err = services.Wrap(services.ErrSubmission, "submit job", upload.Filename, err)
		c.publishLocked()
		logging.WarnWithContext(logger, "video submission failed", "submission_failed",
			"no job was started", logging.Error(err))
		return c.state.Err
	}

	initial := handle.InitialStatus()
	c.state.Phase = PhasePolling
	c.state.Handle = &handle
	c.state.Status = &initial
	c.state.Progress = progress.Resolve(initial, c.steps)
	c.publishLocked()

	runCtx, cancel := context.WithCancel(services.WithJobID(ctx, handle.ID))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go c.poll(runCtx, gen, handle.ID, done)

	logging.WithContext(runCtx, c.logger).Info("job accepted",
		logging.String("filename", handle.Filename),
		logging.Duration("interval", c.interval),
	)
	return nil
}

// FetchResults retrieves the results of the completed job. At most one
// network fetch happens per job; later calls wait for the first attempt and
// return its outcome without touching the network.
func (c *Coordinator) FetchResults(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != PhaseCompleted || c.state.Handle == nil {
		c.mu.Unlock()
		return ErrNotCompleted
	}
	gen, id := c.generation, c.state.Handle.ID
	c.mu.Unlock()
	return c.fetchResults(services.WithJobID(ctx, id), gen, id)
}

// Reset stops polling and returns to idle, discarding the job, its results,
// and any error.
func (c *Coordinator) Reset() {
	if _, err := c.supersede(PhaseIdle); err != nil {
		return
	}
	c.logger.Debug("coordinator reset")
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the current state immediately
// and every published state afterwards. The channel holds only the latest
// state: a slow reader skips intermediate revisions, never the newest. The
// returned function unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		ch <- c.state
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(ch)
			}
		})
	}
}

// WaitSettled blocks until the state settles or ctx ends.
func (c *Coordinator) WaitSettled(ctx context.Context) (State, error) {
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	var last State
	for {
		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case state, ok := <-updates:
			if !ok {
				return last, ErrClosed
			}
			last = state
			if state.Settled() {
				return state, nil
			}
		}
	}
}

// Close stops polling and closes every subscription. It is safe to call more
// than once.
func (c *Coordinator) Close() {
	_, _ = c.supersede(PhaseIdle)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// supersede invalidates the current run, publishes a fresh state in the
// given phase, and waits for the previous poll loop to exit.
func (c *Coordinator) supersede(phase Phase) (uint64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.generation++
	gen := c.generation
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	if cancel != nil {
		cancel()
	}
	c.fetchDone = nil
	c.state = State{Phase: phase, Revision: c.state.Revision}
	c.publishLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return gen, nil
}

// publishLocked bumps the revision and hands the state to every subscriber,
// replacing any state they have not read yet. c.mu must be held.
func (c *Coordinator) publishLocked() {
	c.state.Revision++
	snapshot := c.state
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
