// Package orchestrator drives a run: agents take turns on a shared project
// directory, iteration after iteration, until enough of them say the work is
// done or the iteration limit is reached.
//
// Within an iteration agents run one at a time in priority order. Each one
// sees a fresh snapshot of the project, so later agents see what earlier
// agents wrote in the same iteration. The Controller is the only writer of
// the project for the duration of a run, which is why no locking guards the
// project itself.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
	"github.com/Iron-Ham/roundtable/internal/orchestrator/completion"
	"github.com/Iron-Ham/roundtable/internal/orchestrator/retry"
	"github.com/Iron-Ham/roundtable/internal/response"
	"github.com/Iron-Ham/roundtable/internal/util"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

// Callbacks holds callbacks for run events. Any field may be nil.
type Callbacks struct {
	// OnIterationStart is called before the first agent of an iteration runs.
	OnIterationStart func(iteration int)

	// OnAgentStart is called before an agent is invoked.
	OnAgentStart func(iteration int, d agent.Descriptor)

	// OnAgentComplete is called after an agent's response has been applied,
	// or after its invocation failed for good.
	OnAgentComplete func(iteration int, rec AgentRecord)

	// OnIterationComplete is called once every agent of an iteration ran.
	OnIterationComplete func(rec IterationRecord)

	// OnStateChange is called on every state transition.
	OnStateChange func(from, to State)

	// OnComplete is called with the final result, for any stop reason.
	OnComplete func(result *RunResult)
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithLogger sets the logger for the controller.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallbacks sets the run event callbacks.
func WithCallbacks(cb *Callbacks) Option {
	return func(c *Controller) {
		c.callbacks = cb
	}
}

// WithDetector replaces the default completion detector.
func WithDetector(d *completion.Detector) Option {
	return func(c *Controller) {
		if d != nil {
			c.detector = d
		}
	}
}

// WithRunID sets the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.runID = id
		}
	}
}

// Controller runs the iteration loop for one project.
type Controller struct {
	cfg      Config
	project  *workspace.Project
	invoker  agent.Invoker
	parser   *response.Parser
	detector *completion.Detector
	logger   *logging.Logger
	runID    string

	mu        sync.RWMutex
	callbacks *Callbacks
	state     State
	running   bool
}

// New creates a Controller. The configuration is validated here so a bad
// configuration fails before any agent is invoked.
func New(cfg Config, project *workspace.Project, invoker agent.Invoker, opts ...Option) (*Controller, error) {
	if project == nil {
		panic("orchestrator.New: project must not be nil")
	}
	if invoker == nil {
		panic("orchestrator.New: invoker must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		project:  project,
		invoker:  invoker,
		parser:   response.NewParser(project.Sanitizer()),
		detector: completion.NewDetector(),
		logger:   logging.NopLogger(),
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithRun(c.runID)
	return c, nil
}

// RunID returns the ID of the controller's run.
func (c *Controller) RunID() string {
	return c.runID
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetCallbacks sets the run event callbacks.
func (c *Controller) SetCallbacks(cb *Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
}

// run holds the state of a single Run call. Nothing here outlives it.
type run struct {
	result  *RunResult
	agents  []agent.Descriptor
	history []agent.Message
	retries *retry.Manager
}

// Run executes the loop until consensus, the iteration limit, or ctx is
// canceled. Cancellation takes effect between agent turns: an invocation
// already in flight runs to completion or to its timeout.
//
// The returned result is never nil. A non-nil error means the run ended
// early because ctx was canceled or the project root became unavailable;
// the result then holds everything recorded up to that point.
func (c *Controller) Run(ctx context.Context) (*RunResult, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("run %s already started", c.runID)
	}
	c.running = true
	c.state = StateRunning
	c.mu.Unlock()

	r := &run{
		result: &RunResult{
			ID:        c.runID,
			Task:      c.cfg.Task,
			Root:      c.project.Root(),
			StartedAt: time.Now(),
			State:     StateRunning,
			Agents:    agent.Roles(agent.Ordered(c.cfg.Agents)),
		},
		agents:  agent.Ordered(c.cfg.Agents),
		retries: retry.NewManager(),
	}

	c.logger.Info("run started",
		"root", c.project.Root(),
		"agents", r.result.Agents,
		"max_iterations", c.cfg.MaxIterations,
		"min_iterations", c.cfg.MinIterations,
		"auto_stop", c.cfg.AutoStop,
		"threshold", c.cfg.ConsensusThreshold,
	)

	if c.cfg.WatchExternalChanges {
		if err := c.project.StartWatching(); err != nil {
			c.logger.Warn("external change watching disabled", "error", err.Error())
		}
	}

	for i := 1; i <= c.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return c.finish(r, ReasonCanceled, canceled(err))
		}
		c.setState(StateRunning)
		c.notifyIterationStart(i)

		rec, err := c.runIteration(ctx, r, i)
		r.result.Iterations = i
		if err != nil {
			r.result.Records = append(r.result.Records, rec)
			if ctx.Err() != nil {
				return c.finish(r, ReasonCanceled, canceled(ctx.Err()))
			}
			return c.finish(r, ReasonError, err)
		}

		if i < c.cfg.MinIterations {
			r.result.Records = append(r.result.Records, rec)
			c.notifyIterationComplete(rec)
			continue
		}

		c.setState(StateCheckingConsensus)
		rec.Checked = true
		r.result.Records = append(r.result.Records, rec)
		c.notifyIterationComplete(rec)

		signaled, total := rec.Tally()
		if c.cfg.AutoStop && ConsensusReached(signaled, total, c.cfg.ConsensusThreshold) {
			c.logger.Info("consensus reached",
				"iteration", i,
				"signaled", signaled,
				"total", total,
			)
			c.setState(StateStopped)
			r.result.StoppedEarly = true
			r.result.StopIteration = i
			return c.finish(r, ReasonConsensus, nil)
		}
	}

	c.setState(StateExhausted)
	return c.finish(r, ReasonMaxIterations, nil)
}

func canceled(cause error) error {
	return errors.Join(errors.ErrCanceled, cause)
}

// runIteration invokes every agent once. It returns an error only when ctx is
// canceled or a fatal error (see errors.IsFatal) occurs. Other per-agent and
// per-file failures are recorded instead.
func (c *Controller) runIteration(ctx context.Context, r *run, i int) (IterationRecord, error) {
	rec := IterationRecord{Index: i}

	for _, d := range r.agents {
		if err := ctx.Err(); err != nil {
			rec.Interrupted = true
			rec.Consensus = consensus(rec.Signaled, len(rec.Agents))
			return rec, err
		}

		// Snapshot fails only when the root is unavailable, which is fatal.
		snap, err := c.project.Snapshot()
		if err != nil {
			rec.Interrupted = true
			rec.Consensus = consensus(rec.Signaled, len(rec.Agents))
			return rec, err
		}

		c.notifyAgentStart(i, d)
		ar := c.takeTurn(ctx, r, i, d, snap)
		rec.Agents = append(rec.Agents, ar)
		if ar.SignaledDone {
			rec.Signaled++
		}
		c.notifyAgentComplete(i, ar)
	}

	rec.Consensus = consensus(rec.Signaled, len(rec.Agents))
	return rec, nil
}

func consensus(signaled, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(signaled) / float64(total)
}

// takeTurn invokes one agent, retrying failed attempts, and applies its
// response.
func (c *Controller) takeTurn(ctx context.Context, r *run, i int, d agent.Descriptor, snap workspace.Snapshot) AgentRecord {
	logger := c.logger.WithIteration(i).WithAgent(d.Role)
	ar := AgentRecord{Role: d.Role, Name: d.DisplayName()}

	req := agent.Request{
		Agent:     d,
		Task:      c.cfg.Task,
		Iteration: i,
		History:   agent.RecentHistory(r.history, c.cfg.HistoryLimit),
		Snapshot:  snap,
		Root:      c.project.Root(),
	}

	key := retry.Key(i, d.Role)
	r.retries.Begin(key, c.cfg.MaxRetries)

	start := time.Now()
	var (
		text string
		err  error
	)
	for {
		text, err = c.invoke(ctx, req)
		r.retries.RecordAttempt(key, err)
		if err == nil {
			break
		}

		state, _ := r.retries.State(key)
		logger.Warn("agent invocation failed",
			"attempt", state.Attempts,
			"error", err.Error(),
		)
		if ctx.Err() != nil || !errors.IsRetryable(err) || !r.retries.ShouldRetry(key) {
			break
		}
	}
	ar.Duration = time.Since(start)

	state, _ := r.retries.State(key)
	ar.Attempts = state.Attempts
	ar.AttemptErrors = state.Errors

	if err != nil {
		var invErr *errors.InvocationError
		if errors.As(err, &invErr) {
			invErr.WithRole(d.Role).WithIteration(i).WithAttempt(state.Attempts)
			ar.TimedOut = invErr.IsTimeout()
		}
		ar.Error = err.Error()
		logger.Error("agent turn failed",
			"attempts", state.Attempts,
			"timed_out", ar.TimedOut,
			"last_error", state.LastError(),
		)
		return ar
	}

	r.history = agent.RecentHistory(
		append(r.history, agent.Message{Iteration: i, Role: d.Role, Text: text}),
		c.cfg.HistoryLimit,
	)

	ar.Outcomes = c.apply(text)
	ar.MatchedPhrase, ar.SignaledDone = c.detector.Match(text)

	logger.Info("agent turn complete",
		"files", len(ar.Outcomes),
		"signaled_done", ar.SignaledDone,
		"duration", ar.Duration.String(),
		"response", util.TruncateString(util.FirstLine(text), 120),
	)
	return ar
}

// invoke makes one attempt. The call is detached from ctx's cancellation so
// an in-flight invocation is only ever cut short by its own timeout.
func (c *Controller) invoke(ctx context.Context, req agent.Request) (string, error) {
	callCtx := context.WithoutCancel(ctx)
	if c.cfg.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.cfg.InvocationTimeout)
		defer cancel()
	}

	text, err := c.invoker.Invoke(callCtx, req)
	if err == nil {
		return text, nil
	}

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		timeout := errors.NewTimeoutError("invoking agent "+req.Agent.Role, c.cfg.InvocationTimeout).WithCause(err)
		return "", errors.NewInvocationError("timed out waiting for a response", timeout)
	}

	invErr := errors.NewInvocationError("backend returned an error", errors.Join(errors.ErrInvocationFailed, err))
	var rtErr errors.RoundtableError
	if errors.As(err, &rtErr) && !rtErr.IsRetryable() {
		invErr.WithRetryable(false)
	}
	return "", invErr
}

// apply writes every file block in text and returns one outcome per block.
// Blocks whose path the parser refused are recorded as rejected writes.
func (c *Controller) apply(text string) []workspace.Outcome {
	var outcomes []workspace.Outcome
	for b := range c.parser.Blocks(text) {
		if b.Err != nil {
			outcomes = append(outcomes, c.project.Reject(b.RawPath, b.Err))
			continue
		}
		outcomes = append(outcomes, c.project.Write(b.Path, b.Content))
	}
	return outcomes
}

func (c *Controller) finish(r *run, reason StopReason, err error) (*RunResult, error) {
	res := r.result
	if c.cfg.WatchExternalChanges {
		res.ExternalChanges = c.project.StopWatching()
	}
	res.State = c.State()
	res.Reason = reason
	res.EndedAt = time.Now()
	if err != nil {
		res.Error = err.Error()
	}

	c.logger.Info("run finished",
		"state", res.State.String(),
		"reason", string(reason),
		"iterations", res.Iterations,
		"stopped_early", res.StoppedEarly,
		"failures", len(res.Failures()),
		"failed_turns", r.retries.Failed(),
		"files_written", len(c.project.Written()),
	)
	c.notifyComplete(res)
	return res, err
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	cb := c.callbacks
	c.mu.Unlock()

	if from == to {
		return
	}
	c.logger.Debug("state changed", "from", from.String(), "to", to.String())
	if cb != nil && cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

func (c *Controller) getCallbacks() *Callbacks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callbacks
}

func (c *Controller) notifyIterationStart(iteration int) {
	c.logger.Info("iteration started", "iteration", iteration)

	if cb := c.getCallbacks(); cb != nil && cb.OnIterationStart != nil {
		cb.OnIterationStart(iteration)
	}
}

func (c *Controller) notifyAgentStart(iteration int, d agent.Descriptor) {
	c.logger.Debug("invoking agent", "iteration", iteration, "agent", d.Role)

	if cb := c.getCallbacks(); cb != nil && cb.OnAgentStart != nil {
		cb.OnAgentStart(iteration, d)
	}
}

func (c *Controller) notifyAgentComplete(iteration int, rec AgentRecord) {
	if cb := c.getCallbacks(); cb != nil && cb.OnAgentComplete != nil {
		cb.OnAgentComplete(iteration, rec)
	}
}

func (c *Controller) notifyIterationComplete(rec IterationRecord) {
	signaled, total := rec.Tally()
	c.logger.Info("iteration complete",
		"iteration", rec.Index,
		"signaled", signaled,
		"total", total,
		"checked", rec.Checked,
	)

	if cb := c.getCallbacks(); cb != nil && cb.OnIterationComplete != nil {
		cb.OnIterationComplete(rec)
	}
}

func (c *Controller) notifyComplete(res *RunResult) {
	if cb := c.getCallbacks(); cb != nil && cb.OnComplete != nil {
		cb.OnComplete(res)
	}
}
