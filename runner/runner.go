package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shanjing/adk-lab/agent"
	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/replay"
	"github.com/shanjing/adk-lab/session"
)

// ErrStateMismatch is returned in debug mode when replaying the stored log
// does not reproduce the live session state.
var ErrStateMismatch = errors.New("live state diverges from event log")

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// AppName is stamped on created sessions.
	AppName string
	// SessionStore persists sessions and their events.
	SessionStore core.SessionStore
	// Logger receives run, event and state logs.
	Logger logging.Logger
	// Debug enables pre/post-flight state logging and log replay checks.
	Debug bool
}

// Result describes a finished run.
type Result struct {
	SessionID string
	RunID     string
	// FinalText is the last final answer of the root agent.
	FinalText string
	// State is the session state after the run.
	State map[string]any
	// Events is the number of events the run appended, initial state and
	// user message included.
	Events int
	// Mismatches is filled in debug mode only.
	Mismatches []replay.Mismatch
}

// Runner coordinates agent execution over a session store. Public methods
// are safe for concurrent use.
type Runner struct {
	agent        core.Agent
	appName      string
	sessionStore core.SessionStore
	logger       logging.Logger
	debug        bool

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner for agent with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AppName:      "noname_app",
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		agent:        agent,
		appName:      opts.AppName,
		sessionStore: opts.SessionStore,
		logger:       opts.Logger,
		debug:        opts.Debug,
		activeRuns:   make(map[string]context.CancelFunc),
	}
}

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionStore returns the backing session store.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run creates a session for userID seeded with initialState and runs the
// root agent on text. The returned Result is non-nil whenever the session
// was created, even if the agent failed.
func (r *Runner) Run(ctx context.Context, userID, text string, initialState map[string]any) (*Result, error) {
	sess, err := r.sessionStore.Create(ctx, core.CreateSessionRequest{AppName: r.appName, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return r.run(ctx, sess.ID, userID, text, initialState)
}

// Continue runs the root agent on text in an existing session.
func (r *Runner) Continue(ctx context.Context, sessionID, text string) (*Result, error) {
	sess, err := r.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return r.run(ctx, sess.ID, sess.UserID, text, nil)
}

// Cancel cancels an in-flight run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

func (r *Runner) run(ctx context.Context, sessionID, userID, text string, initialState map[string]any) (*Result, error) {
	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	res := &Result{SessionID: sessionID, RunID: runID}
	persist := func(ev core.Event) error {
		if ev.InvocationID == "" {
			ev.InvocationID = runID
		}
		if err := r.sessionStore.AppendEvent(ctx, sessionID, ev); err != nil {
			r.logger.Error("runner.event.persist_failed", append(ev.LogAttrs(), "session_id", sessionID, "error", err.Error())...)
			return err
		}
		res.Events++
		r.logger.Debug("runner.event", append(ev.LogAttrs(), "session_id", sessionID, "run_id", runID)...)
		return nil
	}

	if len(initialState) > 0 {
		if err := persist(core.NewStateEvent(runID, core.RoleUser, initialState)); err != nil {
			return res, fmt.Errorf("record initial state: %w", err)
		}
	}
	if err := persist(core.NewUserMessageEvent(runID, text)); err != nil {
		return res, fmt.Errorf("record user message: %w", err)
	}

	working, err := r.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return res, fmt.Errorf("load session: %w", err)
	}
	if r.debug {
		logging.LogStateSnapshot(r.logger, "PRE-FLIGHT STATE", working.GetStateSnapshot())
	}

	rc := core.NewRunContext(ctx,
		core.Content{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: text}}},
		func(o *core.RunContextOptions) {
			o.SessionID = sessionID
			o.RunID = runID
			o.UserID = userID
			o.Agent = core.AgentInfo{Name: r.agent.Name(), Type: "root"}
			o.Session = working
			o.Emit = persist
			o.Logger = r.logger
		},
	)

	start := time.Now()
	r.logger.Info("runner.run.start", "agent", r.agent.Name(), "session_id", sessionID, "run_id", runID, "user_id", userID)
	runErr := r.agent.Run(rc)
	if runErr != nil {
		r.logger.Error("runner.run.failed", "agent", r.agent.Name(), "session_id", sessionID, "run_id", runID, "error", runErr.Error())
	} else {
		r.logger.Info("runner.run.complete", "agent", r.agent.Name(), "session_id", sessionID, "run_id", runID,
			"events", res.Events, "duration_ms", time.Since(start).Milliseconds())
	}

	// The store may be unreachable after a storage failure; fall back to
	// the working snapshot.
	final, err := r.sessionStore.Get(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		r.logger.Warn("runner.session.reload_failed", "session_id", sessionID, "error", err.Error())
		final = working
	}
	res.State = final.GetStateSnapshot()
	res.FinalText = agent.FinalText(runEvents(final.GetEvents(), runID), r.agent.Name())

	if r.debug {
		logging.LogStateSnapshot(r.logger, "POST-FLIGHT STATE", res.State)
		res.Mismatches = replay.Verify(res.State, replay.FromEvents(final.GetEvents()))
		for _, m := range res.Mismatches {
			r.logger.Error("runner.state.mismatch", "key", m.Key, "live", m.Live, "replayed", m.Replayed)
		}
	}

	if runErr != nil {
		return res, fmt.Errorf("run %s: %w", r.agent.Name(), runErr)
	}
	if len(res.Mismatches) > 0 {
		return res, fmt.Errorf("session %s: %w", sessionID, ErrStateMismatch)
	}
	return res, nil
}

func runEvents(evs []core.Event, runID string) []core.Event {
	out := make([]core.Event, 0, len(evs))
	for _, ev := range evs {
		if ev.InvocationID == runID {
			out = append(out, ev)
		}
	}
	return out
}
