// Package adklab wires the travel agent system together: configuration,
// logging, the durable visit ledger, the session store, the model provider
// and the runner. Most applications only need:
//
//  1. cfg, _ := config.Load()
//  2. lab, _ := adklab.New(func(o *adklab.Options) { o.Config = cfg })
//  3. res, _ := lab.Run(ctx, "alice", "I want to go to Tokyo", nil)
//
// Every dependency can be overridden through Options; unset ones are built
// from the configuration (SQLite files under the data directory, the
// configured model provider).
package adklab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/shanjing/adk-lab/config"
	"github.com/shanjing/adk-lab/core"
	ledgersqlite "github.com/shanjing/adk-lab/ledger/sqlite"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/model"
	anthropicmodel "github.com/shanjing/adk-lab/model/anthropic"
	openaimodel "github.com/shanjing/adk-lab/model/openai"
	"github.com/shanjing/adk-lab/replay"
	"github.com/shanjing/adk-lab/runner"
	sessionsqlite "github.com/shanjing/adk-lab/session/sqlite"
	"github.com/shanjing/adk-lab/travel"
)

// Options configures a Lab. Nil dependencies are built from Config.
type Options struct {
	Config       config.Config
	Logger       logging.Logger
	Ledger       core.VisitLedger
	SessionStore core.SessionStore
	Model        model.Model
}

// Lab is the assembled application.
type Lab struct {
	cfg      config.Config
	logger   logging.Logger
	ledger   core.VisitLedger
	sessions core.SessionStore
	llm      model.Model
	policy   *travel.Policy
	closers  []io.Closer
}

// New assembles a Lab. On error every resource opened so far is closed.
func New(optFns ...func(o *Options)) (*Lab, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	lab := &Lab{cfg: opts.Config, logger: opts.Logger}
	if lab.logger == nil {
		lab.logger = logging.NoOpLogger{}
	}

	if err := lab.open(opts); err != nil {
		_ = lab.Close()
		return nil, err
	}
	lab.policy = travel.NewPolicy(lab.ledger, func(o *travel.PolicyOptions) { o.Logger = logging.ForComponent(lab.logger, "policy") })
	return lab, nil
}

func (l *Lab) open(opts Options) error {
	if opts.Ledger == nil || opts.SessionStore == nil {
		if err := os.MkdirAll(l.cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	l.ledger = opts.Ledger
	if l.ledger == nil {
		store, err := ledgersqlite.Open(ledgerPath(l.cfg))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		l.ledger = store
		l.closers = append(l.closers, store)
	}

	l.sessions = opts.SessionStore
	if l.sessions == nil {
		store, err := sessionsqlite.Open(sessionPath(l.cfg))
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		l.sessions = store
		l.closers = append(l.closers, store)
	}

	l.llm = opts.Model
	if l.llm == nil {
		llm, err := NewModel(l.cfg)
		if err != nil {
			return err
		}
		l.llm = llm
	}
	return nil
}

func ledgerPath(cfg config.Config) string {
	if cfg.LedgerPath != "" {
		return cfg.LedgerPath
	}
	return filepath.Join(cfg.DataDir, "adk_agent_memory.db")
}

func sessionPath(cfg config.Config) string {
	if cfg.SessionDBPath != "" {
		return cfg.SessionDBPath
	}
	return filepath.Join(cfg.DataDir, "travel_agent_sessions.db")
}

// NewModel builds the model named by cfg.ModelProvider.
func NewModel(cfg config.Config) (model.Model, error) {
	switch cfg.ModelProvider {
	case config.ProviderMock, "":
		return model.NewMockModel(cfg.Model), nil
	case config.ProviderOpenAI:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.OpenAIAPIKey
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.APIKey = cfg.AnthropicAPIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

// Config returns the configuration the lab was built from.
func (l *Lab) Config() config.Config { return l.cfg }

// Ledger returns the visit ledger.
func (l *Lab) Ledger() core.VisitLedger { return l.ledger }

// Sessions returns the session store.
func (l *Lab) Sessions() core.SessionStore { return l.sessions }

// Policy returns the travel policy bound to the ledger.
func (l *Lab) Policy() *travel.Policy { return l.policy }

// Supervisor returns the model-driven supervisor agent.
func (l *Lab) Supervisor() core.Agent {
	return travel.NewSupervisor(l.llm, l.policy, func(o *travel.SupervisorOptions) {
		o.MaxModelCalls = l.cfg.MaxModelCalls
	})
}

// Guard returns the deterministic supervisor pipeline.
func (l *Lab) Guard() *travel.Guard {
	return travel.NewGuard(l.policy, func(o *travel.GuardOptions) { o.Logger = logging.ForComponent(l.logger, "guard") })
}

func (l *Lab) runner(root core.Agent) *runner.Runner {
	return runner.New(root, func(o *runner.Options) {
		if l.cfg.AppName != "" {
			o.AppName = l.cfg.AppName
		}
		o.SessionStore = l.sessions
		o.Logger = logging.ForComponent(l.logger, "runner")
		o.Debug = l.cfg.Debug
	})
}

// Run sends text to the supervisor in a new session for userID.
func (l *Lab) Run(ctx context.Context, userID, text string, initialState map[string]any) (*runner.Result, error) {
	return l.runner(l.Supervisor()).Run(ctx, userID, text, initialState)
}

// Plan runs the deterministic guard for userID and city in a new session.
func (l *Lab) Plan(ctx context.Context, userID, city string) (*runner.Result, *travel.Itinerary, error) {
	seed := map[string]any{travel.StateUserID: userID, travel.StateTargetCity: city}
	res, err := l.runner(l.Guard()).Run(ctx, userID, "Plan a trip to "+city, seed)
	if res == nil {
		return nil, nil, err
	}
	return res, travel.ItineraryFromState(res.State), err
}

// SessionState is the result of replaying a stored session.
type SessionState struct {
	SessionID  string
	Events     int
	State      map[string]any
	Stats      replay.Stats
	Mismatches []replay.Mismatch
}

// ReplaySession reconstructs a stored session's state from its event log
// and compares it with the state the store reports.
func (l *Lab) ReplaySession(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records := replay.FromEvents(sess.GetEvents())
	state, stats := replay.ReconstructWithStats(records)
	return &SessionState{
		SessionID:  sess.ID,
		Events:     len(records),
		State:      state,
		Stats:      stats,
		Mismatches: replay.Verify(sess.GetStateSnapshot(), records),
	}, nil
}

// ExportSession writes a stored session's events to w as JSON Lines that
// the replay reader accepts.
func (l *Lab) ExportSession(ctx context.Context, sessionID string, w io.Writer) (int, error) {
	sess, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	records := replay.FromEvents(sess.GetEvents())
	if err := replay.WriteJSONL(w, records); err != nil {
		return 0, fmt.Errorf("export session %s: %w", sessionID, err)
	}
	return len(records), nil
}

// Close releases the stores the lab opened itself.
func (l *Lab) Close() error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}
