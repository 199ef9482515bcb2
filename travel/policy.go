package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/tool"
)

// ErrMissingCity is returned when a policy operation gets a blank city.
var ErrMissingCity = errors.New("target city is required")

// Verdict is the outcome of a policy check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func (v Verdict) toMap() map[string]any {
	return map[string]any{"allowed": v.Allowed, "reason": v.Reason}
}

// RecordResult is the outcome of recording a trip.
type RecordResult struct {
	Recorded bool   `json:"recorded"`
	Reason   string `json:"reason"`
}

func (r RecordResult) toMap() map[string]any {
	return map[string]any{"recorded": r.Recorded, "reason": r.Reason}
}

// PolicyOptions configures a Policy.
type PolicyOptions struct {
	Logger logging.Logger
}

// Policy enforces one trip per city and user against a VisitLedger.
type Policy struct {
	ledger core.VisitLedger
	logger logging.Logger
}

// NewPolicy binds the travel policy to ledger.
func NewPolicy(ledger core.VisitLedger, optFns ...func(o *PolicyOptions)) *Policy {
	opts := PolicyOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Policy{ledger: ledger, logger: opts.Logger}
}

// Ledger returns the backing ledger.
func (p *Policy) Ledger() core.VisitLedger { return p.ledger }

// Check decides whether userID may travel to city. A ledger error is
// returned as is and must be read as a refusal.
func (p *Policy) Check(ctx context.Context, userID, city string) (Verdict, error) {
	if strings.TrimSpace(city) == "" {
		return Verdict{}, ErrMissingCity
	}
	visited, err := p.ledger.HasRecord(ctx, userID, city)
	if err != nil {
		p.logger.Error("policy.check.failed", "user_id", userID, "city", city, "error", err.Error())
		return Verdict{}, fmt.Errorf("check travel policy: %w", err)
	}
	p.logger.Info("policy.check", "user_id", userID, "city", city, "visited", visited)

	if visited {
		return Verdict{
			Allowed: false,
			Reason:  fmt.Sprintf("Policy Violation: You have already visited %s. We only allow one trip per city.", city),
		}, nil
	}
	return Verdict{Allowed: true, Reason: "Policy Check Passed."}, nil
}

// Record stores the completed trip. Recording the same trip twice is a
// no-op reported as Recorded=false.
func (p *Policy) Record(ctx context.Context, userID, city string) (RecordResult, error) {
	if strings.TrimSpace(city) == "" {
		return RecordResult{}, ErrMissingCity
	}
	outcome, err := p.ledger.Record(ctx, userID, city)
	if err != nil {
		p.logger.Error("policy.record.failed", "user_id", userID, "city", city, "error", err.Error())
		return RecordResult{}, fmt.Errorf("record visit: %w", err)
	}
	if outcome == core.AlreadyExists {
		p.logger.Warn("policy.record.duplicate", "user_id", userID, "city", city)
		return RecordResult{Recorded: false, Reason: "Trip already recorded."}, nil
	}
	p.logger.Info("policy.record", "user_id", userID, "city", city)
	return RecordResult{Recorded: true, Reason: "Trip recorded."}, nil
}

type policyArgs struct {
	TargetCity string  `json:"target_city" description:"The city the user is requesting to travel to."`
	UserID     *string `json:"user_id" description:"The ID of the user. Defaults to the user of the current run."`
}

func (a policyArgs) user(tc *core.ToolContext) string {
	if a.UserID != nil && strings.TrimSpace(*a.UserID) != "" {
		return strings.TrimSpace(*a.UserID)
	}
	return tc.UserID()
}

// CheckTool is check_travel_policy. Its verdict lands in state under
// "policy"; a refusal also escalates. When the ledger cannot be read the
// call fails with POLICY_UNAVAILABLE and no verdict is written.
func (p *Policy) CheckTool() tool.Tool {
	const name = "check_travel_policy"
	return tool.NewTypedTool(name, "Checks if the user is allowed to travel to the target city.",
		func(tc *core.ToolContext, a policyArgs) (any, error) {
			v, err := p.Check(tc.Context(), a.user(tc), a.TargetCity)
			if err != nil {
				if errors.Is(err, ErrMissingCity) {
					return nil, tool.WrapError(name, tool.CodeBadArgs, err)
				}
				return nil, tool.WrapError(name, tool.CodePolicyUnavailable, err)
			}
			res := v.toMap()
			tc.SetState(StatePolicy, res)
			if !v.Allowed {
				tc.Escalate()
			}
			return res, nil
		})
}

// RecordTool is record_visit. Its result lands in state under
// "visit_recorded".
func (p *Policy) RecordTool() tool.Tool {
	const name = "record_visit"
	return tool.NewTypedTool(name, "Records a successful trip for the user. Recording the same trip again has no effect.",
		func(tc *core.ToolContext, a policyArgs) (any, error) {
			r, err := p.Record(tc.Context(), a.user(tc), a.TargetCity)
			if err != nil {
				if errors.Is(err, ErrMissingCity) {
					return nil, tool.WrapError(name, tool.CodeBadArgs, err)
				}
				return nil, tool.WrapError(name, tool.CodePolicyUnavailable, err)
			}
			res := r.toMap()
			tc.SetState(StateVisitRecorded, res)
			return res, nil
		})
}
