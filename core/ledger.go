package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrStorageUnavailable marks failures of the durable backing store. Callers
// gating an action on a VisitLedger must treat it as a refusal, never as
// "not recorded yet".
var ErrStorageUnavailable = errors.New("storage unavailable")

// RecordOutcome is the result of VisitLedger.Record.
type RecordOutcome int

const (
	// Created means this call inserted the visit.
	Created RecordOutcome = iota + 1
	// AlreadyExists means the visit was recorded earlier; nothing changed.
	AlreadyExists
)

// String returns the outcome name.
func (o RecordOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Visit is one durable ledger entry. ResourceID is stored normalized.
type Visit struct {
	SubjectID  string    `json:"subject_id"`
	ResourceID string    `json:"resource_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// VisitLedger is the append-only, idempotent record of completed
// (subject, resource) actions. Resource identifiers are compared after
// NormalizeResource. Implementations must make Record atomic per pair: two
// concurrent calls for the same pair never both return Created.
type VisitLedger interface {
	HasRecord(ctx context.Context, subjectID, resourceID string) (bool, error)
	Record(ctx context.Context, subjectID, resourceID string) (RecordOutcome, error)
	Get(ctx context.Context, subjectID, resourceID string) (Visit, bool, error)
	List(ctx context.Context, subjectID string) ([]Visit, error)
}

// NormalizeResource trims surrounding whitespace and lowercases id.
func NormalizeResource(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
