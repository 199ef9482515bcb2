package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shanjing/adk-lab/core"
)

type visitKey struct {
	subject  string
	resource string
}

// InMemory is a process-local VisitLedger guarded by a RWMutex. Entries
// vanish with the process.
type InMemory struct {
	mu     sync.RWMutex
	visits map[visitKey]core.Visit
	now    func() time.Time
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		visits: make(map[visitKey]core.Visit),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HasRecord reports whether subjectID has a recorded visit to resourceID.
func (m *InMemory) HasRecord(ctx context.Context, subjectID, resourceID string) (bool, error) {
	_, ok, err := m.Get(ctx, subjectID, resourceID)
	return ok, err
}

// Record inserts the visit unless it is already present.
func (m *InMemory) Record(ctx context.Context, subjectID, resourceID string) (core.RecordOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := visitKey{subject: subjectID, resource: core.NormalizeResource(resourceID)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.visits[key]; ok {
		return core.AlreadyExists, nil
	}
	m.visits[key] = core.Visit{SubjectID: key.subject, ResourceID: key.resource, RecordedAt: m.now()}
	return core.Created, nil
}

// Get returns the recorded visit, if any.
func (m *InMemory) Get(ctx context.Context, subjectID, resourceID string) (core.Visit, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.Visit{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visits[visitKey{subject: subjectID, resource: core.NormalizeResource(resourceID)}]
	return v, ok, nil
}

// List returns every visit of subjectID ordered by record time, then resource.
func (m *InMemory) List(ctx context.Context, subjectID string) ([]core.Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]core.Visit, 0)
	for k, v := range m.visits {
		if k.subject == subjectID {
			out = append(out, v)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out, nil
}

var _ core.VisitLedger = (*InMemory)(nil)
