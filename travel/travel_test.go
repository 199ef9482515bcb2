package travel

import (
	"context"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a testify mock of core.VisitLedger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) HasRecord(ctx context.Context, subjectID, resourceID string) (bool, error) {
	args := m.Called(ctx, subjectID, resourceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Record(ctx context.Context, subjectID, resourceID string) (core.RecordOutcome, error) {
	args := m.Called(ctx, subjectID, resourceID)
	return args.Get(0).(core.RecordOutcome), args.Error(1)
}

func (m *MockLedger) Get(ctx context.Context, subjectID, resourceID string) (core.Visit, bool, error) {
	args := m.Called(ctx, subjectID, resourceID)
	return args.Get(0).(core.Visit), args.Bool(1), args.Error(2)
}

func (m *MockLedger) List(ctx context.Context, subjectID string) ([]core.Visit, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).([]core.Visit), args.Error(1)
}

// newRunContext returns a RunContext for userID over a fresh session,
// collecting emitted events.
func newRunContext(t *testing.T, userID, text string) (*core.RunContext, *[]core.Event) {
	t.Helper()
	var emitted []core.Event
	sess := core.NewSession("sess-" + userID)
	rc := core.NewRunContext(context.Background(),
		core.Content{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: text}}},
		func(o *core.RunContextOptions) {
			o.SessionID = sess.ID
			o.UserID = userID
			o.Session = sess
			o.Emit = func(ev core.Event) error {
				emitted = append(emitted, ev)
				return nil
			}
		},
	)
	return rc, &emitted
}
