package agent

import (
	"context"
	"testing"

	"github.com/shanjing/adk-lab/core"
	"github.com/stretchr/testify/mock"
)

// MockAgent is a testify mock implementing core.Agent.
type MockAgent struct {
	mock.Mock
	name string
	emit func(rc *core.RunContext) error
}

func NewMockAgent(name string) *MockAgent { return &MockAgent{name: name} }

func (m *MockAgent) Name() string        { return m.name }
func (m *MockAgent) Description() string { return "mock " + m.name }

func (m *MockAgent) Run(rc *core.RunContext) error {
	args := m.Called(rc)
	if m.emit != nil {
		if err := m.emit(rc); err != nil {
			return err
		}
	}
	return args.Error(0)
}

// newTestRunContext builds a RunContext over a fresh session whose emitted
// events are also collected into the returned slice pointer.
func newTestRunContext(t *testing.T, text string) (*core.RunContext, *[]core.Event) {
	t.Helper()
	var emitted []core.Event
	sess := core.NewSession("sess-1")
	rc := core.NewRunContext(
		context.Background(),
		core.Content{Role: core.RoleUser, Parts: []core.Part{core.TextPart{Text: text}}},
		func(o *core.RunContextOptions) {
			o.SessionID = sess.ID
			o.RunID = "run-1"
			o.UserID = "alice"
			o.Session = sess
			o.Emit = func(ev core.Event) error {
				emitted = append(emitted, ev)
				return nil
			}
		},
	)
	return rc, &emitted
}
