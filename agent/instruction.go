package agent

import (
	"fmt"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/util"
)

// Provider supplies instruction text at run time.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either static text or a Provider. Either form may contain
// {{.key}} placeholders filled from session state.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is a fixed string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the raw instruction text.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}

// Render resolves the instruction and fills placeholders from rc.State().
func (i Instruction) Render(rc *core.RunContext) (string, error) {
	text, err := i.Resolve(rc)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}
	out, err := util.RenderTemplate(text, rc.State())
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return out, nil
}
