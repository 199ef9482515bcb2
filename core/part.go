package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Conversation roles used in Content.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data map[string]any
}

func (DataPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Correlates the later FunctionResponse
	Name      string `json:"name"`                // Tool name
	Arguments string `json:"arguments,omitempty"` // JSON encoded arguments
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts.
func (c Content) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// wirePart is the tagged JSON shape of a Part; exactly one field is set.
type wirePart struct {
	Text             *string           `json:"text,omitempty"`
	Data             *map[string]any   `json:"data,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// MarshalJSON encodes parts as tagged objects so persisted events round-trip.
func (c Content) MarshalJSON() ([]byte, error) {
	wc := wireContent{Role: c.Role, Parts: make([]wirePart, 0, len(c.Parts))}
	for _, p := range c.Parts {
		switch pt := p.(type) {
		case TextPart:
			text := pt.Text
			wc.Parts = append(wc.Parts, wirePart{Text: &text})
		case DataPart:
			data := pt.Data
			if data == nil {
				data = map[string]any{}
			}
			wc.Parts = append(wc.Parts, wirePart{Data: &data})
		case FunctionCallPart:
			fc := pt.FunctionCall
			wc.Parts = append(wc.Parts, wirePart{FunctionCall: &fc})
		case FunctionResponsePart:
			fr := pt.FunctionResponse
			wc.Parts = append(wc.Parts, wirePart{FunctionResponse: &fr})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}
	return json.Marshal(wc)
}

// UnmarshalJSON decodes the tagged part encoding produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wc wireContent
	if err := json.Unmarshal(data, &wc); err != nil {
		return err
	}
	c.Role = wc.Role
	c.Parts = make([]Part, 0, len(wc.Parts))
	for i, wp := range wc.Parts {
		switch {
		case wp.Text != nil:
			c.Parts = append(c.Parts, TextPart{Text: *wp.Text})
		case wp.FunctionCall != nil:
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: *wp.FunctionCall})
		case wp.FunctionResponse != nil:
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: *wp.FunctionResponse})
		case wp.Data != nil:
			c.Parts = append(c.Parts, DataPart{Data: *wp.Data})
		default:
			return fmt.Errorf("content part %d: no known field set", i)
		}
	}
	return nil
}
