package messages

import (
	"encoding/json"
	"fmt"
)

// ContentPart is the closed tagged-sum of downstream content variants:
// text, tool_use, and tool_result. New variants are added explicitly — no
// duck-typing, per the teacher-repo idiom in pkg/provider/types/message.go
// (ContentPart as a small interface, one concrete type per variant).
type ContentPart interface {
	contentType() string
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

func (TextPart) contentType() string { return "text" }

// ToolUsePart is an assistant-issued tool invocation, echoed back by the
// client in a later request's history.
type ToolUsePart struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

func (ToolUsePart) contentType() string { return "tool_use" }

// ToolResultPart is a user-turn echo of a tool's output.
type ToolResultPart struct {
	ToolUseID string
	Content   string
	IsError   bool
	// ToolName is an out-of-band fallback some clients attach alongside the
	// result; used only when the id has no entry in the conversation store.
	ToolName string
}

func (ToolResultPart) contentType() string { return "tool_result" }

type contentPartWire struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
}

// decodeContentPart peeks at the "type" discriminator and dispatches,
// mirroring the teacher's ContextManagementResponse.UnmarshalJSON pattern in
// pkg/providers/anthropic/context_management_json.go.
func decodeContentPart(raw json.RawMessage) (ContentPart, error) {
	var w contentPartWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode content part: %w", err)
	}

	switch w.Type {
	case "text":
		return TextPart{Text: w.Text}, nil
	case "tool_use":
		return ToolUsePart{ID: w.ID, Name: w.Name, Input: w.Input}, nil
	case "tool_result":
		content, err := decodeToolResultContent(w.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultPart{
			ToolUseID: w.ToolUseID,
			Content:   content,
			IsError:   w.IsError,
			ToolName:  w.ToolName,
		}, nil
	default:
		return unknownPart{typ: w.Type}, nil
	}
}

// decodeToolResultContent accepts a bare string (the modeled shape, §3 Open
// Questions) or passes a structured JSON value through as its raw text so
// translation can still forward it inside response.result (§9 Open
// Questions: "implementations that see JSON-valued results should pass them
// through as-is").
func decodeToolResultContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return string(raw), nil
}

// unknownPart represents a content variant outside the closed set; the
// translator logs and skips it per §4.1 ("Any other content variant is
// logged and skipped").
type unknownPart struct{ typ string }

func (unknownPart) contentType() string { return "unknown" }

func marshalContentPart(p ContentPart) (json.RawMessage, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(map[string]interface{}{"type": "text", "text": v.Text})
	case ToolUsePart:
		return json.Marshal(map[string]interface{}{
			"type": "tool_use", "id": v.ID, "name": v.Name, "input": v.Input,
		})
	case ToolResultPart:
		m := map[string]interface{}{
			"type": "tool_result", "tool_use_id": v.ToolUseID, "content": v.Content,
		}
		if v.IsError {
			m["is_error"] = true
		}
		if v.ToolName != "" {
			m["tool_name"] = v.ToolName
		}
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("marshal content part: unsupported type %T", p)
	}
}

// IsUnknown reports whether a decoded ContentPart fell outside the closed
// variant set (§4.1: "Any other content variant is logged and skipped").
func IsUnknown(p ContentPart) (typeName string, ok bool) {
	if u, isUnknown := p.(unknownPart); isUnknown {
		return u.typ, true
	}
	return "", false
}
