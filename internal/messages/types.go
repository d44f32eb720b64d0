// Package messages models the downstream wire protocol: an
// Anthropic-Messages-shaped request/response vocabulary, with tool use and
// tool results as tagged content-part variants.
//
// Field layout follows pkg/providers/anthropic/language_model.go in the
// teacher repo; the discriminated-union decode for ContentPart follows the
// peek-the-type-then-dispatch idiom in
// pkg/providers/anthropic/context_management_json.go.
package messages

import "encoding/json"

// Role is a downstream turn's role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Request is the fully-decoded downstream request body. The validate tags
// cover the generation-parameter bounds from §4.1 that a struct-tag
// validator can express on its own; turn ordering and role alternation
// cannot be expressed this way and are checked by hand in
// internal/translate.
type Request struct {
	Model         string    `json:"model" validate:"required"`
	Messages      []Turn    `json:"messages" validate:"required,min=1"`
	System        *System   `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens" validate:"min=1,max=8192"`
	Temperature   *float64  `json:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	TopP          *float64  `json:"top_p,omitempty" validate:"omitempty,min=0,max=1"`
	TopK          *int      `json:"top_k,omitempty" validate:"omitempty,min=1"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
	Tools         []ToolDef `json:"tools,omitempty"`
}

// Turn is one message in the downstream conversation.
type Turn struct {
	Role    Role
	Content []ContentPart
}

// turnWire is the JSON shape of Turn: Content may be a bare string or an
// array of tagged content-part objects, so it is decoded by hand.
type turnWire struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var w turnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Role = w.Role

	if len(w.Content) == 0 {
		return nil
	}

	// Plain-string content: a single implicit text part.
	var s string
	if err := json.Unmarshal(w.Content, &s); err == nil {
		t.Content = []ContentPart{TextPart{Text: s}}
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(w.Content, &raws); err != nil {
		return err
	}
	t.Content = make([]ContentPart, 0, len(raws))
	for _, raw := range raws {
		part, err := decodeContentPart(raw)
		if err != nil {
			return err
		}
		t.Content = append(t.Content, part)
	}
	return nil
}

func (t Turn) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(t.Content))
	for _, p := range t.Content {
		raw, err := marshalContentPart(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, raw)
	}
	return json.Marshal(struct {
		Role    Role              `json:"role"`
		Content []json.RawMessage `json:"content"`
	}{Role: t.Role, Content: parts})
}

// System is the downstream system prompt: either a plain string or a list of
// text blocks, concatenated in order per §4.1.
type System struct {
	Text   string
	Blocks []TextPart
}

func (s *System) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	for _, raw := range raws {
		part, err := decodeContentPart(raw)
		if err != nil {
			return err
		}
		if tp, ok := part.(TextPart); ok {
			s.Blocks = append(s.Blocks, tp)
		}
	}
	return nil
}

// ToolDef is a downstream tool declaration.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}
