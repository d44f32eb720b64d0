// Package translate implements the §4.1 request translator: downstream
// Messages-shaped request in, upstream GenerateContent-shaped request (plus
// the resolved upstream model name) out.
//
// Turn and content-part walking follows the shape of the teacher's
// pkg/providers/anthropic/language_model.go (convertMessages) and
// pkg/providers/google/language_model.go (convertToGoogleFormat), adapted
// from "translate every provider's native type into one SDK-neutral
// intermediate type" into this proxy's direct downstream-to-upstream walk.
package translate

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/openbridge/messages-gemini-proxy/internal/config"
	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
	"github.com/openbridge/messages-gemini-proxy/internal/proxyerr"
	"github.com/openbridge/messages-gemini-proxy/internal/toolschema"
)

// structValidator checks the generation-parameter bounds expressible as
// struct tags on messages.Request (§4.1's max_tokens/temperature/top_p/
// top_k ranges). A single shared instance: validator.Validate caches
// struct-tag reflection per type and is safe for concurrent use.
var structValidator = validator.New()

// sentinelToolName is substituted when a tool_result's id has no entry in
// the conversation store and the client attached no fallback name (§4.1:
// "use a sentinel string and emit a warning-level log record").
const sentinelToolName = "unknown_tool"

// maxOutputTokensCeiling bounds max_tokens (§4.1: "within a configured
// ceiling"). The spec names this constraint but not a specific environment
// variable for it, unlike the other request limits in §6 — so it is kept as
// a fixed ceiling here rather than invented as an extra config knob. Must
// match the literal "max=8192" struct tag on messages.Request.MaxTokens,
// since struct tags cannot reference a Go constant.
const maxOutputTokensCeiling = 8192

// Translator holds the process-wide collaborators the translator needs on
// every call: the conversation state store and the schema cache. Both are
// process-global per §9 ("very few justifiable process-globals... confine
// it to an explicit module and pass a handle in").
type Translator struct {
	Store  *convstate.Store
	Schema *toolschema.Cache
	Logger *slog.Logger
}

// New builds a Translator. A nil logger discards diagnostic log lines.
func New(store *convstate.Store, schema *toolschema.Cache, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Translator{Store: store, Schema: schema, Logger: logger}
}

// Translate validates req, then converts it into an upstream request body
// and the resolved upstream model name.
func (t *Translator) Translate(req *messages.Request, cfg *config.Config) (*gemini.Request, string, error) {
	if err := validate(req); err != nil {
		return nil, "", err
	}

	model := ResolveModel(req.Model, cfg)

	contents := make([]gemini.Content, 0, len(req.Messages))
	for _, turn := range req.Messages {
		parts := t.translateParts(turn.Content)
		if len(parts) == 0 && turn.Role == messages.RoleAssistant {
			continue
		}
		contents = append(contents, gemini.Content{
			Role:  mapRole(turn.Role),
			Parts: parts,
		})
	}

	tools, err := t.Schema.Convert(req.Tools)
	if err != nil {
		return nil, "", err
	}

	out := &gemini.Request{
		Contents:          contents,
		SystemInstruction: translateSystem(req.System),
		GenerationConfig:  translateGenerationConfig(req),
		Tools:             tools,
	}
	return out, model, nil
}

func mapRole(r messages.Role) gemini.Role {
	if r == messages.RoleAssistant {
		return gemini.RoleModel
	}
	return gemini.RoleUser
}

func (t *Translator) translateParts(content []messages.ContentPart) []gemini.Part {
	parts := make([]gemini.Part, 0, len(content))
	for _, p := range content {
		switch v := p.(type) {
		case messages.TextPart:
			parts = append(parts, gemini.Part{Text: v.Text})

		case messages.ToolUsePart:
			part := gemini.Part{FunctionCall: &gemini.FunctionCall{Name: v.Name, Args: v.Input}}
			if meta, ok := t.Store.GetMetadata(v.ID); ok && meta.ThoughtToken != "" {
				part.Thought = meta.ThoughtToken
			}
			parts = append(parts, part)

		case messages.ToolResultPart:
			name := v.ToolName
			if meta, ok := t.Store.GetMetadata(v.ToolUseID); ok {
				name = meta.Name
			} else if name == "" {
				name = sentinelToolName
				t.Logger.Warn("tool_result has no known tool name", "tool_use_id", v.ToolUseID)
			}
			parts = append(parts, gemini.Part{
				FunctionResponse: &gemini.FunctionResp{
					Name: name,
					Response: map[string]interface{}{
						"result": v.Content,
						"error":  v.IsError,
					},
				},
			})

		default:
			if typ, ok := messages.IsUnknown(p); ok {
				t.Logger.Warn("skipping unsupported content variant", "type", typ)
			}
		}
	}
	return parts
}

func translateSystem(sys *messages.System) *gemini.SystemInstruction {
	if sys == nil {
		return nil
	}
	var parts []gemini.Part
	if sys.Text != "" {
		parts = append(parts, gemini.Part{Text: sys.Text})
	}
	for _, b := range sys.Blocks {
		parts = append(parts, gemini.Part{Text: b.Text})
	}
	if len(parts) == 0 {
		return nil
	}
	return &gemini.SystemInstruction{Parts: parts}
}

func translateGenerationConfig(req *messages.Request) *gemini.GenerationConfig {
	maxTokens := req.MaxTokens
	cfg := &gemini.GenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		TopK:            req.TopK,
		MaxOutputTokens: &maxTokens,
		StopSequences:   req.StopSequences,
	}
	return cfg
}

// validate runs the struct-tag bounds check first, then the semantic checks
// (turn ordering, role alternation) a struct-tag validator has no way to
// express, since they depend on relationships between elements of the
// Messages slice rather than one field in isolation.
func validate(req *messages.Request) error {
	if err := structValidator.Struct(req); err != nil {
		return invalidFromValidationError(err)
	}

	if req.Messages[0].Role != messages.RoleUser {
		return proxyerr.InvalidRequest("messages[0].role", "first message must have role \"user\", got %q", req.Messages[0].Role)
	}
	for i := 1; i < len(req.Messages); i++ {
		if req.Messages[i].Role == messages.RoleAssistant && req.Messages[i-1].Role == messages.RoleAssistant {
			return proxyerr.InvalidRequest("messages", "two consecutive assistant messages at index %d", i)
		}
	}
	return nil
}

// invalidFromValidationError reports the first struct-tag violation as an
// InvalidRequest, naming the offending field the way the hand-written
// checks already do.
func invalidFromValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return proxyerr.InvalidRequest(fe.Field(), "%s failed %q constraint (value: %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return proxyerr.InvalidRequest("body", "request failed validation: %v", err)
}
