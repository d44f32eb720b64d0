package translate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbridge/messages-gemini-proxy/internal/config"
	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
	"github.com/openbridge/messages-gemini-proxy/internal/proxyerr"
	"github.com/openbridge/messages-gemini-proxy/internal/toolschema"
)

func newTranslator() *Translator {
	return New(convstate.New(time.Hour), toolschema.New(0), nil)
}

func float64p(f float64) *float64 { return &f }
func intp(i int) *int             { return &i }

func TestTranslate_PlainTextRoundTrip(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "opus-tier-model",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "Say hi"}}},
		},
	}

	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)

	require.Len(t, out.Contents, 1)
	assert.Equal(t, gemini.RoleUser, out.Contents[0].Role)
	require.Len(t, out.Contents[0].Parts, 1)
	assert.Equal(t, "Say hi", out.Contents[0].Parts[0].Text)
	require.NotNil(t, out.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 10, *out.GenerationConfig.MaxOutputTokens)
}

func TestTranslate_SystemPromptPlainString(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		System:    &messages.System{Text: "be terse"},
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	require.NotNil(t, out.SystemInstruction)
	require.Len(t, out.SystemInstruction.Parts, 1)
	assert.Equal(t, "be terse", out.SystemInstruction.Parts[0].Text)
}

func TestTranslate_AssistantRoleSwapsToModel(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
			{Role: messages.RoleAssistant, Content: []messages.ContentPart{messages.TextPart{Text: "hello"}}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	require.Len(t, out.Contents, 2)
	assert.Equal(t, gemini.RoleUser, out.Contents[0].Role)
	assert.Equal(t, gemini.RoleModel, out.Contents[1].Role)
}

func TestTranslate_ToolDeclarationPassThrough(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
		},
		Tools: []messages.ToolDef{{
			Name:        "TodoWrite",
			Description: "manages todos",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"todos": map[string]interface{}{"type": "array"},
				},
				"required": []string{"todos"},
			},
		}},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	require.Len(t, out.Tools[0].FunctionDeclarations, 1)
	decl := out.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "TodoWrite", decl.Name)
	assert.Equal(t, "object", decl.Parameters["type"])
}

func TestTranslate_ToolUseEchoLooksUpThoughtToken(t *testing.T) {
	store := convstate.New(time.Hour)
	store.RegisterToolUse("toolu-1", "TodoWrite", "thought-xyz")
	tr := New(store, toolschema.New(0), nil)

	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
			{Role: messages.RoleAssistant, Content: []messages.ContentPart{
				messages.ToolUsePart{ID: "toolu-1", Name: "TodoWrite", Input: map[string]interface{}{"todos": []interface{}{}}},
			}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	require.Len(t, out.Contents, 2)
	part := out.Contents[1].Parts[0]
	require.NotNil(t, part.FunctionCall)
	assert.Equal(t, "TodoWrite", part.FunctionCall.Name)
	assert.Equal(t, "thought-xyz", part.Thought)
}

func TestTranslate_ToolResultRoundTrip(t *testing.T) {
	store := convstate.New(time.Hour)
	store.RegisterToolUse("toolu-ABC", "TodoWrite", "")
	tr := New(store, toolschema.New(0), nil)

	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{
				messages.ToolResultPart{ToolUseID: "toolu-ABC", Content: "OK", IsError: false},
			}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	require.Len(t, out.Contents, 1)
	part := out.Contents[0].Parts[0]
	require.NotNil(t, part.FunctionResponse)
	assert.Equal(t, "TodoWrite", part.FunctionResponse.Name)
	assert.Equal(t, "OK", part.FunctionResponse.Response["result"])
	assert.Equal(t, false, part.FunctionResponse.Response["error"])
}

func TestTranslate_ToolResultMissingIDFallsBackToSentinel(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{
				messages.ToolResultPart{ToolUseID: "toolu-missing", Content: "OK"},
			}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, sentinelToolName, out.Contents[0].Parts[0].FunctionResponse.Name)
}

func TestTranslate_AssistantTurnWithZeroPartsIsDropped(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model:     "m",
		MaxTokens: 10,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
			{Role: messages.RoleAssistant, Content: nil},
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "again"}}},
		},
	}
	out, _, err := tr.Translate(req, &config.Config{})
	require.NoError(t, err)
	assert.Len(t, out.Contents, 2)
}

func TestTranslate_RejectsEmptyMessages(t *testing.T) {
	tr := newTranslator()
	_, _, err := tr.Translate(&messages.Request{Model: "m", MaxTokens: 1}, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsFirstMessageNotUser(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 1,
		Messages: []messages.Turn{{Role: messages.RoleAssistant, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsConsecutiveAssistantTurns(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 1,
		Messages: []messages.Turn{
			{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}},
			{Role: messages.RoleAssistant, Content: []messages.ContentPart{messages.TextPart{Text: "a"}}},
			{Role: messages.RoleAssistant, Content: []messages.ContentPart{messages.TextPart{Text: "b"}}},
		},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsZeroMaxTokens(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 0,
		Messages: []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsTemperatureOutOfRange(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 1, Temperature: float64p(2.01),
		Messages: []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsTopPOutOfRange(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 1, TopP: float64p(1.5),
		Messages: []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsTopKBelowOne(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: 1, TopK: intp(0),
		Messages: []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsMissingModel(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		MaxTokens: 1,
		Messages:  []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func TestTranslate_RejectsMaxTokensAboveCeiling(t *testing.T) {
	tr := newTranslator()
	req := &messages.Request{
		Model: "m", MaxTokens: maxOutputTokensCeiling + 1,
		Messages: []messages.Turn{{Role: messages.RoleUser, Content: []messages.ContentPart{messages.TextPart{Text: "hi"}}}},
	}
	_, _, err := tr.Translate(req, &config.Config{})
	requireInvalid(t, err)
}

func requireInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	pe, ok := proxyerr.As(err)
	require.True(t, ok)
	assert.Equal(t, proxyerr.KindInvalidRequest, pe.Kind)
}
