package emit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
)

func eventNames(t *testing.T, events []string) []string {
	t.Helper()
	var names []string
	for _, e := range events {
		lines := strings.SplitN(e, "\n", 2)
		require.True(t, strings.HasPrefix(lines[0], "event: "))
		names = append(names, strings.TrimPrefix(lines[0], "event: "))
	}
	return names
}

func dataOf(t *testing.T, event string) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimRight(event, "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "data: "))
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &v))
	return v
}

func TestEmitter_PlainTextScenario(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("gemini-2.5-flash", store, nil)

	events := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content:      &gemini.ResponseContent{Parts: []gemini.ResponsePart{{Text: "Hi"}}},
			FinishReason: gemini.FinishStop,
		}},
		UsageMetadata: &gemini.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 1},
	})

	names := eventNames(t, events)
	assert.Equal(t, []string{
		messages.EventMessageStart,
		messages.EventContentBlockStart,
		messages.EventContentBlockDelta,
		messages.EventContentBlockStop,
		messages.EventMessageDelta,
		messages.EventMessageStop,
	}, names)

	start := dataOf(t, events[0])
	msg := start["message"].(map[string]interface{})
	usage := msg["usage"].(map[string]interface{})
	assert.Equal(t, float64(3), usage["input_tokens"])

	delta := dataOf(t, events[4])
	deltaBody := delta["delta"].(map[string]interface{})
	assert.Equal(t, messages.StopEndTurn, deltaBody["stop_reason"])
	deltaUsage := delta["usage"].(map[string]interface{})
	assert.Equal(t, float64(1), deltaUsage["output_tokens"])
}

func TestEmitter_FunctionCallScenario(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("gemini-2.5-flash", store, nil)

	events := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content: &gemini.ResponseContent{Parts: []gemini.ResponsePart{{
				FunctionCall: &gemini.FunctionCall{Name: "TodoWrite", Args: map[string]interface{}{"todos": []interface{}{}}},
			}}},
			FinishReason: gemini.FinishStop,
		}},
	})

	names := eventNames(t, events)
	assert.Equal(t, []string{
		messages.EventMessageStart,
		messages.EventContentBlockStart,
		messages.EventContentBlockStop,
		messages.EventMessageDelta,
		messages.EventMessageStop,
	}, names)

	blockStart := dataOf(t, events[1])
	block := blockStart["content_block"].(map[string]interface{})
	assert.Equal(t, "tool_use", block["type"])
	assert.Equal(t, "TodoWrite", block["name"])
	toolID, _ := block["id"].(string)
	require.True(t, strings.HasPrefix(toolID, "toolu-"))

	deltaBody := dataOf(t, events[3])["delta"].(map[string]interface{})
	assert.Equal(t, messages.StopToolUse, deltaBody["stop_reason"])

	meta, ok := store.GetMetadata(toolID)
	require.True(t, ok)
	assert.Equal(t, "TodoWrite", meta.Name)
}

func TestEmitter_ThoughtTokenPreserved(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("m", store, nil)

	events := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content: &gemini.ResponseContent{Parts: []gemini.ResponsePart{{
				FunctionCall: &gemini.FunctionCall{Name: "Read"},
				Thought:      "thought-xyz",
			}}},
			FinishReason: gemini.FinishStop,
		}},
	})
	blockStart := dataOf(t, events[1])
	toolID := blockStart["content_block"].(map[string]interface{})["id"].(string)

	meta, ok := store.GetMetadata(toolID)
	require.True(t, ok)
	assert.Equal(t, "thought-xyz", meta.ThoughtToken)
}

func TestEmitter_EmptyTextFragmentsSkipped(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("m", store, nil)

	events := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content: &gemini.ResponseContent{Parts: []gemini.ResponsePart{{Text: ""}, {Text: "hi"}}},
		}},
	})
	names := eventNames(t, events)
	// Only one content_block_delta for the non-empty fragment, after
	// message_start + content_block_start.
	assert.Equal(t, []string{
		messages.EventMessageStart,
		messages.EventContentBlockStart,
		messages.EventContentBlockDelta,
	}, names)
}

func TestEmitter_UnknownFinishReasonDefaultsToEndTurn(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("m", store, nil)
	events := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content:      &gemini.ResponseContent{Parts: []gemini.ResponsePart{{Text: "x"}}},
			FinishReason: "SOMETHING_WEIRD",
		}},
	})
	names := eventNames(t, events)
	lastDelta := dataOf(t, events[len(events)-2])["delta"].(map[string]interface{})
	_ = names
	assert.Equal(t, messages.StopEndTurn, lastDelta["stop_reason"])
}

func TestEmitter_MultipleChunksAcrossFeedCalls(t *testing.T) {
	store := convstate.New(time.Hour)
	e := New("m", store, nil)

	first := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{Content: &gemini.ResponseContent{Parts: []gemini.ResponsePart{{Text: "Hel"}}}}},
	})
	second := e.Feed(&gemini.ResponseChunk{
		Candidates: []gemini.Candidate{{
			Content:      &gemini.ResponseContent{Parts: []gemini.ResponsePart{{Text: "lo"}}},
			FinishReason: gemini.FinishStop,
		}},
	})

	assert.Equal(t, []string{messages.EventMessageStart, messages.EventContentBlockStart, messages.EventContentBlockDelta}, eventNames(t, first))
	assert.Equal(t, []string{messages.EventContentBlockDelta, messages.EventContentBlockStop, messages.EventMessageDelta, messages.EventMessageStop}, eventNames(t, second))
}

func TestEmitError_Shape(t *testing.T) {
	event := EmitError("rate_limit", "too many requests")
	data := dataOf(t, event)
	assert.Equal(t, "error", data["type"])
	errBody := data["error"].(map[string]interface{})
	assert.Equal(t, "rate_limit", errBody["type"])
	assert.Equal(t, "too many requests", errBody["message"])
}
