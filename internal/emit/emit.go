// Package emit implements the §4.4 SSE emitter: it consumes upstream chunk
// objects in order, advances a per-response state machine, and produces the
// downstream SSE event strings.
//
// SSE wire framing (the "event: <name>\ndata: <json>\n\n" byte sequence)
// follows the teacher's pkg/providerutils/streaming/sse.go SSEWriter.
// WriteEvent exactly; everything else — the content-block state machine,
// stop-reason mapping, token accounting, tool-call registration — is this
// proxy's own, since the teacher's streaming package has no notion of a
// Messages-style content-block lifecycle to adapt from.
package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/openbridge/messages-gemini-proxy/internal/convstate"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
)

type state int

const (
	stateIdle state = iota
	stateOpenText
	stateOpenToolUse
	stateClosed
)

// charsPerTokenEstimate backs the §4.4 "approximately four characters per
// token" fallback when the upstream omits output token usage.
const charsPerTokenEstimate = 4

// Emitter is the per-response state machine. Not safe for concurrent use;
// exactly one belongs to one in-flight request (§9 "per-request emitter
// state vs shared conversation state").
type Emitter struct {
	store  *convstate.Store
	logger *slog.Logger

	state state

	messageID       string
	model           string
	blockIndex      int
	sawFunctionCall bool
	textAccum       int // characters emitted, for the fallback token estimate

	inputTokens  int
	outputTokens int
	haveInput    bool
	haveOutput   bool
}

// New builds an Emitter for one response, bound to the resolved upstream
// model name (propagated into message_start) and the conversation store
// tool-use registrations are written to.
func New(model string, store *convstate.Store, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Emitter{model: model, store: store, logger: logger}
}

// Feed advances the state machine by one upstream chunk, returning the SSE
// event strings it produces, in order.
func (e *Emitter) Feed(chunk *gemini.ResponseChunk) []string {
	var out []string

	if chunk.UsageMetadata != nil && !e.haveInput {
		e.inputTokens = chunk.UsageMetadata.PromptTokenCount
		e.haveInput = true
	}

	var candidate *gemini.Candidate
	if len(chunk.Candidates) > 0 {
		candidate = &chunk.Candidates[0]
	}

	if candidate != nil && candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			out = append(out, e.feedPart(part)...)
		}
	}

	if candidate != nil && candidate.FinishReason != "" {
		if chunk.UsageMetadata != nil && chunk.UsageMetadata.CandidatesTokenCount > 0 {
			e.outputTokens = chunk.UsageMetadata.CandidatesTokenCount
			e.haveOutput = true
		}
		out = append(out, e.close(candidate.FinishReason)...)
	}

	return out
}

func (e *Emitter) feedPart(part gemini.ResponsePart) []string {
	var out []string

	if part.FunctionCall != nil {
		e.sawFunctionCall = true
		if e.state == stateOpenText {
			out = append(out, e.emitContentBlockStop())
			e.blockIndex++
		}
		if e.state == stateOpenToolUse {
			out = append(out, e.emitContentBlockStop())
			e.blockIndex++
		}
		out = append(out, e.openToolUse(part.FunctionCall, part.Thought)...)
		return out
	}

	if part.Text != "" {
		if e.state == stateIdle {
			out = append(out, e.openText()...)
		}
		if e.state == stateOpenToolUse {
			// A text fragment after a tool-use block starts a new text
			// block at the next index, per the same block-closing
			// discipline §4.4 describes for a second function_call.
			out = append(out, e.emitContentBlockStop())
			e.blockIndex++
			out = append(out, e.openText()...)
		}
		out = append(out, e.emitTextDelta(part.Text))
		e.textAccum += utf8.RuneCountInString(part.Text)
	}

	return out
}

func (e *Emitter) openText() []string {
	var out []string
	if e.state == stateIdle {
		out = append(out, e.emitMessageStart())
	}
	e.state = stateOpenText
	out = append(out, e.emitEvent(messages.EventContentBlockStart, messages.ContentBlockStartPayload{
		Type:  messages.EventContentBlockStart,
		Index: e.blockIndex,
		ContentBlock: messages.ContentBlock{
			Type: "text",
			Text: "",
		},
	}))
	return out
}

func (e *Emitter) openToolUse(fc *gemini.FunctionCall, thoughtToken string) []string {
	var out []string
	if e.state == stateIdle {
		out = append(out, e.emitMessageStart())
	}
	e.state = stateOpenToolUse

	id := fmt.Sprintf("toolu-%s", uuid.NewString())
	e.store.RegisterToolUse(id, fc.Name, thoughtToken)

	out = append(out, e.emitEvent(messages.EventContentBlockStart, messages.ContentBlockStartPayload{
		Type:  messages.EventContentBlockStart,
		Index: e.blockIndex,
		ContentBlock: messages.ContentBlock{
			Type:  "tool_use",
			ID:    id,
			Name:  fc.Name,
			Input: fc.Args,
		},
	}))
	return out
}

func (e *Emitter) emitTextDelta(text string) string {
	return e.emitEvent(messages.EventContentBlockDelta, messages.ContentBlockDeltaPayload{
		Type:  messages.EventContentBlockDelta,
		Index: e.blockIndex,
		Delta: messages.Delta{Type: "text_delta", Text: text},
	})
}

func (e *Emitter) emitContentBlockStop() string {
	return e.emitEvent(messages.EventContentBlockStop, messages.ContentBlockStopPayload{
		Type:  messages.EventContentBlockStop,
		Index: e.blockIndex,
	})
}

func (e *Emitter) emitMessageStart() string {
	e.messageID = fmt.Sprintf("msg-%s", uuid.NewString())
	return e.emitEvent(messages.EventMessageStart, messages.MessageStartPayload{
		Type: messages.EventMessageStart,
		Message: messages.MessageStartee{
			ID:      e.messageID,
			Type:    "message",
			Role:    messages.RoleAssistant,
			Model:   e.model,
			Content: []any{},
			Usage:   messages.Usage{InputTokens: e.inputTokens},
		},
	})
}

// close finalizes the response: it closes any open block, emits
// message_delta and message_stop, and transitions to Closed.
func (e *Emitter) close(finishReason string) []string {
	var out []string
	if e.state == stateOpenText || e.state == stateOpenToolUse {
		out = append(out, e.emitContentBlockStop())
	}
	if e.state == stateIdle {
		// No content blocks were ever opened (e.g. a response with only a
		// finish reason); message_start must still precede message_delta.
		out = append(out, e.emitMessageStart())
	}

	if !e.haveOutput {
		e.outputTokens = e.textAccum / charsPerTokenEstimate
		if e.textAccum > 0 && e.outputTokens == 0 {
			e.outputTokens = 1
		}
	}

	out = append(out, e.emitEvent(messages.EventMessageDelta, messages.MessageDeltaPayload{
		Type:  messages.EventMessageDelta,
		Delta: messages.MessageDeltaDelta{StopReason: e.mapStopReason(finishReason)},
		Usage: messages.Usage{InputTokens: e.inputTokens, OutputTokens: e.outputTokens},
	}))
	out = append(out, e.emitEvent(messages.EventMessageStop, messages.MessageStopPayload{Type: messages.EventMessageStop}))

	e.state = stateClosed
	return out
}

func (e *Emitter) mapStopReason(upstream string) string {
	if e.sawFunctionCall {
		return messages.StopToolUse
	}
	switch upstream {
	case gemini.FinishStop:
		return messages.StopEndTurn
	case gemini.FinishMaxTokens:
		return messages.StopMaxTokens
	case gemini.FinishSafety, gemini.FinishRecitation:
		return messages.StopStopSequence
	default:
		e.logger.Warn("unknown upstream finish reason, defaulting to end_turn", "finish_reason", upstream)
		return messages.StopEndTurn
	}
}

// InputTokens returns the input token count seen so far, for logging and
// telemetry once the response has finished draining.
func (e *Emitter) InputTokens() int { return e.inputTokens }

// OutputTokens returns the output token count (actual or estimated) seen so
// far, for logging and telemetry once the response has finished draining.
func (e *Emitter) OutputTokens() int { return e.outputTokens }

// IsClosed reports whether message_stop has already been emitted.
func (e *Emitter) IsClosed() bool {
	return e.state == stateClosed
}

// FinishIncomplete closes out a response whose upstream body ended (EOF)
// without ever sending a finish reason — a best-effort end_turn close so the
// downstream client still sees a well-formed event sequence, per §4.5's
// "connection ended without a terminal chunk" case. A no-op if the emitter
// already closed normally.
func (e *Emitter) FinishIncomplete() []string {
	if e.state == stateClosed {
		return nil
	}
	e.logger.Warn("upstream stream ended without a finish reason, synthesizing end_turn close")
	return e.close(gemini.FinishStop)
}

// EmitError renders the non-2xx short-circuit path: a single error event
// derived from the upstream status, with no message_* events (§4.4 "Error
// path").
func EmitError(kind string, message string) string {
	return emitEventRaw(messages.EventError, map[string]interface{}{
		"type": "error",
		"error": map[string]string{
			"type":    kind,
			"message": message,
		},
	})
}

func (e *Emitter) emitEvent(name string, payload interface{}) string {
	return emitEventRaw(name, payload)
}

// emitEventRaw renders one SSE event: "event: <name>\ndata: <json>\n\n",
// matching the teacher's SSEWriter.WriteEvent framing.
func emitEventRaw(name string, payload interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Every payload type above is a concrete, fully-populated struct;
		// a marshal failure here would mean a non-serializable field was
		// introduced, which is a programming error, not a runtime one.
		panic(fmt.Sprintf("emit: marshal %s payload: %v", name, err))
	}

	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteByte('\n')
	buf.WriteByte('\n')
	return buf.String()
}
