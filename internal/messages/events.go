package messages

// Event names in the downstream SSE vocabulary, in the ordering grammar
// enforced by internal/emit: message_start, (content_block_start,
// content_block_delta*, content_block_stop)*, message_delta, message_stop,
// with error able to replace the tail.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// Usage carries running input/output token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// MessageStartPayload is the message_start event body.
type MessageStartPayload struct {
	Type    string         `json:"type"`
	Message MessageStartee `json:"message"`
}

// MessageStartee is the partial message object inside message_start.
type MessageStartee struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    Role   `json:"role"`
	Model   string `json:"model"`
	Content []any  `json:"content"`
	Usage   Usage  `json:"usage"`
}

// ContentBlockStartPayload is the content_block_start event body.
type ContentBlockStartPayload struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlock describes the block opened by content_block_start.
type ContentBlock struct {
	Type  string                 `json:"type"`           // "text" | "tool_use"
	Text  string                 `json:"text,omitempty"` // always "" at start
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// ContentBlockDeltaPayload is the content_block_delta event body.
type ContentBlockDeltaPayload struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

// Delta is a tagged delta; only TextDelta is produced by this proxy
// (function-call arguments arrive whole, not incrementally, per §4.4).
type Delta struct {
	Type string `json:"type"` // "text_delta"
	Text string `json:"text,omitempty"`
}

// ContentBlockStopPayload is the content_block_stop event body.
type ContentBlockStopPayload struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaPayload is the message_delta event body.
type MessageDeltaPayload struct {
	Type  string            `json:"type"`
	Delta MessageDeltaDelta `json:"delta"`
	Usage Usage             `json:"usage"`
}

type MessageDeltaDelta struct {
	StopReason string `json:"stop_reason"`
}

// MessageStopPayload is the message_stop event body.
type MessageStopPayload struct {
	Type string `json:"type"`
}

// Stop-reason vocabulary, per §4.4.
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopStopSequence = "stop_sequence"
	StopToolUse      = "tool_use"
)
