// Package gemini models the upstream wire protocol: a GenerateContent-shaped
// request/response vocabulary with function calling.
//
// Field layout follows pkg/providers/google/language_model.go in the teacher
// repo (the googleResponse/googlePart shape, generationConfig field names,
// functionDeclarations wrapping), adapted from a multi-model-per-call-site
// SDK client into a fixed single-shot proxy request/response.
package gemini

// Role is an upstream content's role.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Request is the upstream GenerateContent request body.
type Request struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
}

// Content is one upstream turn.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// SystemInstruction carries the flattened system prompt.
type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// GenerationConfig mirrors downstream generation parameters under the
// upstream's field names.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// Tool wraps a set of function declarations, per the upstream's
// tools: [{function_declarations: [...]}] shape.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// FunctionDeclaration is one upstream function/tool declaration.
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Part is the tagged sum of upstream part variants: text, function_call,
// function_response. Unlike the downstream ContentPart these are decoded
// from a fixed, known-shape struct (every field optional) because upstream
// responses are produced by this proxy's own translator on the request path
// and parsed from a small, closed chunk shape on the response path — see
// ResponsePart in response.go for the decode used on live upstream bytes.
type Part struct {
	Text             string        `json:"text,omitempty"`
	FunctionCall     *FunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResp `json:"functionResponse,omitempty"`
	// Thought carries the opaque per-turn token the upstream may attach
	// alongside a function call. It lives at the part level, as a sibling of
	// functionCall, never nested inside it — see §9 "Opaque thought token".
	Thought string `json:"thoughtSignature,omitempty"`
}

// FunctionCall is an upstream function-invocation part.
type FunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// FunctionResp is an upstream function-result part.
type FunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}
