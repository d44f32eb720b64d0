package gemini

// ResponseChunk is one element of the upstream's top-level JSON array, per
// §3 "Upstream response chunk". Field layout follows the teacher's
// googleResponse in pkg/providers/google/language_model.go.
type ResponseChunk struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate is one upstream candidate (the proxy only ever looks at the
// first, matching how the teacher's convertResponse does).
type Candidate struct {
	Content      *ResponseContent `json:"content,omitempty"`
	FinishReason string           `json:"finishReason,omitempty"`
}

// ResponseContent is a candidate's content.
type ResponseContent struct {
	Role  Role           `json:"role,omitempty"`
	Parts []ResponsePart `json:"parts"`
}

// ResponsePart is a part as it actually arrives from upstream: any of text,
// functionCall, functionResponse may be present.
type ResponsePart struct {
	Text             string        `json:"text,omitempty"`
	FunctionCall     *FunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResp `json:"functionResponse,omitempty"`
	Thought          string        `json:"thoughtSignature,omitempty"`
}

// UsageMetadata carries upstream token accounting.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Upstream finish-reason vocabulary (§4.4's stop-reason mapping table).
const (
	FinishStop       = "STOP"
	FinishMaxTokens  = "MAX_TOKENS"
	FinishSafety     = "SAFETY"
	FinishRecitation = "RECITATION"
)
