package gemini

// Default upstream model ids for the three coarse capability classes used
// by model resolution (§4.1), trimmed from the teacher's much larger
// pkg/providers/google/model_ids.go constant list down to the one current
// model per class that this proxy defaults to absent configuration
// overrides.
const (
	ModelHighestCapability = "gemini-3-pro-preview"
	ModelBalanced          = "gemini-2.5-flash"
	ModelFastest           = "gemini-2.5-flash-lite"
)

// DefaultBaseURL is the default Google Generative Language API host, per
// the teacher's pkg/providers/google/provider.go DefaultBaseURL.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"
