package translate

import (
	"strings"

	"github.com/openbridge/messages-gemini-proxy/internal/config"
	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
)

// ResolveModel maps a downstream model string to an upstream model string,
// per §4.1 "Model resolution". A pure function: same inputs, same output,
// every time — callers rely on this for the idempotence property in §8.
//
// The downstream naming convention groups models into three coarse
// capability classes (Anthropic's own opus/sonnet/haiku tiering is the
// convention this substring match is built against); gemini/model_ids.go
// supplies the default upstream model for each class.
func ResolveModel(downstreamModel string, cfg *config.Config) string {
	if cfg.ModelOverride != "" {
		return cfg.ModelOverride
	}

	lower := strings.ToLower(downstreamModel)
	switch {
	case strings.Contains(lower, "opus"):
		return orDefault(cfg.HighestCapabilityModel, gemini.ModelHighestCapability)
	case strings.Contains(lower, "sonnet"):
		return orDefault(cfg.BalancedModel, gemini.ModelBalanced)
	case strings.Contains(lower, "haiku"):
		return orDefault(cfg.FastestModel, gemini.ModelFastest)
	default:
		return orDefault(cfg.BalancedModel, gemini.ModelBalanced)
	}
}

func orDefault(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
