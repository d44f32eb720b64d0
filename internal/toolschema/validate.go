// Package toolschema implements the §4.6 schema validation and cache: each
// downstream tool declaration is checked before its first translation, and
// the constructed upstream tool record is cached by a content hash of the
// input set so repeat requests carrying the same tool set skip re-validation
// and re-construction.
//
// Validation rules are adapted from the teacher's tool conversion path
// (pkg/providers/anthropic/tool_converter.go and pkg/providers/anthropic/
// tools/anthropic_tools.go convert a types.Tool's Parameters map the same
// way this package walks InputSchema), generalized into the closed rule set
// §4.6 names: name presence/length, description presence, outer object
// type, nesting depth, tool count, name uniqueness, enum/string consistency,
// and numeric min/max finiteness.
package toolschema

import (
	"math"

	"github.com/openbridge/messages-gemini-proxy/internal/messages"
	"github.com/openbridge/messages-gemini-proxy/internal/proxyerr"
)

const (
	maxNameLength = 64
	maxDepth      = 10
	maxToolCount  = 128
)

// Validate checks tools against the §4.6 rule set, returning an
// invalid_request proxyerr.Error naming the offending tool on the first
// violation found.
func Validate(tools []messages.ToolDef) error {
	if len(tools) > maxToolCount {
		return proxyerr.InvalidRequest("tools", "tool count %d exceeds maximum of %d", len(tools), maxToolCount)
	}

	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return proxyerr.InvalidRequest("tools[].name", "tool name must not be empty")
		}
		if len(t.Name) > maxNameLength {
			return proxyerr.InvalidRequest("tools[].name", "tool %q name exceeds %d characters", t.Name, maxNameLength)
		}
		if _, dup := seen[t.Name]; dup {
			return proxyerr.InvalidRequest("tools[].name", "duplicate tool name %q", t.Name)
		}
		seen[t.Name] = struct{}{}

		if t.Description == "" {
			return proxyerr.InvalidRequest("tools[].description", "tool %q description must not be empty", t.Name)
		}

		if err := validateSchema(t.Name, t.InputSchema); err != nil {
			return err
		}
	}
	return nil
}

func validateSchema(toolName string, schema map[string]interface{}) error {
	if typ, _ := schema["type"].(string); typ != "object" {
		return proxyerr.InvalidRequest("tools[].input_schema.type", "tool %q input_schema.type must be \"object\"", toolName)
	}
	return validateNode(toolName, schema, 1)
}

func validateNode(toolName string, node map[string]interface{}, depth int) error {
	if depth > maxDepth {
		return proxyerr.InvalidRequest("tools[].input_schema", "tool %q input_schema nesting exceeds depth %d", toolName, maxDepth)
	}

	typ, _ := node["type"].(string)

	if enumVal, ok := node["enum"]; ok {
		if typ != "string" {
			return proxyerr.InvalidRequest("tools[].input_schema", "tool %q has \"enum\" on a non-string schema node (type %q)", toolName, typ)
		}
		enumList, ok := enumVal.([]interface{})
		if !ok {
			return proxyerr.InvalidRequest("tools[].input_schema", "tool %q \"enum\" must be an array", toolName)
		}
		for _, v := range enumList {
			if _, isString := v.(string); !isString {
				return proxyerr.InvalidRequest("tools[].input_schema", "tool %q \"enum\" values must all be strings", toolName)
			}
		}
	}

	for _, boundKey := range []string{"minimum", "maximum"} {
		if v, ok := node[boundKey]; ok {
			f, ok := v.(float64)
			if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
				return proxyerr.InvalidRequest("tools[].input_schema", "tool %q %q must be a finite number", toolName, boundKey)
			}
		}
	}

	if props, ok := node["properties"].(map[string]interface{}); ok {
		for _, pv := range props {
			child, ok := pv.(map[string]interface{})
			if !ok {
				continue
			}
			if err := validateNode(toolName, child, depth+1); err != nil {
				return err
			}
		}
	}

	if items, ok := node["items"].(map[string]interface{}); ok {
		if err := validateNode(toolName, items, depth+1); err != nil {
			return err
		}
	}

	return nil
}
