package toolschema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbridge/messages-gemini-proxy/internal/messages"
	"github.com/openbridge/messages-gemini-proxy/internal/proxyerr"
)

func validTool(name string) messages.ToolDef {
	return messages.ToolDef{
		Name:        name,
		Description: "does a thing",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"todos": map[string]interface{}{"type": "array"},
			},
			"required": []string{"todos"},
		},
	}
}

func TestValidate_AcceptsWellFormedTool(t *testing.T) {
	err := Validate([]messages.ToolDef{validTool("TodoWrite")})
	assert.NoError(t, err)
}

func TestValidate_RejectsEmptyName(t *testing.T) {
	tool := validTool("")
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_RejectsNameTooLong(t *testing.T) {
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	tool := validTool(string(long))
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_RejectsEmptyDescription(t *testing.T) {
	tool := validTool("T")
	tool.Description = ""
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_RejectsNonObjectOuterType(t *testing.T) {
	tool := validTool("T")
	tool.InputSchema = map[string]interface{}{"type": "string"}
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_RejectsDuplicateNames(t *testing.T) {
	err := Validate([]messages.ToolDef{validTool("T"), validTool("T")})
	requireInvalid(t, err)
}

func TestValidate_RejectsTooManyTools(t *testing.T) {
	tools := make([]messages.ToolDef, maxToolCount+1)
	for i := range tools {
		tools[i] = validTool(string(rune('A' + i%26)))
	}
	err := Validate(tools)
	requireInvalid(t, err)
}

func TestValidate_RejectsExcessiveNestingDepth(t *testing.T) {
	tool := validTool("T")
	node := map[string]interface{}{"type": "object"}
	schema := node
	for i := 0; i < maxDepth+2; i++ {
		child := map[string]interface{}{"type": "object"}
		node["properties"] = map[string]interface{}{"child": child}
		node = child
	}
	tool.InputSchema = schema
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_RejectsEnumOnNonStringType(t *testing.T) {
	tool := validTool("T")
	tool.InputSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "integer",
				"enum": []interface{}{"pending", "done"},
			},
		},
	}
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func TestValidate_AcceptsEnumOnStringType(t *testing.T) {
	tool := validTool("T")
	tool.InputSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"pending", "done"},
			},
		},
	}
	err := Validate([]messages.ToolDef{tool})
	assert.NoError(t, err)
}

func TestValidate_RejectsNonFiniteBound(t *testing.T) {
	tool := validTool("T")
	tool.InputSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{
				"type":    "number",
				"maximum": math.Inf(1),
			},
		},
	}
	err := Validate([]messages.ToolDef{tool})
	requireInvalid(t, err)
}

func requireInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	pe, ok := proxyerr.As(err)
	require.True(t, ok)
	assert.Equal(t, proxyerr.KindInvalidRequest, pe.Kind)
}
