package llm

import "encoding/json"

// ResponseKind discriminates the variants a model call can produce.
type ResponseKind int

const (
	// DirectText is a plain text (usually markdown) answer.
	DirectText ResponseKind = iota
	// StructuredOutput is a JSON document conforming to a requested schema.
	StructuredOutput
	// ToolError means the call failed inside the tool loop.
	ToolError
)

func (k ResponseKind) String() string {
	switch k {
	case DirectText:
		return "text"
	case StructuredOutput:
		return "structured"
	case ToolError:
		return "tool_error"
	default:
		return "unknown"
	}
}

// ToolCall records a single tool invocation made during a call.
type ToolCall struct {
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Response is the tagged result of a model call. Exactly one variant is
// meaningful, selected by Kind; downstream code switches on Kind instead of
// probing fields.
type Response struct {
	Kind       ResponseKind    `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ErrMsg     string          `json:"error,omitempty"`
}

// ResponseText returns the human-readable payload of the response.
func (r *Response) ResponseText() string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case DirectText:
		return r.Text
	case StructuredOutput:
		return string(r.Structured)
	case ToolError:
		return r.ErrMsg
	}
	return ""
}
