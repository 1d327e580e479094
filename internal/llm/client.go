package llm

import (
	"context"
	"encoding/json"
)

// Tool is a statically declared tool descriptor: name, JSON schema and the
// handler that executes it. Agents build their tool list at construction
// time; nothing is discovered at runtime.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
	Required    []string
	Handler     func(ctx context.Context, input json.RawMessage) (string, error)
}

// Client is the language-model call boundary. Implementations may retry
// transient failures internally; callers treat a returned error as final.
type Client interface {
	// Complete performs a plain completion and returns a DirectText response.
	Complete(ctx context.Context, system, query string) (*Response, error)

	// CompleteStructured asks the model for JSON conforming to the shape of
	// out and unmarshals the reply into it.
	CompleteStructured(ctx context.Context, system, query string, out any) error

	// RunTools runs a bounded tool-calling loop with the given tools and
	// returns the final response once the model stops requesting tools.
	RunTools(ctx context.Context, system, query string, tools []Tool) (*Response, error)
}
