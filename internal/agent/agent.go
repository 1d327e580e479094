// Package agent defines the contract the orchestration core expects from a
// specialized agent: a name, a capability description used for routing, and
// a prompt plus a statically declared tool list executed through the model
// call boundary.
package agent

import (
	"context"
	"fmt"

	"github.com/avlonitis/swarmgate/internal/llm"
)

// Agent is a specialized worker. Agents are immutable after construction and
// safe for concurrent read-only use by parallel task executions.
type Agent struct {
	Name        string
	Description string
	// SupportsMultipleOperations hints the router that the agent can take
	// multi-step tasks.
	SupportsMultipleOperations bool
	Prompt                     string
	Tools                      []llm.Tool
}

// Run executes the agent's tool-calling capability for the given query.
func (a *Agent) Run(ctx context.Context, client llm.Client, query string) (*llm.Response, error) {
	if len(a.Tools) == 0 {
		return client.Complete(ctx, a.Prompt, query)
	}
	return client.RunTools(ctx, a.Prompt, query, a.Tools)
}

// DuplicateAgentError is returned when registering an agent whose name is
// already taken.
type DuplicateAgentError struct {
	Name string
}

func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("duplicate agent name: %s", e.Name)
}

// Registry holds the candidate agent pool for a batch. It is constructed
// explicitly and injected where needed; there is no process-wide instance.
type Registry struct {
	agents map[string]*Agent
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an agent to the pool. Name collisions are rejected rather
// than resolved first-match-wins, so routing by exact name stays unambiguous.
func (r *Registry) Register(a *Agent) error {
	if a.Name == "" {
		return fmt.Errorf("agent name must not be empty")
	}
	if _, exists := r.agents[a.Name]; exists {
		return &DuplicateAgentError{Name: a.Name}
	}
	r.agents[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

func (r *Registry) Get(name string) (*Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// List returns agents in registration order.
func (r *Registry) List() []*Agent {
	out := make([]*Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Descriptions returns name -> capability description for routing prompts.
func (r *Registry) Descriptions() map[string]string {
	descs := make(map[string]string, len(r.agents))
	for name, a := range r.agents {
		descs[name] = a.Description
	}
	return descs
}
