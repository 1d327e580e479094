// Package selector assigns registered agents to tasks using the language
// model as a matcher.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avlonitis/swarmgate/internal/agent"
	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/task"
)

const selectSystemPrompt = `You match tasks to the most capable agent.
You are given a list of agents with their descriptions and a list of tasks.
Pick exactly one agent per task based on the agent descriptions.
Only use agent names from the provided list. If no agent fits a task, omit it.`

// Selector assigns agents to tasks. It never invents agents; every
// assignment resolves against the registry by exact name.
type Selector struct {
	client   llm.Client
	registry *agent.Registry
	log      *slog.Logger
}

func New(client llm.Client, registry *agent.Registry, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{client: client, registry: registry, log: log}
}

// batchSelection is the structured output requested from the model.
type batchSelection struct {
	SelectedAgents []struct {
		AgentName string `json:"agent_name"`
		TaskID    string `json:"task_id"`
	} `json:"selected_agents"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type singleSelection struct {
	AgentName       string  `json:"agent_name"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// SelectAgent picks the best matching agent for a single task description.
// It returns nil without error when no registered agent fits.
func (s *Selector) SelectAgent(ctx context.Context, description string) (*agent.Agent, error) {
	if len(s.registry.List()) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("Available agents:\n%s\nTask: %s\nRespond with the chosen agent_name and a confidence_score.",
		describeAgents(s.registry), description)

	var sel singleSelection
	if err := s.client.CompleteStructured(ctx, selectSystemPrompt, query, &sel); err != nil {
		return nil, fmt.Errorf("selecting agent: %w", err)
	}

	a, ok := s.registry.Get(strings.TrimSpace(sel.AgentName))
	if !ok {
		s.log.Warn("model selected unknown agent", "agent", sel.AgentName)
		return nil, nil
	}
	s.log.Debug("agent selected", "agent", a.Name, "confidence", sel.ConfidenceScore)
	return a, nil
}

// SelectAgents assigns agents to a batch of tasks with a single model call.
// The user query gives the router the intent behind the batch. It returns
// the tasks that received an agent and those left unassigned. With no
// registered agents every task comes back unassigned.
func (s *Selector) SelectAgents(ctx context.Context, userQuery string, tasks []*task.Task) (assigned, unassigned []*task.Task, err error) {
	if len(tasks) == 0 {
		return nil, nil, nil
	}
	if len(s.registry.List()) == 0 {
		return nil, tasks, nil
	}

	query, err := s.buildBatchQuery(userQuery, tasks)
	if err != nil {
		return nil, nil, err
	}

	var sel batchSelection
	if err := s.client.CompleteStructured(ctx, selectSystemPrompt, query, &sel); err != nil {
		return nil, nil, fmt.Errorf("selecting agents for %d tasks: %w", len(tasks), err)
	}

	byID := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, pick := range sel.SelectedAgents {
		t, ok := byID[pick.TaskID]
		if !ok {
			s.log.Warn("model assigned unknown task", "task_id", pick.TaskID)
			continue
		}
		a, ok := s.registry.Get(strings.TrimSpace(pick.AgentName))
		if !ok {
			s.log.Warn("model selected unknown agent", "agent", pick.AgentName, "task_id", pick.TaskID)
			continue
		}
		t.Agent = a
	}

	for _, t := range tasks {
		if t.Agent != nil {
			assigned = append(assigned, t)
		} else {
			unassigned = append(unassigned, t)
		}
	}
	s.log.Info("agent assignment complete",
		"assigned", len(assigned), "unassigned", len(unassigned), "confidence", sel.ConfidenceScore)
	return assigned, unassigned, nil
}

func (s *Selector) buildBatchQuery(userQuery string, tasks []*task.Task) (string, error) {
	type taskLine struct {
		TaskID      string   `json:"task_id"`
		Description string   `json:"description"`
		Operations  []string `json:"operations,omitempty"`
	}
	lines := make([]taskLine, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, taskLine{TaskID: t.ID, Description: t.Description, Operations: t.Operations})
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encoding task batch: %w", err)
	}

	var b strings.Builder
	if userQuery != "" {
		b.WriteString("User query: ")
		b.WriteString(userQuery)
		b.WriteString("\n\n")
	}
	b.WriteString("Available agents:\n")
	b.WriteString(describeAgents(s.registry))
	b.WriteString("\nTasks:\n")
	b.Write(payload)
	b.WriteString("\nRespond with selected_agents, a list of {agent_name, task_id} pairs, and a confidence_score.")
	return b.String(), nil
}

func describeAgents(r *agent.Registry) string {
	var b strings.Builder
	for _, a := range r.List() {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
	}
	return b.String()
}
