// Package swarm wires query decomposition, agent assignment, enrichment and
// execution into one workflow graph and runs it end to end.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avlonitis/swarmgate/internal/agent"
	"github.com/avlonitis/swarmgate/internal/enrich"
	"github.com/avlonitis/swarmgate/internal/executor"
	"github.com/avlonitis/swarmgate/internal/graph"
	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/natsbus"
	"github.com/avlonitis/swarmgate/internal/selector"
	"github.com/avlonitis/swarmgate/internal/store"
	"github.com/avlonitis/swarmgate/internal/task"
)

const (
	nodeGenerateTasks = "generate_tasks"
	nodeAssignAgents  = "assign_agents_to_tasks"
	nodeEnrichTasks   = "enrich_tasks_with_context"
	nodeExecuteTasks  = "execute_assigned_tasks"
	nodeHandleResults = "handle_execution_results"
)

const generateSystemPrompt = `You decompose a user query into executable tasks.
Break the query into the smallest set of independent tasks; give each task an
id, a description, an ordered list of operations, ids of tasks it depends on,
and an integer priority (higher runs earlier within a wave).
If the query needs no delegation, return an empty task list.`

const synthesizeSystemPrompt = `You write the final answer to the user's query
from the results of the executed tasks. Be direct and complete; do not mention
the task machinery.`

// TaskGenerationError marks a decomposition that produced unusable output.
type TaskGenerationError struct {
	Err error
}

func (e *TaskGenerationError) Error() string {
	return fmt.Sprintf("task generation failed: %v", e.Err)
}

func (e *TaskGenerationError) Unwrap() error { return e.Err }

// AssignmentError marks a batch with tasks no agent could take. Any
// unassignable task aborts the run before execution starts.
type AssignmentError struct {
	Unassigned []string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("no agent could be assigned to %d task(s): %s",
		len(e.Unassigned), strings.Join(e.Unassigned, "; "))
}

// Options configure a Coordinator. Store and Bus are optional.
type Options struct {
	Client   llm.Client
	Registry *agent.Registry
	Executor *executor.Executor
	Enricher enrich.Enricher
	Store    *store.Store
	Bus      *natsbus.Client

	RepoPath    string
	NodeTimeout time.Duration
	MaxCycles   int

	Log *slog.Logger
}

// Coordinator runs the swarm workflow for one query at a time.
type Coordinator struct {
	client   llm.Client
	registry *agent.Registry
	executor *executor.Executor
	enricher enrich.Enricher
	selector *selector.Selector
	store    *store.Store
	bus      *natsbus.Client

	repoPath    string
	nodeTimeout time.Duration
	maxCycles   int

	graph *graph.Graph[State]
	log   *slog.Logger
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.NodeTimeout <= 0 {
		opts.NodeTimeout = 10 * time.Minute
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = 20
	}
	c := &Coordinator{
		client:      opts.Client,
		registry:    opts.Registry,
		executor:    opts.Executor,
		enricher:    opts.Enricher,
		selector:    selector.New(opts.Client, opts.Registry, opts.Log),
		store:       opts.Store,
		bus:         opts.Bus,
		repoPath:    opts.RepoPath,
		nodeTimeout: opts.NodeTimeout,
		maxCycles:   opts.MaxCycles,
		log:         opts.Log,
	}
	c.graph = c.buildGraph()
	return c
}

func (c *Coordinator) buildGraph() *graph.Graph[State] {
	g := graph.New[State](c.log).
		AddNode(nodeGenerateTasks, c.generateTasks).
		AddNode(nodeAssignAgents, c.assignAgents).
		AddNode(nodeEnrichTasks, c.enrichTasks).
		AddNode(nodeExecuteTasks, c.executeTasks).
		AddNode(nodeHandleResults, c.handleResults)

	// A query that decomposes to zero tasks skips straight to the final
	// response.
	g.AddEdge(nodeGenerateTasks, nodeHandleResults, func(s State) bool { return len(s.Tasks) == 0 })
	g.AddEdge(nodeGenerateTasks, nodeAssignAgents, nil)
	g.AddEdge(nodeAssignAgents, nodeEnrichTasks, nil)
	g.AddEdge(nodeEnrichTasks, nodeExecuteTasks, nil)
	g.AddEdge(nodeExecuteTasks, nodeHandleResults, nil)
	g.SetEntrypoint(nodeGenerateTasks)
	g.SetExit(nodeHandleResults)
	return g
}

// Run executes the full workflow for one user query and returns the final
// state. The run is persisted and lifecycle events are published when a
// store or bus is configured.
func (c *Coordinator) Run(ctx context.Context, userQuery string) (State, error) {
	state := State{
		SessionID: uuid.NewString(),
		RootID:    uuid.NewString(),
		UserQuery: userQuery,
		RepoPath:  c.repoPath,
	}

	c.saveRun(state, "running", nil)
	c.publish(natsbus.TopicSwarmStarted(state.SessionID), map[string]string{
		"session_id": state.SessionID,
		"query":      userQuery,
	})

	out, err := c.graph.Run(ctx, state, graph.RunOptions{
		NodeTimeout: c.nodeTimeout,
		MaxCycles:   c.maxCycles,
	})
	if err != nil {
		c.saveRun(out, "failed", err)
		c.publish(natsbus.TopicSwarmFailed(out.SessionID), map[string]string{
			"session_id": out.SessionID,
			"error":      err.Error(),
		})
		return out, fmt.Errorf("swarm workflow: %w", err)
	}

	c.saveRun(out, "completed", nil)
	c.publish(natsbus.TopicSwarmCompleted(out.SessionID), map[string]string{
		"session_id": out.SessionID,
		"response":   out.Response,
	})
	return out, nil
}

// generatedTask is the wire shape the model returns for one planned task.
type generatedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Operations   []string `json:"operations"`
	Dependencies []string `json:"dependencies"`
	Priority     int      `json:"priority"`
}

type taskPlan struct {
	Tasks []generatedTask `json:"tasks"`
}

func (c *Coordinator) generateTasks(ctx context.Context, s State) (State, error) {
	query := fmt.Sprintf(
		"Available agents:\n%s\nUser query: %s\nRespond with {\"tasks\": [...]} as specified.",
		c.describeAgents(), s.UserQuery)

	var plan taskPlan
	if err := c.client.CompleteStructured(ctx, generateSystemPrompt, query, &plan); err != nil {
		return s, &TaskGenerationError{Err: err}
	}

	s.Tasks = make([]*task.Task, 0, len(plan.Tasks))
	for _, gt := range plan.Tasks {
		t := &task.Task{
			ID:           gt.ID,
			Description:  gt.Description,
			Operations:   gt.Operations,
			Dependencies: gt.Dependencies,
			Priority:     gt.Priority,
		}
		t.EnsureID()
		s.Tasks = append(s.Tasks, t)
	}
	c.log.Info("tasks generated", "session_id", s.SessionID, "count", len(s.Tasks))
	c.publishNode(s, nodeGenerateTasks)
	return s, nil
}

func (c *Coordinator) assignAgents(ctx context.Context, s State) (State, error) {
	_, unassigned, err := c.selector.SelectAgents(ctx, s.UserQuery, s.Tasks)
	if err != nil {
		return s, err
	}
	// A single unassignable task aborts the run here, before any assigned
	// sibling can execute and leave side effects behind.
	if len(unassigned) > 0 {
		descs := make([]string, 0, len(unassigned))
		for _, t := range unassigned {
			c.log.Warn("task has no matching agent", "session_id", s.SessionID, "task_id", t.ID)
			descs = append(descs, t.Description)
		}
		return s, &AssignmentError{Unassigned: descs}
	}
	c.publishNode(s, nodeAssignAgents)
	return s, nil
}

func (c *Coordinator) enrichTasks(ctx context.Context, s State) (State, error) {
	// Enrichment only applies when a repository path is configured; without
	// one the step is a no-op, not a model call per task.
	if c.enricher == nil || s.RepoPath == "" {
		return s, nil
	}
	// Enrichment is best effort; a failure never blocks execution.
	for _, t := range s.Tasks {
		extra, err := c.enricher.Enrich(ctx, s.UserQuery, t)
		if err != nil {
			c.log.Warn("enrichment skipped", "task_id", t.ID, "error", err)
			continue
		}
		t.Context = extra
	}
	c.publishNode(s, nodeEnrichTasks)
	return s, nil
}

func (c *Coordinator) executeTasks(ctx context.Context, s State) (State, error) {
	out, err := c.executor.ExecuteTasks(ctx, s.Tasks, s.UserQuery, s.SessionID, s.RootID)
	if out != nil {
		s.Tasks = out
	}
	c.publishNode(s, nodeExecuteTasks)
	if err != nil {
		// Any task failure fails the whole run; the summary still names
		// the siblings that finished.
		for _, t := range s.Tasks {
			if t.Completed() {
				s.Results = append(s.Results, t)
			}
		}
		s.Report = resultsSummary(s.Results)
		return s, err
	}
	return s, nil
}

func (c *Coordinator) handleResults(ctx context.Context, s State) (State, error) {
	// No tasks means the query needs a direct answer, not delegation.
	if len(s.Tasks) == 0 {
		resp, err := c.client.Complete(ctx, "", s.UserQuery)
		if err != nil {
			return s, fmt.Errorf("direct response: %w", err)
		}
		s.Response = resp.ResponseText()
		return s, nil
	}

	for _, t := range s.Tasks {
		if t.Completed() {
			s.Results = append(s.Results, t)
		}
	}
	s.Report = resultsSummary(s.Results)
	query := fmt.Sprintf("User query: %s\n\nExecuted plan with results:\n%s", s.UserQuery, s.TaskReport())
	resp, err := c.client.Complete(ctx, synthesizeSystemPrompt, query)
	if err != nil {
		return s, fmt.Errorf("synthesizing response: %w", err)
	}
	s.Response = resp.ResponseText()
	return s, nil
}

// resultsSummary is the one-line report; the full markdown rendering stays
// available through State.TaskReport.
func resultsSummary(results []*task.Task) string {
	descs := make([]string, 0, len(results))
	for _, t := range results {
		descs = append(descs, t.Description)
	}
	return fmt.Sprintf("Completed %d tasks: %s", len(results), strings.Join(descs, ", "))
}

func (c *Coordinator) describeAgents() string {
	var b strings.Builder
	for _, a := range c.registry.List() {
		if a.SupportsMultipleOperations {
			fmt.Fprintf(&b, "- %s (handles multi-step tasks): %s\n", a.Name, a.Description)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
		}
	}
	return b.String()
}

func (c *Coordinator) saveRun(s State, status string, runErr error) {
	if c.store == nil {
		return
	}
	tasks, err := json.Marshal(s.Tasks)
	if err != nil {
		tasks = nil
	}
	run := &store.SwarmRun{
		ID:        s.SessionID,
		SessionID: s.SessionID,
		RootID:    s.RootID,
		Query:     s.UserQuery,
		Status:    status,
		Tasks:     tasks,
		Report:    s.Report,
		Response:  s.Response,
	}
	if runErr != nil {
		run.Results, _ = json.Marshal(map[string]string{"error": runErr.Error()})
	} else if len(s.Results) > 0 {
		run.Results, _ = json.Marshal(s.Results)
	}
	if err := c.store.SaveSwarmRun(run); err != nil {
		c.log.Warn("failed to persist swarm run", "session_id", s.SessionID, "error", err)
	}
}

func (c *Coordinator) publish(topic string, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.PublishJSON(topic, payload); err != nil {
		c.log.Warn("failed to publish swarm event", "topic", topic, "error", err)
	}
}

func (c *Coordinator) publishNode(s State, node string) {
	c.publish(natsbus.TopicSwarmNode(s.SessionID, node), map[string]any{
		"session_id": s.SessionID,
		"node":       node,
		"tasks":      len(s.Tasks),
	})
}
