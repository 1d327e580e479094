// Package executor drives assigned tasks through their agents, honoring the
// dependency plan, per-task timeouts and result retention.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/manager"
	"github.com/avlonitis/swarmgate/internal/natsbus"
	"github.com/avlonitis/swarmgate/internal/store"
	"github.com/avlonitis/swarmgate/internal/task"
)

// Options wire the executor to its collaborators. Store and Bus are
// optional; persistence and events are best effort and never fail a task.
type Options struct {
	Client      llm.Client
	Store       *store.Store
	Bus         *natsbus.Client
	Concurrency int
	TaskTimeout time.Duration

	MaxCompletedTasks int
	ResultSizeLimit   int64

	Log *slog.Logger
}

type Executor struct {
	client      llm.Client
	store       *store.Store
	bus         *natsbus.Client
	concurrency int
	taskTimeout time.Duration
	mgrOpts     manager.Options
	log         *slog.Logger
}

func New(opts Options) *Executor {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Executor{
		client:      opts.Client,
		store:       opts.Store,
		bus:         opts.Bus,
		concurrency: opts.Concurrency,
		taskTimeout: opts.TaskTimeout,
		mgrOpts: manager.Options{
			MaxCompletedTasks: opts.MaxCompletedTasks,
			ResultSizeLimit:   opts.ResultSizeLimit,
		},
		log: opts.Log,
	}
}

// ExecuteTasks runs a batch of assigned tasks. Individual task failures are
// recorded on the tasks and reported collectively through a TaskError after
// the whole batch finished; configuration problems abort the batch up front.
func (e *Executor) ExecuteTasks(ctx context.Context, tasks []*task.Task, userQuery, sessionID, rootID string) ([]*task.Task, error) {
	mgr := manager.New(e.mgrOpts, e.log)
	for _, t := range tasks {
		if err := mgr.AddTask(t); err != nil {
			return nil, fmt.Errorf("registering tasks: %w", err)
		}
	}
	if err := mgr.ValidateDependencies(); err != nil {
		return nil, err
	}
	if _, err := mgr.PrepareExecutionPlan(); err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, t *task.Task, deps map[string]*llm.Response) error {
		return e.runTask(ctx, mgr, t, deps, userQuery, sessionID, rootID)
	}
	if err := mgr.ExecuteAll(ctx, handler, e.concurrency); err != nil {
		return mgr.Tasks(), err
	}

	all := mgr.Tasks()
	var failed []*task.Task
	for _, t := range all {
		if t.Error != "" {
			failed = append(failed, t)
		}
	}
	if len(failed) > 0 {
		return all, &TaskError{Failed: failed}
	}
	return all, nil
}

func (e *Executor) runTask(ctx context.Context, mgr *manager.Manager, t *task.Task, deps map[string]*llm.Response, userQuery, sessionID, rootID string) error {
	if t.Agent == nil {
		return &AgentNotAssignedError{TaskID: t.ID}
	}

	query := e.buildQuery(mgr, t, deps, userQuery)
	e.publishTaskEvent(natsbus.TopicTaskStarted(t.ID), t, sessionID, rootID)
	e.recordMessage(sessionID, "user", query, t, rootID)

	ctx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()

	resp, err := t.Agent.Run(ctx, e.client, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &TaskTimeoutError{TaskID: t.ID, Timeout: e.taskTimeout}
		} else {
			err = &TaskExecutionError{TaskID: t.ID, Agent: t.Agent.Name, Err: err}
		}
		e.publishTaskEvent(natsbus.TopicTaskFailed(t.ID), t, sessionID, rootID)
		return err
	}

	t.Result = resp
	e.recordMessage(sessionID, "assistant", resp.ResponseText(), t, rootID)
	e.recordAgentSession(sessionID, t, rootID)
	e.publishTaskEvent(natsbus.TopicTaskCompleted(t.ID), t, sessionID, rootID)
	e.log.Info("task completed", "task_id", t.ID, "agent", t.Agent.Name)
	return nil
}

// buildQuery assembles the prompt an agent sees for one task: the original
// user query for context, the task itself, its operations and the results of
// its dependencies.
func (e *Executor) buildQuery(mgr *manager.Manager, t *task.Task, deps map[string]*llm.Response, userQuery string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original user query: %s\n\n", userQuery)
	fmt.Fprintf(&b, "Your task: %s\n", t.Description)
	if t.Context != "" {
		fmt.Fprintf(&b, "\nAdditional context:\n%s\n", t.Context)
	}
	if len(t.Operations) > 0 {
		b.WriteString("\nOperations to perform, in order:\n")
		for i, op := range t.Operations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, op)
		}
	}
	if len(t.Dependencies) > 0 {
		b.WriteString("\nResults from prerequisite tasks:\n")
		for _, depID := range t.Dependencies {
			desc := depID
			if dep, ok := mgr.Task(depID); ok {
				desc = dep.Description
			}
			result := ""
			if r, ok := deps[depID]; ok {
				result = r.ResponseText()
			}
			fmt.Fprintf(&b, "- %s: %s\n", desc, result)
		}
	}
	b.WriteString("\nComplete the task using the operations and prerequisite results above.")
	return b.String()
}

func (e *Executor) recordMessage(sessionID, role, content string, t *task.Task, rootID string) {
	if e.store == nil {
		return
	}
	agentName := ""
	if t.Agent != nil {
		agentName = t.Agent.Name
	}
	msg := &store.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		AgentName: agentName,
		TaskID:    t.ID,
		RootID:    rootID,
	}
	if err := e.store.AddMessage(msg); err != nil {
		e.log.Warn("failed to record message", "task_id", t.ID, "error", err)
	}
}

func (e *Executor) recordAgentSession(sessionID string, t *task.Task, rootID string) {
	if e.store == nil || t.Agent == nil {
		return
	}
	as := &store.AgentSession{
		ID:        sessionID + ":" + t.ID,
		SessionID: sessionID,
		AgentName: t.Agent.Name,
		TaskID:    t.ID,
		RootID:    rootID,
		Status:    "completed",
	}
	if err := e.store.AddAgentSession(as); err != nil {
		e.log.Warn("failed to record agent session", "task_id", t.ID, "error", err)
	}
}

type taskEvent struct {
	TaskID      string          `json:"task_id"`
	SessionID   string          `json:"session_id"`
	RootID      string          `json:"root_id,omitempty"`
	Description string          `json:"description"`
	Agent       string          `json:"agent,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (e *Executor) publishTaskEvent(topic string, t *task.Task, sessionID, rootID string) {
	if e.bus == nil {
		return
	}
	ev := taskEvent{
		TaskID:      t.ID,
		SessionID:   sessionID,
		RootID:      rootID,
		Description: t.Description,
		Error:       t.Error,
	}
	if t.Agent != nil {
		ev.Agent = t.Agent.Name
	}
	if err := e.bus.PublishJSON(topic, ev); err != nil {
		e.log.Warn("failed to publish task event", "topic", topic, "error", err)
	}
}
