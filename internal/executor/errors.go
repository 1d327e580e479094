package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/avlonitis/swarmgate/internal/task"
)

// AgentNotAssignedError marks a task that reached execution without an
// agent. The failure stays local to the task.
type AgentNotAssignedError struct {
	TaskID string
}

func (e *AgentNotAssignedError) Error() string {
	return fmt.Sprintf("task %s has no agent assigned", e.TaskID)
}

// TaskTimeoutError marks a task that exceeded its execution deadline.
type TaskTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.Timeout)
}

// TaskExecutionError wraps an agent failure while running a task.
type TaskExecutionError struct {
	TaskID string
	Agent  string
	Err    error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s (agent %s): %v", e.TaskID, e.Agent, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// TaskError aggregates every task that failed in a batch. It is returned
// after the whole batch ran, so successful siblings keep their results.
type TaskError struct {
	Failed []*task.Task
}

func (e *TaskError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) failed:", len(e.Failed))
	for _, t := range e.Failed {
		fmt.Fprintf(&b, "\n- %s: %s", t.ID, t.Error)
	}
	return b.String()
}
