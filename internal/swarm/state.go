package swarm

import (
	"github.com/avlonitis/swarmgate/internal/task"
)

// State is the shared workflow state threaded through the coordinator's
// graph nodes. Nodes receive it by value and return the updated copy.
type State struct {
	SessionID string
	RootID    string
	UserQuery string
	RepoPath  string

	// Tasks is populated by generation and mutated in place by the later
	// stages (assignment, enrichment, execution).
	Tasks []*task.Task

	// Results holds the tasks that completed without error, filled after
	// execution.
	Results []*task.Task

	// Report is a one-line summary of what was completed. TaskReport
	// renders the full markdown plan.
	Report string
	// Response is the final synthesized answer for the user.
	Response string
}

// TaskReport renders the current tasks as a markdown plan.
func (s State) TaskReport() string {
	return task.Report(s.Tasks)
}

// AssignedTasks returns the tasks that have an agent.
func (s State) AssignedTasks() []*task.Task {
	var out []*task.Task
	for _, t := range s.Tasks {
		if t.Agent != nil {
			out = append(out, t)
		}
	}
	return out
}
