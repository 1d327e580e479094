// Package task holds the unit-of-work model shared by the scheduler,
// selector and executor.
package task

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/avlonitis/swarmgate/internal/agent"
	"github.com/avlonitis/swarmgate/internal/llm"
)

// State is the explicit lifecycle index kept per task by the scheduler.
type State int

const (
	Pending State = iota
	Running
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is a unit of work produced by query decomposition. A task is assigned
// to a single agent but may carry several operations the agent performs in
// sequence.
type Task struct {
	// ID is a stable 16-character hex identifier, unique within a batch.
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Operations  []string `json:"operations,omitempty"`
	// Dependencies lists task IDs that must complete successfully first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Priority orders tasks within a wave; higher runs first.
	Priority int `json:"priority"`

	// Agent is set during assignment. The task references, not owns, it.
	Agent *agent.Agent `json:"-"`

	// Result is set once the assigned agent completed without error.
	Result *llm.Response `json:"result,omitempty"`
	// Error is set exclusively on failure, together with Done.
	Error string `json:"error,omitempty"`
	// Done marks that execution was attempted; it is never rolled back.
	Done bool `json:"done"`
	// State tracks the lifecycle for observers; Done and Error stay the
	// source of truth for scheduling decisions.
	State State `json:"state"`

	// Context is freeform text attached by the enrichment step.
	Context string `json:"context,omitempty"`
}

// NewID generates a 16-character hex task identifier.
func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// EnsureID fills in a generated ID when the task has none.
func (t *Task) EnsureID() {
	if t.ID == "" {
		t.ID = NewID()
	}
}

// Completed reports whether the task finished without error.
func (t *Task) Completed() bool {
	return t.Done && t.Error == ""
}

// ResultText returns the task result's text payload, or empty when unset.
func (t *Task) ResultText() string {
	return t.Result.ResponseText()
}
