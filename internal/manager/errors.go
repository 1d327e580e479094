package manager

import "fmt"

// DuplicateTaskError is returned when a task identifier is registered twice
// in the same batch.
type DuplicateTaskError struct {
	ID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task id: %s", e.ID)
}

// MissingDependencyError is returned when a task references a dependency
// identifier absent from the batch.
type MissingDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %s references missing dependency: %s", e.TaskID, e.DependencyID)
}

// CircularDependencyError is returned when the dependency graph contains a
// cycle. This is a fatal configuration error, never retried.
type CircularDependencyError struct {
	Unscheduled []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected, %d tasks unschedulable", len(e.Unscheduled))
}

// DependencyNotReadyError is returned when dependency results are requested
// before a dependency has finished.
type DependencyNotReadyError struct {
	TaskID       string
	DependencyID string
}

func (e *DependencyNotReadyError) Error() string {
	return fmt.Sprintf("dependency %s of task %s not yet complete", e.DependencyID, e.TaskID)
}

// DependencyFailedError is returned when a dependency finished with an error,
// which makes the dependent task unrunnable.
type DependencyFailedError struct {
	TaskID       string
	DependencyID string
	Cause        string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("dependency %s of task %s failed: %s", e.DependencyID, e.TaskID, e.Cause)
}
