// Package manager schedules batches of interdependent tasks into
// priority-ordered execution waves and runs them with bounded concurrency.
package manager

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/task"
)

const (
	// DefaultConcurrency bounds how many tasks of a wave run at once.
	DefaultConcurrency = 10

	// DefaultMaxCompletedTasks bounds how many completed task results are
	// retained before the oldest are cleared.
	DefaultMaxCompletedTasks = 1000

	// DefaultResultSizeLimit bounds the total bytes of retained results.
	DefaultResultSizeLimit = 50 * 1024 * 1024

	// EvictedResult replaces a cleared result so dependents can still
	// observe that the task completed.
	EvictedResult = "<result cleared to bound memory>"
)

// Options tune the retention and concurrency behavior of a Manager.
// Zero values select the defaults.
type Options struct {
	MaxCompletedTasks int
	ResultSizeLimit   int64
}

// Handler executes a single task. The deps map carries the results of the
// task's direct dependencies keyed by dependency id.
type Handler func(ctx context.Context, t *task.Task, deps map[string]*llm.Response) error

// Manager owns one batch of tasks, its execution plan and the retention
// bookkeeping for completed results. All methods are safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
	order []string
	plan  [][]*task.Task

	completed    []string
	resultBytes  int64
	maxCompleted int
	sizeLimit    int64

	log *slog.Logger
}

// New returns an empty Manager.
func New(opts Options, log *slog.Logger) *Manager {
	if opts.MaxCompletedTasks <= 0 {
		opts.MaxCompletedTasks = DefaultMaxCompletedTasks
	}
	if opts.ResultSizeLimit <= 0 {
		opts.ResultSizeLimit = DefaultResultSizeLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		tasks:        make(map[string]*task.Task),
		maxCompleted: opts.MaxCompletedTasks,
		sizeLimit:    opts.ResultSizeLimit,
		log:          log,
	}
}

// AddTask registers a task with the batch. The task id must be unique.
// Adding a task invalidates any previously prepared plan.
func (m *Manager) AddTask(t *task.Task) error {
	t.EnsureID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; ok {
		return &DuplicateTaskError{ID: t.ID}
	}
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	m.plan = nil
	return nil
}

// Task returns the task with the given id.
func (m *Manager) Task(id string) (*task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Tasks returns all tasks in registration order.
func (m *Manager) Tasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*task.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	return out
}

// AllDone reports whether every registered task has finished, successfully
// or not.
func (m *Manager) AllDone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if !t.Done {
			return false
		}
	}
	return true
}

// ValidateDependencies checks that every referenced dependency id exists in
// the batch.
func (m *Manager) ValidateDependencies() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked()
}

func (m *Manager) validateLocked() error {
	for _, id := range m.order {
		for _, dep := range m.tasks[id].Dependencies {
			if _, ok := m.tasks[dep]; !ok {
				return &MissingDependencyError{TaskID: id, DependencyID: dep}
			}
		}
	}
	return nil
}

// PrepareExecutionPlan computes the execution waves for the current batch.
// Tasks with no unmet dependencies form the first wave, ordered by
// descending priority with the task id as tie break. A cycle in the
// dependency graph is a fatal error.
func (m *Manager) PrepareExecutionPlan() ([][]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validateLocked(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(m.tasks))
	dependents := make(map[string][]string, len(m.tasks))
	for _, id := range m.order {
		indegree[id] = len(m.tasks[id].Dependencies)
		for _, dep := range m.tasks[id].Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := &taskHeap{}
	heap.Init(ready)
	for _, id := range m.order {
		if indegree[id] == 0 {
			heap.Push(ready, m.tasks[id])
		}
	}

	var plan [][]*task.Task
	scheduled := 0
	for ready.Len() > 0 {
		wave := make([]*task.Task, 0, ready.Len())
		for ready.Len() > 0 {
			wave = append(wave, heap.Pop(ready).(*task.Task))
		}
		next := &taskHeap{}
		heap.Init(next)
		for _, t := range wave {
			scheduled++
			for _, dep := range dependents[t.ID] {
				indegree[dep]--
				if indegree[dep] == 0 {
					heap.Push(next, m.tasks[dep])
				}
			}
		}
		plan = append(plan, wave)
		ready = next
	}

	if scheduled != len(m.tasks) {
		var stuck []string
		for _, id := range m.order {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CircularDependencyError{Unscheduled: stuck}
	}

	m.plan = plan
	return plan, nil
}

// ExecuteAll runs every wave of the plan in order, executing the tasks of a
// wave concurrently up to the given limit. Task failures are recorded on the
// task and do not stop the batch. ExecuteAll returns an error only for fatal
// configuration problems or context cancellation.
func (m *Manager) ExecuteAll(ctx context.Context, handler Handler, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	m.mu.Lock()
	plan := m.plan
	m.mu.Unlock()
	if plan == nil {
		var err error
		plan, err = m.PrepareExecutionPlan()
		if err != nil {
			return err
		}
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	for i, wave := range plan {
		m.log.Debug("executing wave", "wave", i+1, "tasks", len(wave))
		var wg sync.WaitGroup
		for _, t := range wave {
			if t.Done {
				continue
			}
			wg.Add(1)
			go func(t *task.Task) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					m.finish(t, err)
					return
				}
				defer sem.Release(1)
				m.runOne(ctx, t, handler)
			}(t)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch execution interrupted: %w", err)
		}
	}
	return nil
}

func (m *Manager) runOne(ctx context.Context, t *task.Task, handler Handler) {
	deps, err := m.DependencyResults(t)
	if err != nil {
		m.finish(t, err)
		return
	}
	t.State = task.Running
	if err := handler(ctx, t, deps); err != nil {
		m.finish(t, err)
		return
	}
	m.finish(t, nil)
}

// finish records the terminal state of a task and applies result retention.
func (m *Manager) finish(t *task.Task, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.Done = true
	if err != nil {
		t.Error = err.Error()
		t.State = task.Failed
		m.log.Warn("task failed", "task_id", t.ID, "error", err)
		return
	}
	t.State = task.Done
	m.completed = append(m.completed, t.ID)
	m.resultBytes += int64(len(t.ResultText()))
	m.evictLocked()
}

func (m *Manager) evictLocked() {
	for len(m.completed) > 0 &&
		(len(m.completed) > m.maxCompleted || m.resultBytes > m.sizeLimit) {
		id := m.completed[0]
		m.completed = m.completed[1:]
		t := m.tasks[id]
		m.resultBytes -= int64(len(t.ResultText()))
		t.Result = &llm.Response{Kind: llm.DirectText, Text: EvictedResult}
		m.log.Debug("evicted task result", "task_id", id)
	}
}

// DependencyResults resolves the results of a task's direct dependencies.
// Every dependency must exist and have completed successfully.
func (m *Manager) DependencyResults(t *task.Task) (map[string]*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make(map[string]*llm.Response, len(t.Dependencies))
	for _, id := range t.Dependencies {
		dep, ok := m.tasks[id]
		if !ok {
			return nil, &MissingDependencyError{TaskID: t.ID, DependencyID: id}
		}
		if !dep.Done {
			return nil, &DependencyNotReadyError{TaskID: t.ID, DependencyID: id}
		}
		if dep.Error != "" {
			return nil, &DependencyFailedError{TaskID: t.ID, DependencyID: id, Cause: dep.Error}
		}
		results[id] = dep.Result
	}
	return results, nil
}

// Stats describes the current size of the batch and its retention state.
type Stats struct {
	TotalTasks        int   `json:"total_tasks"`
	PendingTasks      int   `json:"pending_tasks"`
	CompletedTasks    int   `json:"completed_tasks"`
	FailedTasks       int   `json:"failed_tasks"`
	RetainedResults   int   `json:"retained_results"`
	ResultBytes       int64 `json:"result_bytes"`
	MaxCompletedTasks int   `json:"max_completed_tasks"`
	ResultSizeLimit   int64 `json:"result_size_limit"`
}

// Stats returns a snapshot of the batch state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalTasks:        len(m.tasks),
		RetainedResults:   len(m.completed),
		ResultBytes:       m.resultBytes,
		MaxCompletedTasks: m.maxCompleted,
		ResultSizeLimit:   m.sizeLimit,
	}
	for _, t := range m.tasks {
		switch {
		case !t.Done:
			s.PendingTasks++
		case t.Error != "":
			s.FailedTasks++
		default:
			s.CompletedTasks++
		}
	}
	return s
}

// taskHeap orders tasks by descending priority, breaking ties on the task id
// so wave ordering is deterministic.
type taskHeap []*task.Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].ID < h[j].ID
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task.Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
