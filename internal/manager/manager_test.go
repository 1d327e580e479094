package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/task"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	return New(opts, nil)
}

func addTask(t *testing.T, m *Manager, id string, priority int, deps ...string) *task.Task {
	t.Helper()
	tk := &task.Task{ID: id, Description: "task " + id, Priority: priority, Dependencies: deps}
	if err := m.AddTask(tk); err != nil {
		t.Fatalf("AddTask(%s): %v", id, err)
	}
	return tk
}

func textHandler(text string) Handler {
	return func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		tk.Result = &llm.Response{Kind: llm.DirectText, Text: text}
		return nil
	}
}

func TestAddTaskRejectsDuplicates(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)

	err := m.AddTask(&task.Task{ID: "a"})
	var dup *DuplicateTaskError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTaskError, got %v", err)
	}
	if dup.ID != "a" {
		t.Errorf("dup.ID = %q, want %q", dup.ID, "a")
	}
}

func TestValidateDependenciesMissing(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1, "ghost")

	err := m.ValidateDependencies()
	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDependencyError, got %v", err)
	}
	if missing.DependencyID != "ghost" {
		t.Errorf("DependencyID = %q, want %q", missing.DependencyID, "ghost")
	}
}

func TestPlanIsTopologicallyValid(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)
	addTask(t, m, "b", 1, "a")
	addTask(t, m, "c", 1, "a")
	addTask(t, m, "d", 1, "b", "c")

	plan, err := m.PrepareExecutionPlan()
	if err != nil {
		t.Fatalf("PrepareExecutionPlan: %v", err)
	}

	waveOf := map[string]int{}
	for i, wave := range plan {
		for _, tk := range wave {
			waveOf[tk.ID] = i
		}
	}
	if len(waveOf) != 4 {
		t.Fatalf("plan covers %d tasks, want 4", len(waveOf))
	}
	for _, tk := range m.Tasks() {
		for _, dep := range tk.Dependencies {
			if waveOf[dep] >= waveOf[tk.ID] {
				t.Errorf("dependency %s scheduled in wave %d, dependent %s in wave %d",
					dep, waveOf[dep], tk.ID, waveOf[tk.ID])
			}
		}
	}
}

func TestPlanDetectsCycle(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1, "b")
	addTask(t, m, "b", 1, "a")

	_, err := m.PrepareExecutionPlan()
	var cyc *CircularDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if len(cyc.Unscheduled) != 2 {
		t.Errorf("Unscheduled = %v, want both tasks", cyc.Unscheduled)
	}
}

func TestWaveOrderedByPriority(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "low", 1)
	addTask(t, m, "high", 5)
	addTask(t, m, "mid", 3)

	plan, err := m.PrepareExecutionPlan()
	if err != nil {
		t.Fatalf("PrepareExecutionPlan: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("plan has %d waves, want 1", len(plan))
	}
	got := []string{plan[0][0].ID, plan[0][1].ID, plan[0][2].ID}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wave order = %v, want %v", got, want)
		}
	}
}

func TestExecuteAllPropagatesDependencyResults(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)
	addTask(t, m, "b", 1, "a")

	handler := func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		if tk.ID == "b" {
			if got := deps["a"].ResponseText(); got != "result of a" {
				return fmt.Errorf("unexpected dependency result: %q", got)
			}
			tk.Result = &llm.Response{Kind: llm.DirectText, Text: "result of b"}
			return nil
		}
		tk.Result = &llm.Response{Kind: llm.DirectText, Text: "result of " + tk.ID}
		return nil
	}

	if err := m.ExecuteAll(context.Background(), handler, 2); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	b, _ := m.Task("b")
	if !b.Completed() {
		t.Fatalf("task b did not complete: error=%q", b.Error)
	}
	if !m.AllDone() {
		t.Error("AllDone = false after full run")
	}
}

func TestFailedDependencyAbortsDependent(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)
	addTask(t, m, "b", 1, "a")

	handler := func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		if tk.ID == "a" {
			return errors.New("boom")
		}
		t.Error("dependent task ran despite failed dependency")
		return nil
	}

	if err := m.ExecuteAll(context.Background(), handler, 2); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	b, _ := m.Task("b")
	if !b.Done || b.Error == "" {
		t.Fatalf("task b should be marked failed, got done=%v error=%q", b.Done, b.Error)
	}
	if !strings.Contains(b.Error, "failed") {
		t.Errorf("task b error = %q, want dependency failure", b.Error)
	}
}

func TestTaskFailureIsIsolatedWithinWave(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)
	addTask(t, m, "b", 1)
	addTask(t, m, "c", 1)

	handler := func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		if tk.ID == "b" {
			return errors.New("isolated failure")
		}
		tk.Result = &llm.Response{Kind: llm.DirectText, Text: "ok"}
		return nil
	}

	if err := m.ExecuteAll(context.Background(), handler, 3); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	for _, id := range []string{"a", "c"} {
		tk, _ := m.Task(id)
		if !tk.Completed() {
			t.Errorf("task %s should have completed, error=%q", id, tk.Error)
		}
	}
	b, _ := m.Task("b")
	if b.Error != "isolated failure" {
		t.Errorf("task b error = %q", b.Error)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	m := newTestManager(t, Options{})
	for i := 0; i < 8; i++ {
		addTask(t, m, fmt.Sprintf("t%d", i), 1)
	}

	var mu sync.Mutex
	running, peak := 0, 0
	gate := make(chan struct{})
	handler := func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		if running == 2 {
			close(gate)
		}
		mu.Unlock()
		<-gate
		mu.Lock()
		running--
		mu.Unlock()
		tk.Result = &llm.Response{Kind: llm.DirectText, Text: "ok"}
		return nil
	}

	if err := m.ExecuteAll(context.Background(), handler, 2); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestEvictionByCount(t *testing.T) {
	m := newTestManager(t, Options{MaxCompletedTasks: 2})
	for i := 0; i < 3; i++ {
		addTask(t, m, fmt.Sprintf("t%d", i), 3-i)
	}

	if err := m.ExecuteAll(context.Background(), textHandler("payload"), 1); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}

	// Concurrency 1 preserves completion order: t0, t1, t2. Oldest evicted.
	first, _ := m.Task("t0")
	if got := first.ResultText(); got != EvictedResult {
		t.Errorf("oldest result = %q, want placeholder", got)
	}
	if !first.Completed() {
		t.Error("evicted task lost its completed state")
	}
	last, _ := m.Task("t2")
	if got := last.ResultText(); got != "payload" {
		t.Errorf("newest result = %q, want %q", got, "payload")
	}
	if s := m.Stats(); s.RetainedResults != 2 {
		t.Errorf("RetainedResults = %d, want 2", s.RetainedResults)
	}
}

func TestEvictionByResultBytes(t *testing.T) {
	m := newTestManager(t, Options{ResultSizeLimit: 10})
	addTask(t, m, "a", 2)
	addTask(t, m, "b", 1)

	if err := m.ExecuteAll(context.Background(), textHandler("0123456789"), 1); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}

	a, _ := m.Task("a")
	if got := a.ResultText(); got != EvictedResult {
		t.Errorf("task a result = %q, want placeholder", got)
	}
	b, _ := m.Task("b")
	if got := b.ResultText(); got != "0123456789" {
		t.Errorf("task b result = %q", got)
	}
}

func TestStats(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "a", 1)
	addTask(t, m, "b", 1)

	handler := func(ctx context.Context, tk *task.Task, deps map[string]*llm.Response) error {
		if tk.ID == "b" {
			return errors.New("nope")
		}
		tk.Result = &llm.Response{Kind: llm.DirectText, Text: "ok"}
		return nil
	}
	if err := m.ExecuteAll(context.Background(), handler, 2); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}

	s := m.Stats()
	if s.TotalTasks != 2 || s.CompletedTasks != 1 || s.FailedTasks != 1 || s.PendingTasks != 0 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.ResultBytes != int64(len("ok")) {
		t.Errorf("ResultBytes = %d, want %d", s.ResultBytes, len("ok"))
	}
}

func TestVisualizeDependencies(t *testing.T) {
	m := newTestManager(t, Options{})
	addTask(t, m, "root", 1)
	addTask(t, m, "leaf", 1, "root")

	out := m.VisualizeDependencies()
	if !strings.Contains(out, "root") || !strings.Contains(out, "leaf") {
		t.Errorf("visualization missing tasks:\n%s", out)
	}
	if !strings.Contains(out, "leaf") || !strings.Contains(out, "depends on") {
		t.Errorf("visualization missing dependency marker:\n%s", out)
	}
}
