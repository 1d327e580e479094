package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type counters struct {
	Steps []string
	N     int
}

func appendStep(name string) NodeFunc[counters] {
	return func(ctx context.Context, st counters) (counters, error) {
		st.Steps = append(st.Steps, name)
		return st, nil
	}
}

func TestRunLinearGraph(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		AddNode("c", appendStep("c")).
		AddEdge("a", "b", nil).
		AddEdge("b", "c", nil).
		SetEntrypoint("a").
		SetExit("c")

	st, err := g.Run(context.Background(), counters{}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(st.Steps) != len(want) {
		t.Fatalf("steps = %v, want %v", st.Steps, want)
	}
	for i := range want {
		if st.Steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", st.Steps, want)
		}
	}
}

func TestConditionalEdgesInRegistrationOrder(t *testing.T) {
	g := New[counters](nil).
		AddNode("start", appendStep("start")).
		AddNode("short", appendStep("short")).
		AddNode("long", appendStep("long")).
		AddEdge("start", "short", func(st counters) bool { return st.N == 0 }).
		AddEdge("start", "long", nil).
		SetEntrypoint("start").
		SetExit("short")

	st, err := g.Run(context.Background(), counters{N: 0}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Steps[len(st.Steps)-1] != "short" {
		t.Errorf("took wrong branch: %v", st.Steps)
	}
}

func TestSelfLoopDetected(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		AddEdge("a", "a", nil).
		SetEntrypoint("a").
		SetExit("b")

	for _, opts := range []RunOptions{{}, {MaxCycles: 5}} {
		st, err := g.Run(context.Background(), counters{}, opts)
		var cyc *CycleError
		if !errors.As(err, &cyc) {
			t.Fatalf("MaxCycles=%d: expected CycleError, got %v", opts.MaxCycles, err)
		}
		if cyc.Node != "a" {
			t.Errorf("cycle node = %s, want a", cyc.Node)
		}
		if len(cyc.Visited) != 1 || cyc.Visited[0] != "a" {
			t.Errorf("visited = %v, want [a]", cyc.Visited)
		}
		// The revisit must be caught before the node runs again.
		if len(st.Steps) != 1 {
			t.Errorf("node a ran %d times, want 1", len(st.Steps))
		}
	}
}

func TestCycleErrorNamesVisitedSet(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		AddEdge("a", "b", nil).
		AddEdge("b", "a", nil).
		SetEntrypoint("a")

	_, err := g.Run(context.Background(), counters{}, RunOptions{})
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if cyc.Node != "a" {
		t.Errorf("cycle node = %s, want a", cyc.Node)
	}
	if len(cyc.Visited) != 2 || cyc.Visited[0] != "a" || cyc.Visited[1] != "b" {
		t.Errorf("visited = %v, want [a b]", cyc.Visited)
	}
	for _, name := range []string{"a", "b"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name visited node %s", err, name)
		}
	}
}

func TestMaxCyclesCapsExecutions(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		AddNode("c", appendStep("c")).
		AddEdge("a", "b", nil).
		AddEdge("b", "c", nil).
		SetEntrypoint("a").
		SetExit("c")

	st, err := g.Run(context.Background(), counters{}, RunOptions{MaxCycles: 2})
	var capped *MaxCyclesError
	if !errors.As(err, &capped) {
		t.Fatalf("expected MaxCyclesError, got %v", err)
	}
	if capped.Limit != 2 {
		t.Errorf("limit = %d, want 2", capped.Limit)
	}
	if len(st.Steps) != 2 {
		t.Errorf("executed %v, want exactly 2 nodes", st.Steps)
	}

	if _, err := g.Run(context.Background(), counters{}, RunOptions{MaxCycles: 3}); err != nil {
		t.Fatalf("Run with sufficient cap: %v", err)
	}
}

func TestDeadEndDetected(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		SetEntrypoint("a").
		SetExit("b")

	_, err := g.Run(context.Background(), counters{}, RunOptions{})
	var dead *DeadEndError
	if !errors.As(err, &dead) {
		t.Fatalf("expected DeadEndError, got %v", err)
	}
}

func TestNoTransitionDetected(t *testing.T) {
	g := New[counters](nil).
		AddNode("a", appendStep("a")).
		AddNode("b", appendStep("b")).
		AddEdge("a", "b", func(st counters) bool { return false }).
		SetEntrypoint("a").
		SetExit("b")

	_, err := g.Run(context.Background(), counters{}, RunOptions{})
	var none *NoTransitionError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoTransitionError, got %v", err)
	}
}

func TestNodeErrorWrapsCause(t *testing.T) {
	boom := errors.New("boom")
	g := New[counters](nil).
		AddNode("a", func(ctx context.Context, st counters) (counters, error) {
			return st, boom
		}).
		SetEntrypoint("a").
		SetExit("a")

	_, err := g.Run(context.Background(), counters{}, RunOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	var ne *NodeError
	if !errors.As(err, &ne) || ne.Node != "a" {
		t.Fatalf("expected NodeError for node a, got %v", err)
	}
}

func TestNodeTimeout(t *testing.T) {
	g := New[counters](nil).
		AddNode("slow", func(ctx context.Context, st counters) (counters, error) {
			select {
			case <-time.After(time.Second):
				return st, nil
			case <-ctx.Done():
				return st, ctx.Err()
			}
		}).
		SetEntrypoint("slow").
		SetExit("slow")

	_, err := g.Run(context.Background(), counters{}, RunOptions{NodeTimeout: 10 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
