// Package graph implements a small state machine for multi-step workflows.
// Nodes transform a shared state value; edges, optionally conditional,
// decide which node runs next.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// NodeFunc transforms the workflow state. It receives the state produced by
// the previous node and returns the state passed to the next one.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Condition gates an edge. The first matching edge in registration order is
// taken.
type Condition[S any] func(state S) bool

type edge[S any] struct {
	to   string
	cond Condition[S]
}

// Graph is a directed workflow over a state type S. Configure it with
// AddNode, AddEdge, SetEntrypoint and SetExit, then call Run. A Graph is not
// safe for concurrent configuration, but Run may be invoked repeatedly.
type Graph[S any] struct {
	nodes map[string]NodeFunc[S]
	edges map[string][]edge[S]
	entry string
	exit  string
	log   *slog.Logger
}

// New returns an empty graph.
func New[S any](log *slog.Logger) *Graph[S] {
	if log == nil {
		log = slog.Default()
	}
	return &Graph[S]{
		nodes: make(map[string]NodeFunc[S]),
		edges: make(map[string][]edge[S]),
		log:   log,
	}
}

// AddNode registers a named step. Re-registering a name replaces the
// previous function.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	g.nodes[name] = fn
	return g
}

// AddEdge connects from to to. A nil condition always matches. Edges are
// evaluated in the order they were added.
func (g *Graph[S]) AddEdge(from, to string, cond Condition[S]) *Graph[S] {
	g.edges[from] = append(g.edges[from], edge[S]{to: to, cond: cond})
	return g
}

// SetEntrypoint names the node Run starts from.
func (g *Graph[S]) SetEntrypoint(name string) *Graph[S] {
	g.entry = name
	return g
}

// SetExit names the terminal node. The exit node itself is executed before
// Run returns.
func (g *Graph[S]) SetExit(name string) *Graph[S] {
	g.exit = name
	return g
}

// UnknownNodeError is returned when an edge or entrypoint references a node
// that was never registered.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown graph node: %s", e.Name)
}

// NodeError wraps a failure inside a node so callers can tell which step
// broke.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// CycleError is returned when a node is about to execute a second time.
// Visited lists the nodes already executed in this run, sorted.
type CycleError struct {
	Node    string
	Visited []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at node %s, visited: %s", e.Node, strings.Join(e.Visited, ", "))
}

// MaxCyclesError is returned when the total number of node executions
// exceeds the configured cap. It is a backstop independent of cycle
// detection.
type MaxCyclesError struct {
	Limit int
}

func (e *MaxCyclesError) Error() string {
	return fmt.Sprintf("exceeded %d node executions", e.Limit)
}

// DeadEndError is returned when a non-exit node has no outgoing edges.
type DeadEndError struct {
	Node string
}

func (e *DeadEndError) Error() string {
	return fmt.Sprintf("node %s has no outgoing edges and is not the exit", e.Node)
}

// NoTransitionError is returned when none of a node's edge conditions match
// the current state.
type NoTransitionError struct {
	Node string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no edge condition matched at node %s", e.Node)
}

// RunOptions tune a single execution.
type RunOptions struct {
	// NodeTimeout bounds each node execution. Zero disables the timeout.
	NodeTimeout time.Duration
	// MaxCycles caps total node executions. Zero disables the cap. The cap
	// is separate from cycle detection, which always rejects revisits.
	MaxCycles int
}

// Run walks the graph from the entrypoint until the exit node has executed.
// The returned state is the output of the last node that ran, even on error.
func (g *Graph[S]) Run(ctx context.Context, initial S, opts RunOptions) (S, error) {
	state := initial
	if g.entry == "" {
		return state, fmt.Errorf("graph entrypoint not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return state, &UnknownNodeError{Name: g.entry}
	}

	visited := make(map[string]bool, len(g.nodes))
	executions := 0
	current := g.entry

	for {
		if visited[current] {
			return state, &CycleError{Node: current, Visited: visitedNames(visited)}
		}
		if opts.MaxCycles > 0 && executions >= opts.MaxCycles {
			return state, &MaxCyclesError{Limit: opts.MaxCycles}
		}

		fn, ok := g.nodes[current]
		if !ok {
			return state, &UnknownNodeError{Name: current}
		}

		g.log.Debug("executing graph node", "node", current)
		var err error
		state, err = g.runNode(ctx, fn, state, opts.NodeTimeout)
		if err != nil {
			return state, &NodeError{Node: current, Err: err}
		}
		visited[current] = true
		executions++

		if current == g.exit {
			return state, nil
		}

		next, err := g.next(current, state)
		if err != nil {
			return state, err
		}
		current = next
	}
}

func visitedNames(visited map[string]bool) []string {
	names := make([]string, 0, len(visited))
	for name := range visited {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph[S]) runNode(ctx context.Context, fn NodeFunc[S], state S, timeout time.Duration) (S, error) {
	if timeout <= 0 {
		return fn(ctx, state)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		state S
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := fn(ctx, state)
		done <- result{state: s, err: err}
	}()
	select {
	case r := <-done:
		return r.state, r.err
	case <-ctx.Done():
		return state, fmt.Errorf("node timed out after %s: %w", timeout, ctx.Err())
	}
}

func (g *Graph[S]) next(current string, state S) (string, error) {
	edges := g.edges[current]
	if len(edges) == 0 {
		return "", &DeadEndError{Node: current}
	}
	for _, e := range edges {
		if e.cond == nil || e.cond(state) {
			return e.to, nil
		}
	}
	return "", &NoTransitionError{Node: current}
}
