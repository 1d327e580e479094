package manager

import (
	"fmt"
	"strings"
)

// VisualizeDependencies renders the dependency graph as an indented tree,
// one root per task without dependencies. Intended for logs and debugging.
func (m *Manager) VisualizeDependencies() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	dependents := make(map[string][]string, len(m.tasks))
	var roots []string
	for _, id := range m.order {
		t := m.tasks[id]
		if len(t.Dependencies) == 0 {
			roots = append(roots, id)
		}
		for _, dep := range t.Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var b strings.Builder
	b.WriteString("task dependency graph:\n")
	seen := make(map[string]bool, len(m.tasks))
	for _, id := range roots {
		m.writeTree(&b, dependents, seen, id, 0)
	}
	// Tasks inside a cycle are unreachable from any root, list them flat.
	for _, id := range m.order {
		if !seen[id] {
			fmt.Fprintf(&b, "  %s [%s] (unreachable, possible cycle)\n", id, m.tasks[id].Description)
		}
	}
	return b.String()
}

func (m *Manager) writeTree(b *strings.Builder, dependents map[string][]string, seen map[string]bool, id string, depth int) {
	t := m.tasks[id]
	indent := strings.Repeat("  ", depth+1)
	if depth == 0 {
		fmt.Fprintf(b, "%s%s [%s]\n", indent, id, t.Description)
	} else {
		fmt.Fprintf(b, "%s-> %s [%s] (depends on above)\n", indent, id, t.Description)
	}
	if seen[id] {
		return
	}
	seen[id] = true
	for _, child := range dependents[id] {
		m.writeTree(b, dependents, seen, child, depth+1)
	}
}
