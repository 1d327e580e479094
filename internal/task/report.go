package task

import (
	"fmt"
	"strings"
)

// Report renders the task-by-task execution plan and results as markdown.
// This is the primary presentation surface consumed by callers.
func Report(tasks []*Task) string {
	var sb strings.Builder
	sb.WriteString("# Task Execution Plan\n\n")

	for i, t := range tasks {
		fmt.Fprintf(&sb, "## Task %d: %s\n\n", i+1, t.Description)
		fmt.Fprintf(&sb, "- **ID**: `%s`\n", t.ID)
		fmt.Fprintf(&sb, "- **Priority**: %d\n", t.Priority)
		if len(t.Dependencies) > 0 {
			deps := make([]string, len(t.Dependencies))
			for j, dep := range t.Dependencies {
				deps[j] = "`" + dep + "`"
			}
			fmt.Fprintf(&sb, "- **Dependencies**: %s\n", strings.Join(deps, ", "))
		} else {
			sb.WriteString("- **Dependencies**: None\n")
		}

		sb.WriteString("\n### Operations:\n\n")
		for j, op := range t.Operations {
			fmt.Fprintf(&sb, "%d. %s\n", j+1, op)
		}
		sb.WriteString("\n")

		if t.Result != nil {
			sb.WriteString("## Results\n\n")
			sb.WriteString(t.ResultText())
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
