// Package enrich attaches supporting context to tasks before execution.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/task"
)

// Enricher produces extra context for a task. Implementations may consult
// the model, a repository checkout or any other source.
type Enricher interface {
	Enrich(ctx context.Context, userQuery string, t *task.Task) (string, error)
}

const enrichSystemPrompt = `You prepare background context for a worker agent.
Given the user's query and one task from its execution plan, write a short
paragraph of context that helps the agent do the task well. Mention relevant
constraints and what the task's output will be used for. Respond with the
context only.`

// LLMEnricher asks the model for per-task context. RepoPath, when set, is
// surfaced to the model so file-oriented tasks know where to look.
type LLMEnricher struct {
	client   llm.Client
	repoPath string
	log      *slog.Logger
}

func NewLLMEnricher(client llm.Client, repoPath string, log *slog.Logger) *LLMEnricher {
	if log == nil {
		log = slog.Default()
	}
	return &LLMEnricher{client: client, repoPath: repoPath, log: log}
}

func (e *LLMEnricher) Enrich(ctx context.Context, userQuery string, t *task.Task) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n", userQuery)
	fmt.Fprintf(&b, "Task: %s\n", t.Description)
	if len(t.Operations) > 0 {
		fmt.Fprintf(&b, "Operations: %s\n", strings.Join(t.Operations, "; "))
	}
	if e.repoPath != "" {
		fmt.Fprintf(&b, "Working repository: %s\n", e.repoPath)
	}

	resp, err := e.client.Complete(ctx, enrichSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("enriching task %s: %w", t.ID, err)
	}
	return strings.TrimSpace(resp.ResponseText()), nil
}
