package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/avlonitis/swarmgate/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessageCRUD(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_ = s.AddMessage(&Message{
			SessionID: "s1",
			Role:      "user",
			Content:   "message " + string(rune('A'+i)),
		})
	}

	messages, err := s.GetMessages("s1", 10)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(messages) != 5 {
		t.Errorf("expected 5 messages, got %d", len(messages))
	}
	// Should be in chronological order
	if messages[0].Content != "message A" {
		t.Errorf("expected first message 'message A', got '%s'", messages[0].Content)
	}

	// Limit
	messages, err = s.GetMessages("s1", 2)
	if err != nil {
		t.Fatalf("get messages limited: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(messages))
	}

	// Optional columns round-trip
	tc, _ := json.Marshal([]map[string]string{{"name": "send_email"}})
	_ = s.AddMessage(&Message{
		SessionID: "s2",
		Role:      "assistant",
		Content:   "done",
		AgentName: "email",
		TaskID:    "t1",
		RootID:    "r1",
		ToolCalls: tc,
	})
	messages, _ = s.GetMessages("s2", 10)
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].AgentName != "email" || messages[0].TaskID != "t1" {
		t.Errorf("optional columns lost: %+v", messages[0])
	}
}

func TestAgentSessionCRUD(t *testing.T) {
	s := newTestStore(t)

	as := &AgentSession{
		ID:        "as-1",
		SessionID: "s1",
		AgentName: "reminder",
		TaskID:    "t1",
		Status:    "active",
	}
	if err := s.AddAgentSession(as); err != nil {
		t.Fatalf("add agent session: %v", err)
	}

	// Upsert updates status
	as.Status = "completed"
	if err := s.AddAgentSession(as); err != nil {
		t.Fatalf("update agent session: %v", err)
	}

	sessions, err := s.ListAgentSessions("s1")
	if err != nil {
		t.Fatalf("list agent sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Status != "completed" {
		t.Errorf("expected status 'completed', got '%s'", sessions[0].Status)
	}
}

func TestScheduledQueryCRUD(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	nextRun := now.Add(-1 * time.Minute) // Due now
	q := &ScheduledQuery{
		ID:        "query-1",
		Name:      "Morning digest",
		Schedule:  "0 7 * * *",
		Query:     "summarize my unread email",
		Status:    "active",
		NextRunAt: &nextRun,
	}

	if err := s.SaveQuery(q); err != nil {
		t.Fatalf("save query: %v", err)
	}

	got, err := s.GetQuery("query-1")
	if err != nil {
		t.Fatalf("get query: %v", err)
	}
	if got.Name != "Morning digest" {
		t.Errorf("expected 'Morning digest', got '%s'", got.Name)
	}

	due, err := s.GetDueQueries(time.Now())
	if err != nil {
		t.Fatalf("get due queries: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("expected 1 due query, got %d", len(due))
	}

	// Pause
	_ = s.UpdateQueryStatus("query-1", "paused")
	due, _ = s.GetDueQueries(time.Now())
	if len(due) != 0 {
		t.Errorf("expected 0 due queries after pause, got %d", len(due))
	}

	// Run bookkeeping
	next := now.Add(24 * time.Hour)
	if err := s.UpdateQueryRun("query-1", "success", "", &next); err != nil {
		t.Fatalf("update query run: %v", err)
	}
	got, _ = s.GetQuery("query-1")
	if got.LastStatus != "success" {
		t.Errorf("expected last status 'success', got '%s'", got.LastStatus)
	}

	// Delete
	_ = s.DeleteQuery("query-1")
	got, _ = s.GetQuery("query-1")
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSwarmRunCRUD(t *testing.T) {
	s := newTestStore(t)

	tasks, _ := json.Marshal([]map[string]string{{"id": "t1", "description": "research topic"}})
	run := &SwarmRun{
		ID:        "swarm-1",
		SessionID: "s1",
		RootID:    "r1",
		Query:     "research topic",
		Status:    "running",
		Tasks:     tasks,
	}

	if err := s.SaveSwarmRun(run); err != nil {
		t.Fatalf("save swarm run: %v", err)
	}

	got, err := s.GetSwarmRun("swarm-1")
	if err != nil {
		t.Fatalf("get swarm run: %v", err)
	}
	if got.Status != "running" {
		t.Errorf("expected status 'running', got '%s'", got.Status)
	}

	// Update
	results, _ := json.Marshal([]map[string]string{{"output": "done"}})
	_ = s.UpdateSwarmRun("swarm-1", "completed", results, "# report", "final answer")

	got, _ = s.GetSwarmRun("swarm-1")
	if got.Status != "completed" {
		t.Errorf("expected status 'completed', got '%s'", got.Status)
	}
	if got.Response != "final answer" {
		t.Errorf("expected response 'final answer', got '%s'", got.Response)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	runs, err := s.ListSwarmRuns()
	if err != nil {
		t.Fatalf("list swarm runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	if got, _ := s.GetSwarmRun("nope"); got != nil {
		t.Error("expected nil for unknown run")
	}
}
