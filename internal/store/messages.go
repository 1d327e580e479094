package store

import (
	"encoding/json"
	"fmt"
	"time"
)

type Message struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	AgentName string          `json:"agent_name,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	RootID    string          `json:"root_id,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Store) AddMessage(msg *Message) error {
	result, err := s.db.Exec(`
		INSERT INTO messages (session_id, role, content, agent_name, task_id, root_id, tool_calls, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, msg.AgentName, msg.TaskID, msg.RootID, msg.ToolCalls, msg.Meta)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	msg.ID, _ = result.LastInsertId()
	return nil
}

func (s *Store) GetMessages(sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, agent_name, task_id, root_id, tool_calls, meta, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (s *Store) GetRecentMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, agent_name, task_id, root_id, tool_calls, meta, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return messages, rows.Err()
}

func scanMessages(rows interface {
	Next() bool
	Scan(dest ...any) error
}) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		var agentName, taskID, rootID, toolCalls, meta *string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &agentName, &taskID, &rootID, &toolCalls, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if agentName != nil {
			m.AgentName = *agentName
		}
		if taskID != nil {
			m.TaskID = *taskID
		}
		if rootID != nil {
			m.RootID = *rootID
		}
		if toolCalls != nil {
			m.ToolCalls = json.RawMessage(*toolCalls)
		}
		if meta != nil {
			m.Meta = json.RawMessage(*meta)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

type AgentSession struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	AgentName  string     `json:"agent_name"`
	TaskID     string     `json:"task_id,omitempty"`
	RootID     string     `json:"root_id,omitempty"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

func (s *Store) AddAgentSession(as *AgentSession) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_sessions (id, session_id, agent_name, task_id, root_id, status, last_active)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			last_active = CURRENT_TIMESTAMP`,
		as.ID, as.SessionID, as.AgentName, as.TaskID, as.RootID, as.Status)
	if err != nil {
		return fmt.Errorf("add agent session: %w", err)
	}
	return nil
}

func (s *Store) ListAgentSessions(sessionID string) ([]AgentSession, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, agent_name, task_id, root_id, status, started_at, last_active
		FROM agent_sessions
		WHERE session_id = ?
		ORDER BY started_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list agent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []AgentSession
	for rows.Next() {
		var as AgentSession
		var taskID, rootID *string
		if err := rows.Scan(&as.ID, &as.SessionID, &as.AgentName, &taskID, &rootID, &as.Status, &as.StartedAt, &as.LastActive); err != nil {
			return nil, fmt.Errorf("scan agent session: %w", err)
		}
		if taskID != nil {
			as.TaskID = *taskID
		}
		if rootID != nil {
			as.RootID = *rootID
		}
		sessions = append(sessions, as)
	}
	return sessions, rows.Err()
}
