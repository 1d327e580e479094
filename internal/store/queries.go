package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScheduledQuery is a recurring swarm query driven by a cron expression.
type ScheduledQuery struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Query      string     `json:"query"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const queryColumns = `id, name, schedule, query, status, next_run_at, last_run_at, last_status, last_error, created_at`

func scanQuery(scanner interface {
	Scan(dest ...any) error
}) (*ScheduledQuery, error) {
	q := &ScheduledQuery{}
	var lastStatus, lastError *string
	err := scanner.Scan(&q.ID, &q.Name, &q.Schedule, &q.Query, &q.Status,
		&q.NextRunAt, &q.LastRunAt, &lastStatus, &lastError, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastStatus != nil {
		q.LastStatus = *lastStatus
	}
	if lastError != nil {
		q.LastError = *lastError
	}
	return q, nil
}

func (s *Store) SaveQuery(q *ScheduledQuery) error {
	_, err := s.db.Exec(`
		INSERT INTO scheduled_queries (id, name, schedule, query, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			query = excluded.query,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		q.ID, q.Name, q.Schedule, q.Query, q.Status, q.NextRunAt)
	if err != nil {
		return fmt.Errorf("save scheduled query: %w", err)
	}
	return nil
}

func (s *Store) GetQuery(id string) (*ScheduledQuery, error) {
	row := s.db.QueryRow(`SELECT `+queryColumns+` FROM scheduled_queries WHERE id = ?`, id)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled query: %w", err)
	}
	return q, nil
}

func (s *Store) ListQueries() ([]ScheduledQuery, error) {
	rows, err := s.db.Query(`SELECT ` + queryColumns + ` FROM scheduled_queries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled queries: %w", err)
	}
	defer rows.Close()

	var queries []ScheduledQuery
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

func (s *Store) GetDueQueries(now time.Time) ([]ScheduledQuery, error) {
	rows, err := s.db.Query(`
		SELECT `+queryColumns+`
		FROM scheduled_queries
		WHERE status = 'active' AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("get due queries: %w", err)
	}
	defer rows.Close()

	var queries []ScheduledQuery
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

func (s *Store) UpdateQueryRun(id string, lastStatus string, lastError string, nextRunAt *time.Time) error {
	_, err := s.db.Exec(`
		UPDATE scheduled_queries
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?
		WHERE id = ?`, lastStatus, lastError, nextRunAt, id)
	return err
}

func (s *Store) UpdateQueryStatus(id string, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_queries SET status = ? WHERE id = ?`, status, id)
	return err
}

func (s *Store) DeleteQuery(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_queries WHERE id = ?`, id)
	return err
}
