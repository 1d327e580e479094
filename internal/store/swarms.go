package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type SwarmRun struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	RootID      string          `json:"root_id,omitempty"`
	Query       string          `json:"query"`
	Status      string          `json:"status"`
	Tasks       json.RawMessage `json:"tasks,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"`
	Report      string          `json:"report,omitempty"`
	Response    string          `json:"response,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const swarmColumns = `id, session_id, root_id, query, status, tasks, results, report, response, started_at, completed_at`

func scanSwarmRun(scanner interface {
	Scan(dest ...any) error
}) (*SwarmRun, error) {
	r := &SwarmRun{}
	var rootID, tasks, results, report, response *string
	err := scanner.Scan(&r.ID, &r.SessionID, &rootID, &r.Query, &r.Status, &tasks, &results, &report, &response, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if rootID != nil {
		r.RootID = *rootID
	}
	if tasks != nil {
		r.Tasks = json.RawMessage(*tasks)
	}
	if results != nil {
		r.Results = json.RawMessage(*results)
	}
	if report != nil {
		r.Report = *report
	}
	if response != nil {
		r.Response = *response
	}
	return r, nil
}

func (s *Store) SaveSwarmRun(r *SwarmRun) error {
	_, err := s.db.Exec(`
		INSERT INTO swarm_runs (id, session_id, root_id, query, status, tasks, results, report, response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			tasks = excluded.tasks,
			results = excluded.results,
			report = excluded.report,
			response = excluded.response,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.SessionID, r.RootID, r.Query, r.Status, r.Tasks, r.Results, r.Report, r.Response)
	if err != nil {
		return fmt.Errorf("save swarm run: %w", err)
	}
	return nil
}

func (s *Store) GetSwarmRun(id string) (*SwarmRun, error) {
	row := s.db.QueryRow(`SELECT `+swarmColumns+` FROM swarm_runs WHERE id = ?`, id)
	r, err := scanSwarmRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm run: %w", err)
	}
	return r, nil
}

func (s *Store) ListSwarmRuns() ([]SwarmRun, error) {
	rows, err := s.db.Query(`SELECT ` + swarmColumns + ` FROM swarm_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list swarm runs: %w", err)
	}
	defer rows.Close()

	var runs []SwarmRun
	for rows.Next() {
		r, err := scanSwarmRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swarm run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) DeleteSwarmRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM swarm_runs WHERE id = ?`, id)
	return err
}

func (s *Store) UpdateSwarmRun(id string, status string, results json.RawMessage, report, response string) error {
	_, err := s.db.Exec(`
		UPDATE swarm_runs
		SET status = ?, results = ?, report = ?, response = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`, status, results, report, response, status, id)
	return err
}
