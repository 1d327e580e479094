package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avlonitis/swarmgate/internal/schedule"
	"github.com/avlonitis/swarmgate/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Swarm runs
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("POST /api/runs", s.createRun)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/messages", s.getRunMessages)

	// Scheduled queries
	mux.HandleFunc("GET /api/queries", s.listQueries)
	mux.HandleFunc("POST /api/queries", s.createQuery)
	mux.HandleFunc("PUT /api/queries/{id}", s.updateQuery)
	mux.HandleFunc("DELETE /api/queries/{id}", s.deleteQuery)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListSwarmRuns()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, runs)
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	state, err := s.runner.Run(r.Context(), body.Query)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{
		"session_id": state.SessionID,
		"response":   state.Response,
		"report":     state.Report,
		"tasks":      state.Tasks,
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.store.GetSwarmRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteSwarmRun(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getRunMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	messages, err := s.store.GetMessages(id, 100)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]string{
			"id":    fmt.Sprintf("%d", m.ID),
			"role":  m.Role,
			"agent": m.AgentName,
			"text":  m.Content,
			"time":  formatMessageTime(m.CreatedAt),
		})
	}
	jsonResponse(w, out)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.store.ListQueries()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(queries))
	for _, q := range queries {
		out = append(out, queryToAPI(q))
	}
	jsonResponse(w, out)
}

func (s *Server) createQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Query    string `json:"query"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Query == "" {
		jsonError(w, "name, schedule, and query are required", http.StatusBadRequest)
		return
	}

	// Normalize schedule (handles plain cron strings)
	normalized, err := schedule.NormalizeSchedule(body.Schedule)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
		return
	}

	status := "active"
	if body.Enabled != nil && !*body.Enabled {
		status = "paused"
	}

	q := store.ScheduledQuery{
		ID:       uuid.New().String(),
		Name:     body.Name,
		Schedule: normalized,
		Query:    body.Query,
		Status:   status,
	}

	// Calculate initial next_run_at
	if status == "active" {
		q.NextRunAt = schedule.CalculateNextRun(normalized)
	}

	if err := s.store.SaveQuery(&q); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, queryToAPI(q))
}

func (s *Server) updateQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := s.store.GetQuery(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "query not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name     *string `json:"name"`
		Schedule *string `json:"schedule"`
		Query    *string `json:"query"`
		Enabled  *bool   `json:"enabled"`
		Status   *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		existing.Name = *body.Name
	}
	if body.Query != nil {
		existing.Query = *body.Query
	}

	// Handle enabled bool → status mapping
	if body.Enabled != nil {
		if *body.Enabled {
			existing.Status = "active"
		} else if existing.Status != "completed" {
			existing.Status = "paused"
		}
	} else if body.Status != nil {
		existing.Status = *body.Status
	}

	// Handle schedule change
	if body.Schedule != nil {
		normalized, err := schedule.NormalizeSchedule(*body.Schedule)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
			return
		}
		existing.Schedule = normalized
	}

	// Recalculate next_run_at
	if existing.Status == "active" {
		existing.NextRunAt = schedule.CalculateNextRun(existing.Schedule)
	} else {
		existing.NextRunAt = nil
	}

	if err := s.store.SaveQuery(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, queryToAPI(*existing))
}

func (s *Server) deleteQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteQuery(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	runs, _ := s.store.ListSwarmRuns()
	queries, _ := s.store.ListQueries()

	runningRuns, activeQueries := 0, 0
	for _, run := range runs {
		if run.Status == "running" {
			runningRuns++
		}
	}
	for _, q := range queries {
		if q.Status == "active" {
			activeQueries++
		}
	}

	// Recent messages
	recentMsgs, _ := s.store.GetRecentMessages(10)
	recentOut := make([]map[string]string, 0, len(recentMsgs))
	for _, m := range recentMsgs {
		recentOut = append(recentOut, map[string]string{
			"id":    fmt.Sprintf("%d", m.ID),
			"agent": m.AgentName,
			"role":  m.Role,
			"text":  m.Content,
			"time":  formatMessageTime(m.CreatedAt),
		})
	}

	status := map[string]any{
		"status":          "ok",
		"runs_count":      len(runs),
		"running_runs":    runningRuns,
		"active_queries":  activeQueries,
		"uptime":          formatUptime(time.Since(s.startedAt)),
		"recent_messages": recentOut,
		"nats":            "ok",
		"timestamp":       time.Now().UTC(),
		"version":         s.version,
	}

	jsonResponse(w, status)
}

func queryToAPI(q store.ScheduledQuery) map[string]any {
	m := map[string]any{
		"id":               q.ID,
		"name":             q.Name,
		"schedule":         q.Schedule,
		"schedule_display": schedule.FormatSchedule(q.Schedule),
		"query":            q.Query,
		"enabled":          q.Status == "active",
		"status":           q.Status,
	}
	if q.LastRunAt != nil {
		m["last_run"] = formatMessageTime(*q.LastRunAt)
	}
	if q.NextRunAt != nil {
		m["next_run"] = formatMessageTime(*q.NextRunAt)
	}
	return m
}

func formatMessageTime(t time.Time) string {
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
