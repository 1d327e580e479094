// Package scheduler polls for due scheduled queries and launches a swarm run
// for each.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/avlonitis/swarmgate/internal/config"
	"github.com/avlonitis/swarmgate/internal/natsbus"
	"github.com/avlonitis/swarmgate/internal/schedule"
	"github.com/avlonitis/swarmgate/internal/store"
	"github.com/avlonitis/swarmgate/internal/swarm"
)

// Runner launches one swarm workflow. Satisfied by *swarm.Coordinator.
type Runner interface {
	Run(ctx context.Context, userQuery string) (swarm.State, error)
}

type Scheduler struct {
	store        *store.Store
	runner       Runner
	bus          *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
	log          *slog.Logger
}

func New(s *store.Store, runner Runner, bus *natsbus.Client, cfg config.SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:        s,
		runner:       runner,
		bus:          bus,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
		log:          log,
	}
}

// UpdateConfig updates the poll interval and signals the run loop to reset
// its ticker.
func (s *Scheduler) UpdateConfig(pollInterval time.Duration) {
	s.pollInterval = pollInterval
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			s.log.Info("scheduler config reloaded", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	queries, err := s.store.GetDueQueries(time.Now())
	if err != nil {
		s.log.Error("failed to get due queries", "error", err)
		return
	}

	for _, q := range queries {
		s.execute(ctx, q)
	}
}

func (s *Scheduler) execute(ctx context.Context, q store.ScheduledQuery) {
	s.log.Info("executing scheduled query", "id", q.ID, "name", q.Name)

	_, err := s.runner.Run(ctx, q.Query)

	var lastStatus, lastError string
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		s.log.Error("scheduled query failed", "id", q.ID, "error", err)
	} else {
		lastStatus = "success"
	}

	// Calculate next run time
	nextRun := schedule.CalculateNextRun(q.Schedule)

	if err := s.store.UpdateQueryRun(q.ID, lastStatus, lastError, nextRun); err != nil {
		s.log.Error("failed to update query run", "id", q.ID, "error", err)
	}

	s.publishRunEvent(q, lastStatus)

	// Mark one-off queries as completed when they have no next run
	if nextRun == nil {
		s.log.Info("no next run, marking one-off query as completed", "id", q.ID, "name", q.Name)
		if err := s.store.UpdateQueryStatus(q.ID, "completed"); err != nil {
			s.log.Error("failed to complete query", "id", q.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishRunEvent(q store.ScheduledQuery, status string) {
	if s.bus == nil {
		return
	}
	event := map[string]any{
		"type":      "scheduled_query_executed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"id":     q.ID,
			"name":   q.Name,
			"status": status,
		},
	}
	if err := s.bus.PublishJSON(natsbus.TopicSchedulerRun(q.ID), event); err != nil {
		s.log.Warn("failed to publish scheduler event", "id", q.ID, "error", err)
	}
}
