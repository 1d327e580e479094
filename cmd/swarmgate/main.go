package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avlonitis/swarmgate/internal/agent"
	"github.com/avlonitis/swarmgate/internal/config"
	"github.com/avlonitis/swarmgate/internal/enrich"
	"github.com/avlonitis/swarmgate/internal/executor"
	"github.com/avlonitis/swarmgate/internal/llm"
	"github.com/avlonitis/swarmgate/internal/natsbus"
	"github.com/avlonitis/swarmgate/internal/scheduler"
	"github.com/avlonitis/swarmgate/internal/store"
	"github.com/avlonitis/swarmgate/internal/swarm"
	"github.com/avlonitis/swarmgate/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("swarmgate %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: swarmgate <command>\n\nCommands:\n  gateway    Start the swarmgate gateway service\n  backup     Archive the data directory to a tar.zst file\n  restore    Restore the data directory from a tar.zst file\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting swarmgate gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	nc, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("connect nats client: %w", err)
	}
	defer nc.Close()

	// Language model client
	client, err := llm.NewAnthropic(llm.AnthropicConfig{
		APIKey:            cfg.LLM.AnthropicAPIKey,
		Model:             cfg.LLM.Model,
		MaxTokens:         int64(cfg.LLM.MaxTokens),
		MaxToolIterations: cfg.LLM.MaxToolIterations,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	// Agent pool from config
	registry := agent.NewRegistry()
	for _, ac := range cfg.Agents {
		err := registry.Register(&agent.Agent{
			Name:                       ac.Name,
			Description:                ac.Description,
			SupportsMultipleOperations: ac.SupportsMultipleOperations,
			Prompt:                     ac.Prompt,
		})
		if err != nil {
			return fmt.Errorf("register agent %s: %w", ac.Name, err)
		}
	}
	if len(cfg.Agents) == 0 {
		slog.Warn("no agents configured, every generated task will go unassigned")
	}

	// Task executor
	exec := executor.New(executor.Options{
		Client:            client,
		Store:             db,
		Bus:               nc,
		Concurrency:       cfg.Swarm.Concurrency,
		TaskTimeout:       cfg.Swarm.TaskTimeout,
		MaxCompletedTasks: cfg.Swarm.MaxCompletedTasks,
		ResultSizeLimit:   cfg.Swarm.ResultSizeLimit(),
	})

	// Context enrichment needs a repository to describe; off otherwise.
	var enricher enrich.Enricher
	if cfg.Swarm.RepoPath != "" {
		enricher = enrich.NewLLMEnricher(client, cfg.Swarm.RepoPath, slog.Default())
	}

	// Swarm coordinator
	coord := swarm.NewCoordinator(swarm.Options{
		Client:      client,
		Registry:    registry,
		Executor:    exec,
		Enricher:    enricher,
		Store:       db,
		Bus:         nc,
		RepoPath:    cfg.Swarm.RepoPath,
		NodeTimeout: cfg.Swarm.NodeTimeout,
		MaxCycles:   cfg.Swarm.MaxCycles,
	})

	// Scheduler
	sched := scheduler.New(db, coord, nc, cfg.Scheduler, slog.Default())
	go sched.Start(ctx)
	slog.Info("scheduler started", "poll_interval", cfg.Scheduler.PollInterval)

	// Web UI
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, coord, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown or reload signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			cfg = reloadConfig(cfg, sched)
			continue
		}
		slog.Info("shutting down", "signal", sig)
		cancel()
		return nil
	}
}

// reloadConfig re-reads the config file on SIGHUP and applies what can be
// applied at runtime. Ports and data paths need a restart.
func reloadConfig(cfg *config.Config, sched *scheduler.Scheduler) *config.Config {
	next, err := config.Load()
	if err != nil {
		slog.Error("config reload failed, keeping current config", "error", err)
		return cfg
	}

	diff := config.Diff(cfg, next)
	for _, field := range diff.NonReloadable {
		slog.Warn("config field changed but needs a restart", "field", field)
	}
	if !diff.HasChanges() {
		slog.Info("config reloaded, no runtime changes")
		return cfg
	}

	if diff.SchedulerChanged {
		sched.UpdateConfig(diff.NewPollInterval.PollInterval)
		slog.Info("scheduler poll interval updated", "poll_interval", diff.NewPollInterval.PollInterval)
	}
	if diff.LLMChanged || diff.SwarmChanged {
		slog.Warn("llm/swarm config changed, takes effect after restart")
	}
	return next
}
