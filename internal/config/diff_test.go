package config

import (
	"testing"
	"time"
)

func TestDiff_NoChanges(t *testing.T) {
	cfg := &Config{
		LLM:   LLMConfig{Model: "claude-sonnet-4-20250514", MaxTokens: 8192},
		Swarm: SwarmConfig{Concurrency: 10, TaskTimeout: 5 * time.Minute},
	}
	d := Diff(cfg, cfg)
	if d.HasChanges() {
		t.Error("expected no changes")
	}
}

func TestDiff_LLMChanged(t *testing.T) {
	old := &Config{LLM: LLMConfig{Model: "claude-sonnet-4-20250514"}}
	new := &Config{LLM: LLMConfig{Model: "claude-opus-4-20250514"}}
	d := Diff(old, new)
	if !d.LLMChanged {
		t.Error("expected llm changed")
	}
	if d.NewLLM.Model != "claude-opus-4-20250514" {
		t.Errorf("expected new model, got %s", d.NewLLM.Model)
	}
}

func TestDiff_SwarmChanged(t *testing.T) {
	old := &Config{Swarm: SwarmConfig{Concurrency: 10}}
	new := &Config{Swarm: SwarmConfig{Concurrency: 4}}
	d := Diff(old, new)
	if !d.SwarmChanged {
		t.Error("expected swarm changed")
	}
	if d.NewSwarm.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", d.NewSwarm.Concurrency)
	}
}

func TestDiff_SchedulerChanged(t *testing.T) {
	old := &Config{Scheduler: SchedulerConfig{PollInterval: 30 * time.Second}}
	new := &Config{Scheduler: SchedulerConfig{PollInterval: 60 * time.Second}}
	d := Diff(old, new)
	if !d.SchedulerChanged {
		t.Error("expected scheduler changed")
	}
}

func TestDiff_NonReloadable(t *testing.T) {
	old := &Config{
		Web:   WebConfig{Port: 8080},
		Store: StoreConfig{Path: "data/a.db"},
	}
	new := &Config{
		Web:   WebConfig{Port: 9090},
		Store: StoreConfig{Path: "data/b.db"},
	}
	d := Diff(old, new)
	if len(d.NonReloadable) != 2 {
		t.Errorf("expected 2 non-reloadable warnings, got %v", d.NonReloadable)
	}
	if d.HasChanges() {
		t.Error("non-reloadable changes should not count as reloadable")
	}
}
