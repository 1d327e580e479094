package agent

import (
	"errors"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Agent{Name: "mail", Description: "sends email"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&Agent{Name: "todo", Description: "manages reminders"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := r.Get("mail")
	if !ok || got.Description != "sends email" {
		t.Fatal("expected mail agent in registry")
	}

	if _, ok := r.Get("unknown"); ok {
		t.Error("expected lookup miss for unknown agent")
	}

	agents := r.List()
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].Name != "mail" || agents[1].Name != "todo" {
		t.Error("expected registration order preserved")
	}

	descs := r.Descriptions()
	if descs["todo"] != "manages reminders" {
		t.Errorf("unexpected description: %s", descs["todo"])
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Agent{Name: "mail"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register(&Agent{Name: "mail"})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	var dup *DuplicateAgentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAgentError, got %T", err)
	}
	if dup.Name != "mail" {
		t.Errorf("expected name 'mail' in error, got '%s'", dup.Name)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Agent{}); err == nil {
		t.Fatal("expected error for empty agent name")
	}
}
