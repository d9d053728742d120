// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/breaker"
	"github.com/hookguard/sentinel/internal/cache"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/gates"
	"github.com/hookguard/sentinel/internal/registry"
	"github.com/hookguard/sentinel/internal/router"
	"github.com/hookguard/sentinel/internal/state"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	root := t.TempDir()
	store, err := state.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg, err := registry.NewRegistry(gates.All(), "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return Deps{
		Store:         store,
		Audit:         audit.NewLog(root),
		Breaker:       breaker.NewGateBreaker(filepath.Join(root, "gate_breaker.json")),
		Router:        router.New(filepath.Join(root, "router.json"), registry.TIER1SafetyGates),
		Registry:      reg,
		Cache:         cache.NewAt(filepath.Join(root, "gate_result_cache.json")),
		Effectiveness: effectiveness.New(filepath.Join(root, "gate_effectiveness.json")),
	}
}

func rawInput(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestDispatchBlocksEditOfUnreadFile(t *testing.T) {
	d := newTestDeps(t)
	evt := event.HookEvent{
		SessionID: "s1", ToolName: "Edit",
		ToolInput: rawInput(t, map[string]any{"file_path": "/a.go", "old_string": "x", "new_string": "y"}),
	}
	out, err := Dispatch(d, evt)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "deny" {
		t.Fatalf("Decision = %q, want deny", out.Decision)
	}
}

func TestDispatchAllowsEditAfterRead(t *testing.T) {
	d := newTestDeps(t)
	s, err := d.Store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.FilesRead = append(s.FilesRead, "/a.go")
	if err := d.Store.Save(s, "s1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	evt := event.HookEvent{
		SessionID: "s1", ToolName: "Edit",
		ToolInput: rawInput(t, map[string]any{"file_path": "/a.go", "old_string": "x", "new_string": "y"}),
	}
	out, err := Dispatch(d, evt)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow; reason=%q", out.Decision, out.Reason)
	}
}

func TestDispatchRejectsMissingToolName(t *testing.T) {
	d := newTestDeps(t)
	out, err := Dispatch(d, event.HookEvent{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "deny" {
		t.Fatalf("Decision = %q, want deny for missing tool_name", out.Decision)
	}
}

func TestDispatchRejectsInvalidSessionID(t *testing.T) {
	d := newTestDeps(t)
	out, err := Dispatch(d, event.HookEvent{SessionID: "../../etc/passwd", ToolName: "Read"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "deny" {
		t.Fatalf("Decision = %q, want deny for an unsafe session id", out.Decision)
	}
}

func TestDispatchAlwaysAllowsReadBypassingGates(t *testing.T) {
	d := newTestDeps(t)
	out, err := Dispatch(d, event.HookEvent{SessionID: "s1", ToolName: "Read", ToolInput: rawInput(t, map[string]any{"file_path": "/a.go"})})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow (Read is always-allowed)", out.Decision)
	}
}

func TestDispatchBlocksDestructiveBashCommand(t *testing.T) {
	d := newTestDeps(t)
	out, err := Dispatch(d, event.HookEvent{
		SessionID: "s1", ToolName: "Bash",
		ToolInput: rawInput(t, map[string]any{"command": "rm -rf /"}),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "deny" {
		t.Fatalf("Decision = %q, want deny for a destructive command", out.Decision)
	}
}

func TestDispatchDemotesNonTier1BlockUnderWarnProfile(t *testing.T) {
	overrideDir := t.TempDir()
	overrideYAML := "profile_mode: warn\n"
	if err := os.WriteFile(filepath.Join(overrideDir, "gate_13_workspace_isolation.yaml"), []byte(overrideYAML), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	root := t.TempDir()
	store, err := state.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	reg, err := registry.NewRegistry(gates.All(), overrideDir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	d := Deps{
		Store:         store,
		Audit:         audit.NewLog(root),
		Breaker:       breaker.NewGateBreaker(filepath.Join(root, "gate_breaker.json")),
		Router:        router.New(filepath.Join(root, "router.json"), registry.TIER1SafetyGates),
		Registry:      reg,
		Cache:         cache.NewAt(filepath.Join(root, "gate_result_cache.json")),
		Effectiveness: effectiveness.New(filepath.Join(root, "gate_effectiveness.json")),
	}

	s, err := d.Store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.FilesRead = append(s.FilesRead, "../../etc/passwd")
	if err := d.Store.Save(s, "s1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := Dispatch(d, event.HookEvent{
		SessionID: "s1", ToolName: "Edit",
		ToolInput: rawInput(t, map[string]any{"file_path": "../../etc/passwd", "old_string": "x", "new_string": "y"}),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow: a non-Tier-1 block under profile_mode warn must be demoted, not denied", out.Decision)
	}

	counts := d.Effectiveness.Load()["gate_13_workspace_isolation"]
	if counts.Blocks != 0 {
		t.Fatalf("Blocks = %d, want 0: a demoted block must not count as a real block", counts.Blocks)
	}
}

func TestDispatchRecordsGateEffectivenessOnRealBlock(t *testing.T) {
	d := newTestDeps(t)
	_, err := Dispatch(d, event.HookEvent{
		SessionID: "s1", ToolName: "Edit",
		ToolInput: rawInput(t, map[string]any{"file_path": "/a.go", "old_string": "x", "new_string": "y"}),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	counts := d.Effectiveness.Load()["gate_01_read_before_edit"]
	if counts.Blocks != 1 {
		t.Fatalf("Blocks = %d, want 1 after a genuine Tier-1 block", counts.Blocks)
	}
}

func TestDispatchUpdatesRouterQValue(t *testing.T) {
	d := newTestDeps(t)
	evt := event.HookEvent{
		SessionID: "s1", ToolName: "Edit",
		ToolInput: rawInput(t, map[string]any{"file_path": "/a.go", "old_string": "x", "new_string": "y"}),
	}
	if _, err := Dispatch(d, evt); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// The Q-value for the Tier-1 gate that fired should have moved off
	// its neutral prior in the router the dispatcher updated.
	if v := d.Router.Value("gate_01_read_before_edit", "Edit"); v == 0.5 {
		t.Fatal("expected the router's Q-value to have moved after a blocking gate fired")
	}
}
