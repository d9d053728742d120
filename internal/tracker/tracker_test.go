// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracker

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/state"
)

func newTestDeps(t *testing.T) (Deps, *state.Store) {
	t.Helper()
	root := t.TempDir()
	store, err := state.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return Deps{
		Store:         store,
		Audit:         audit.NewLog(root),
		Effectiveness: effectiveness.New(filepath.Join(root, "gate_effectiveness.json")),
	}, store
}

func rawInput(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal tool input: %v", err)
	}
	return b
}

func TestTrackReadRecordsFile(t *testing.T) {
	deps, store := newTestDeps(t)
	evt := event.HookEvent{SessionID: "s1", ToolName: "Read", ToolInput: rawInput(t, map[string]any{"file_path": "/a.go"})}
	Track(deps, evt)

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.FilesRead) != 1 || s.FilesRead[0] != "/a.go" {
		t.Fatalf("FilesRead = %v", s.FilesRead)
	}
}

func TestTrackEditAddsToPendingVerification(t *testing.T) {
	deps, store := newTestDeps(t)
	evt := event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/a.go", "new_string": "x"})}
	Track(deps, evt)

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.PendingVerification) != 1 || s.PendingVerification[0] != "/a.go" {
		t.Fatalf("PendingVerification = %v", s.PendingVerification)
	}
	if len(s.FilesEdited) != 1 {
		t.Fatalf("FilesEdited = %v", s.FilesEdited)
	}
}

func TestTrackBashBroadTestPromotesVerifiedFix(t *testing.T) {
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/a.go"})})
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "Bash",
		ToolInput:    rawInput(t, map[string]any{"command": "go test ./..."}),
		ToolResponse: rawInput(t, map[string]any{"exit_code": 0}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.LastTestPassed {
		t.Fatal("expected LastTestPassed true for an exit code of 0")
	}
	if !s.SessionTestBaseline {
		t.Fatal("expected SessionTestBaseline to be set once any test has run this session")
	}
	if s.LastTestCommand != "go test ./..." {
		t.Fatalf("LastTestCommand = %q", s.LastTestCommand)
	}
	found := false
	for _, v := range s.VerifiedFixes {
		if v == "/a.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /a.go to be promoted to VerifiedFixes, got %v", s.VerifiedFixes)
	}
}

func TestTrackBashFailureSetsFixingError(t *testing.T) {
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "Bash",
		ToolInput:    rawInput(t, map[string]any{"command": "go test ./..."}),
		ToolResponse: rawInput(t, map[string]any{"exit_code": 1}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.LastTestPassed {
		t.Fatal("expected LastTestPassed false for a nonzero exit code")
	}
	if s.LastTestExitCode != 1 {
		t.Fatalf("LastTestExitCode = %d, want 1", s.LastTestExitCode)
	}
	if !s.FixingError {
		t.Fatal("expected FixingError to be set after a failing test run")
	}
}

func TestTrackBashIgnoresCommandTextFailKeyword(t *testing.T) {
	// A passing run whose command happens to contain the literal word
	// "fail" (e.g. a test file name) must still be scored by exit code,
	// not by string-matching the command.
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/failover.go"})})
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "Bash",
		ToolInput:    rawInput(t, map[string]any{"command": "go test ./..."}),
		ToolResponse: rawInput(t, map[string]any{"exit_code": 0}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.LastTestPassed {
		t.Fatal("expected LastTestPassed true: exit code 0 must win regardless of command text")
	}
}

func TestTrackBashTargetedTestOnlyPromotesReferencedFile(t *testing.T) {
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/pkg/test_a.py"})})
	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/pkg/unrelated.py"})})
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "Bash",
		ToolInput:    rawInput(t, map[string]any{"command": "pytest pkg/test_a.py::test_one"}),
		ToolResponse: rawInput(t, map[string]any{"exit_code": 0}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	verified := map[string]bool{}
	for _, v := range s.VerifiedFixes {
		verified[v] = true
	}
	if !verified["/pkg/test_a.py"] {
		t.Fatalf("expected the directly executed file to be verified, got %v", s.VerifiedFixes)
	}
	if verified["/pkg/unrelated.py"] {
		t.Fatalf("a targeted test must not graduate an unrelated pending file, got %v", s.VerifiedFixes)
	}
	stillPending := false
	for _, p := range s.PendingVerification {
		if p == "/pkg/unrelated.py" {
			stillPending = true
		}
	}
	if !stillPending {
		t.Fatal("the unrelated file should remain pending verification")
	}
}

func TestPromoteVerifiedFixesExcludesTempDirPaths(t *testing.T) {
	s := state.New("s1")
	s.PendingVerification = []string{"/tmp/scratch.go", "/var/tmp/x.go", "/dev/null.go", "/home/user/real.go"}
	s.VerificationScores = map[string]int{
		"/tmp/scratch.go": 100, "/var/tmp/x.go": 100, "/dev/null.go": 100, "/home/user/real.go": 100,
	}
	promoteVerifiedFixes(s)

	for _, v := range s.VerifiedFixes {
		if v == "/tmp/scratch.go" || v == "/var/tmp/x.go" || v == "/dev/null.go" {
			t.Fatalf("a temp-dir path must never be promoted to VerifiedFixes, got %v", s.VerifiedFixes)
		}
	}
	found := false
	for _, v := range s.VerifiedFixes {
		if v == "/home/user/real.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /home/user/real.go to be promoted, got %v", s.VerifiedFixes)
	}
}

func TestResolveGateBlockOutcomesIncrementsEffectivenessCounters(t *testing.T) {
	deps, store := newTestDeps(t)
	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	nowEpoch := float64(time.Now().Unix())
	s.GateBlockOutcomes = []state.GateBlockOutcome{
		{Gate: "gate_01_read_before_edit", Tool: "Edit", BlockedAt: nowEpoch - 5},
	}
	s.MemoryLastQueried = 0
	if err := store.Save(s, "s1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit", ToolInput: rawInput(t, map[string]any{"file_path": "/a.go"})})

	counts := deps.Effectiveness.Load()["gate_01_read_before_edit"]
	if counts.Overrides != 1 {
		t.Fatalf("Overrides = %d, want 1 when the block resolves without memory/fix-history evidence", counts.Overrides)
	}
}

func TestTrackCausalChainRecordsBanOnFailure(t *testing.T) {
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "mcp__causal__record_outcome",
		ToolInput: rawInput(t, map[string]any{"strategy_id": "strat-1", "success": false}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ActiveBans["strat-1"] != 1 {
		t.Fatalf("ActiveBans[strat-1] = %d, want 1", s.ActiveBans["strat-1"])
	}
}

func TestTrackCausalChainSuccessClearsActiveBan(t *testing.T) {
	deps, store := newTestDeps(t)
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "mcp__causal__record_outcome",
		ToolInput: rawInput(t, map[string]any{"strategy_id": "strat-1", "success": false}),
	})
	Track(deps, event.HookEvent{
		SessionID: "s1", ToolName: "mcp__causal__record_outcome",
		ToolInput: rawInput(t, map[string]any{"strategy_id": "strat-1", "success": true}),
	})

	s, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, banned := s.ActiveBans["strat-1"]; banned {
		t.Fatal("a successful outcome should clear the active ban")
	}
	if s.SuccessfulStrategies["strat-1"].SuccessCount != 1 {
		t.Fatalf("SuccessCount = %d, want 1", s.SuccessfulStrategies["strat-1"].SuccessCount)
	}
}

func TestApplySessionDurationNudgesFiresOncePerMilestone(t *testing.T) {
	s := state.New("s1")
	s.SessionStartedAt = 1000
	applySessionDurationNudges(s, 1000+3600)
	if s.LastDurationNudge != 1 {
		t.Fatalf("LastDurationNudge = %d, want 1", s.LastDurationNudge)
	}
	// A second call at the same elapsed time must not re-fire past the
	// milestone already reached.
	applySessionDurationNudges(s, 1000+3600)
	if s.LastDurationNudge != 1 {
		t.Fatalf("LastDurationNudge after repeat call = %d, want 1", s.LastDurationNudge)
	}
}

func TestApplySessionDurationNudgesCrossesMultipleMilestones(t *testing.T) {
	s := state.New("s1")
	s.SessionStartedAt = 0
	applySessionDurationNudges(s, 0) // first call only stamps SessionStartedAt... but it's already nonzero below

	s.SessionStartedAt = 1
	applySessionDurationNudges(s, 1+10800)
	if s.LastDurationNudge != 3 {
		t.Fatalf("LastDurationNudge = %d, want 3", s.LastDurationNudge)
	}
}

func TestTrackNeverPanicsOnEmptyToolInput(t *testing.T) {
	deps, _ := newTestDeps(t)
	Track(deps, event.HookEvent{SessionID: "s1", ToolName: "Edit"})
}
