// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"testing"
)

func TestLogAppendsToTrail(t *testing.T) {
	l := NewLog(t.TempDir())
	if err := l.Log("gate_16_code_quality", "Edit", DecisionWarn, "looks off", "s1", nil, SeverityWarn, "/a.go", ""); err != nil {
		t.Fatalf("Log: %v", err)
	}
	entries, err := l.GetRecentDecisions("gate_16_code_quality", 10)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Decision != DecisionWarn || entries[0].SessionID != "s1" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestGetRecentDecisionsFiltersByGateAndOrdersNewestFirst(t *testing.T) {
	l := NewLog(t.TempDir())
	_ = l.Log("gate_01_read_before_edit", "Edit", DecisionPass, "", "s1", nil, SeverityInfo, "", "")
	_ = l.Log("gate_16_code_quality", "Edit", DecisionWarn, "first", "s1", nil, SeverityWarn, "", "")
	_ = l.Log("gate_16_code_quality", "Edit", DecisionBlock, "second", "s1", nil, SeverityError, "", "")

	entries, err := l.GetRecentDecisions("gate_16_code_quality", 10)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Reason != "second" {
		t.Fatalf("entries[0].Reason = %q, want most-recent first", entries[0].Reason)
	}
}

func TestGetBlockSummaryAggregatesByGate(t *testing.T) {
	l := NewLog(t.TempDir())
	_ = l.Log("gate_02_no_destroy", "Bash", DecisionBlock, "rm -rf", "s1", nil, SeverityError, "", "")
	_ = l.Log("gate_02_no_destroy", "Bash", DecisionBlock, "rm -rf", "s1", nil, SeverityError, "", "")
	_ = l.Log("gate_16_code_quality", "Edit", DecisionWarn, "hardcoded secret", "s1", nil, SeverityWarn, "", "")

	summary, err := l.GetBlockSummary(24)
	if err != nil {
		t.Fatalf("GetBlockSummary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("len(summary) = %d, want 2", len(summary))
	}
	byGate := map[string]BlockSummary{}
	for _, s := range summary {
		byGate[s.Gate] = s
	}
	if byGate["gate_02_no_destroy"].Blocks != 2 {
		t.Fatalf("Blocks = %d, want 2", byGate["gate_02_no_destroy"].Blocks)
	}
	if byGate["gate_16_code_quality"].Warns != 1 {
		t.Fatalf("Warns = %d, want 1", byGate["gate_16_code_quality"].Warns)
	}
}

func TestGetRecentDecisionsOnEmptyLogReturnsNoEntries(t *testing.T) {
	l := NewLog(t.TempDir())
	entries, err := l.GetRecentDecisions("gate_16_code_quality", 10)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries on a fresh log, got %d", len(entries))
	}
}

func TestCompactAuditLogsKeepsOneEntryPerKey(t *testing.T) {
	l := NewLog(t.TempDir())
	_ = l.Log("gate_16_code_quality", "Edit", DecisionWarn, "first", "s1", nil, SeverityWarn, "", "")
	_ = l.Log("gate_16_code_quality", "Edit", DecisionPass, "second", "s1", nil, SeverityInfo, "", "")

	removed, err := l.CompactAuditLogs()
	if err != nil {
		t.Fatalf("CompactAuditLogs: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	entries, err := l.GetRecentDecisions("gate_16_code_quality", 10)
	if err != nil {
		t.Fatalf("GetRecentDecisions after compact: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) after compact = %d, want 1", len(entries))
	}
}
