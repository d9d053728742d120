// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hookguard/sentinel/internal/gate"
)

func sampleGates() []gate.Gate {
	return []gate.Gate{
		{Name: "gate_01_read_before_edit", WatchedTools: []string{"Edit"}},
		{Name: "gate_16_code_quality", WatchedTools: []string{"Edit", "Write"}},
	}
}

func TestNewRegistryWithNoOverrideDir(t *testing.T) {
	r, err := NewRegistry(sampleGates(), "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !r.Enabled("gate_16_code_quality") {
		t.Fatal("gates default to enabled with no override directory")
	}
}

func TestNewRegistryWithMissingOverrideDir(t *testing.T) {
	r, err := NewRegistry(sampleGates(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !r.Enabled("gate_16_code_quality") {
		t.Fatal("a missing override directory is not an error; gates run at defaults")
	}
}

func TestApplicableForFiltersByWatchedTool(t *testing.T) {
	r, err := NewRegistry(sampleGates(), "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	applicable := r.ApplicableFor("Write")
	if len(applicable) != 1 || applicable[0].Name != "gate_16_code_quality" {
		t.Fatalf("ApplicableFor(Write) = %+v", applicable)
	}
}

func TestOverrideDisablesNonTier1Gate(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "gate_16_code_quality.yaml", "enabled: false\n")

	r, err := NewRegistry(sampleGates(), dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Enabled("gate_16_code_quality") {
		t.Fatal("override should have disabled gate_16_code_quality")
	}
	if applicable := r.ApplicableFor("Edit"); len(applicable) != 1 {
		t.Fatalf("ApplicableFor(Edit) should exclude the disabled gate, got %+v", applicable)
	}
}

func TestTier1OverrideDisableFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "gate_01_read_before_edit.yaml", "enabled: false\n")

	gates := append(sampleGates(), gate.Gate{Name: "gate_01_read_before_edit", WatchedTools: []string{"Edit"}})
	_, err := NewRegistry(gates, dir)
	if err != ErrTier1LoadFailed {
		t.Fatalf("NewRegistry = %v, want ErrTier1LoadFailed", err)
	}
}

func TestTier1OverrideMissingFileIsFine(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, "gate_16_code_quality.yaml", "enabled: true\n")

	r, err := NewRegistry(sampleGates(), dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !r.Enabled("gate_01_read_before_edit") {
		t.Fatal("a tier-1 gate with no override file at all runs at its compiled-in default")
	}
}

func TestTier1AlwaysEnabledEvenWithoutRegistration(t *testing.T) {
	r, err := NewRegistry(sampleGates(), "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !r.Enabled("gate_01_read_before_edit") {
		t.Fatal("Enabled must report true for any tier-1 gate name")
	}
}

func writeOverride(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write override %s: %v", name, err)
	}
}
