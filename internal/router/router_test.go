// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"math"
	"path/filepath"
	"testing"
)

var tier1 = []string{"gate_01_read_before_edit", "gate_02_no_destroy", "gate_03_test_before_deploy"}

func TestValueDefaultsToNeutralPrior(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "router.json"), tier1)
	if v := r.Value("gate_16_code_quality", "Edit"); v != 0.5 {
		t.Fatalf("Value = %v, want 0.5", v)
	}
}

func TestUpdateMovesTowardActedTarget(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "router.json"), tier1)
	r.Update("gate_16_code_quality", "Edit", true)
	got := r.Value("gate_16_code_quality", "Edit")
	want := 0.5 + learningRate*(1.0-0.5)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Value after acted update = %v, want %v", got, want)
	}
}

func TestUpdateMovesTowardZeroWhenNotActed(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "router.json"), tier1)
	r.Update("gate_16_code_quality", "Edit", false)
	got := r.Value("gate_16_code_quality", "Edit")
	want := 0.5 + learningRate*(0.0-0.5)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Value after non-acted update = %v, want %v", got, want)
	}
}

func TestGetOptimalGateOrderPinsTier1First(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "router.json"), tier1)
	candidates := []string{"gate_16_code_quality", "gate_02_no_destroy", "gate_01_read_before_edit"}
	ordered := r.GetOptimalGateOrder("Edit", candidates)

	if len(ordered) != 3 {
		t.Fatalf("len(ordered) = %d", len(ordered))
	}
	if ordered[0] != "gate_01_read_before_edit" || ordered[1] != "gate_02_no_destroy" {
		t.Fatalf("tier1 gates not pinned first: %v", ordered)
	}
	if ordered[2] != "gate_16_code_quality" {
		t.Fatalf("non-tier1 gate misplaced: %v", ordered)
	}
}

func TestGetOptimalGateOrderSortsRemainderByQDescending(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "router.json"), tier1)
	r.Update("gate_14_confidence", "Edit", true)  // pushes toward 1
	r.Update("gate_15_causal_chain", "Edit", false) // pushes toward 0

	ordered := r.GetOptimalGateOrder("Edit", []string{"gate_15_causal_chain", "gate_14_confidence"})
	if ordered[0] != "gate_14_confidence" {
		t.Fatalf("expected higher-Q gate first, got %v", ordered)
	}
}

func TestFlushThenNewReloadsQTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.json")
	r1 := New(path, tier1)
	r1.Update("gate_16_code_quality", "Edit", true)
	r1.RecordTiming("gate_16_code_quality", "Edit", 12.5)
	r1.Flush()

	r2 := New(path, tier1)
	if r2.Value("gate_16_code_quality", "Edit") != r1.Value("gate_16_code_quality", "Edit") {
		t.Fatal("Q-value did not survive Flush/reload round trip")
	}
}
