// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package breaker implements two circuit breaker flavors: a
// gate-specific breaker tracking crash timestamps per gate (with a
// hard Tier-1 exemption), and a general-purpose service breaker for
// the memory-worker UDS call, grounded on the same state machine.
package breaker

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// GateState is one gate's circuit state.
type GateState string

const (
	Closed   GateState = "closed"
	Open     GateState = "open"
	HalfOpen GateState = "half_open"
)

const (
	crashThreshold = 3
	crashWindow    = 300 * time.Second
	cooldown       = 60 * time.Second
)

// tier1 gates always run regardless of persisted breaker state.
var tier1 = map[string]bool{
	"gate_01_read_before_edit":   true,
	"gate_02_no_destroy":         true,
	"gate_03_test_before_deploy": true,
}

type gateRecord struct {
	State          GateState   `json:"state"`
	CrashTimestamps []time.Time `json:"crash_timestamps"`
	OpenedAt        time.Time   `json:"opened_at"`
}

// GateBreaker persists per-gate circuit state under a single JSON
// file. Persistence is best-effort: on I/O error the breaker reports
// closed rather than fail the invocation.
type GateBreaker struct {
	mu    sync.Mutex
	path  string
	gates map[string]*gateRecord
}

// NewGateBreaker loads (or initializes) breaker state from path.
func NewGateBreaker(path string) *GateBreaker {
	b := &GateBreaker{path: path, gates: map[string]*gateRecord{}}
	data, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(data, &b.gates)
	}
	return b
}

func (b *GateBreaker) record(name string) *gateRecord {
	r, ok := b.gates[name]
	if !ok {
		r = &gateRecord{State: Closed}
		b.gates[name] = r
	}
	return r
}

// ShouldSkipGate reports whether name should be skipped this
// invocation. Tier-1 gates always return false, independent of
// persisted state.
func (b *GateBreaker) ShouldSkipGate(name string) bool {
	if tier1[name] {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.record(name)
	now := time.Now()
	switch r.State {
	case Open:
		if now.Sub(r.OpenedAt) >= cooldown {
			r.State = HalfOpen
		}
	}
	return r.State == Open
}

// RecordGateResult records whether a gate's Check call succeeded
// (true = no panic/crash) or crashed (false).
func (b *GateBreaker) RecordGateResult(name string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.record(name)
	now := time.Now()

	if success {
		if r.State == HalfOpen {
			r.State = Closed
			r.CrashTimestamps = nil
		}
		return
	}

	// crash
	if r.State == HalfOpen {
		r.State = Open
		r.OpenedAt = now
		return
	}

	cutoff := now.Add(-crashWindow)
	kept := r.CrashTimestamps[:0:0]
	for _, t := range r.CrashTimestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	r.CrashTimestamps = kept

	if len(r.CrashTimestamps) >= crashThreshold && !tier1[name] {
		r.State = Open
		r.OpenedAt = now
	}
}

// Flush persists breaker state. Failures are swallowed.
func (b *GateBreaker) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := json.Marshal(b.gates)
	if err != nil {
		return
	}
	_ = os.WriteFile(b.path, data, 0o644)
}

// State returns the current reported state of a gate (for
// diagnostics and testing).
func (b *GateBreaker) State(name string) GateState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(name).State
}
