// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router implements the per-(gate,tool) Q-learning gate
// ordering used by the dispatcher to try the gates most likely to act
// first, plus per-gate-per-tool timing aggregates.
package router

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
)

// learningRate is fixed at 0.1, matching the original's update_qtable
// step.
const learningRate = 0.1

type timing struct {
	Count int     `json:"count"`
	SumMS float64 `json:"sum_ms"`
	MinMS float64 `json:"min_ms"`
	MaxMS float64 `json:"max_ms"`
}

// Router holds the Q-table and timing table for one invocation,
// loaded from and flushed back to a JSON file every invocation.
type Router struct {
	path    string
	mu      sync.Mutex
	q       map[string]float64 // "gate|tool" -> value in [0,1]
	timings map[string]*timing // "gate|tool" -> aggregate
	tier1   []string
}

// New loads (or initializes) a router from path, with tier1 given in
// canonical pinned order.
func New(path string, tier1 []string) *Router {
	r := &Router{path: path, q: map[string]float64{}, timings: map[string]*timing{}, tier1: tier1}
	data, err := os.ReadFile(path)
	if err != nil {
		return r
	}
	var doc struct {
		Q       map[string]float64 `json:"q"`
		Timings map[string]*timing `json:"timings"`
	}
	if json.Unmarshal(data, &doc) == nil {
		if doc.Q != nil {
			r.q = doc.Q
		}
		if doc.Timings != nil {
			r.timings = doc.Timings
		}
	}
	return r
}

func key(gate, tool string) string { return gate + "|" + tool }

// Value returns the current Q-value for (gate, tool), defaulting to
// 0.5 (neutral prior) when unseen.
func (r *Router) Value(gate, tool string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.q[key(gate, tool)]; ok {
		return v
	}
	return 0.5
}

// Update nudges the (gate, tool) value toward 1 when acted (block or
// ask), toward 0 otherwise.
func (r *Router) Update(gate, tool string, acted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(gate, tool)
	v, ok := r.q[k]
	if !ok {
		v = 0.5
	}
	target := 0.0
	if acted {
		target = 1.0
	}
	v += learningRate * (target - v)
	r.q[k] = v
}

// RecordTiming appends one gate-call duration in milliseconds.
func (r *Router) RecordTiming(gate, tool string, ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(gate, tool)
	t, ok := r.timings[k]
	if !ok {
		t = &timing{MinMS: ms, MaxMS: ms}
		r.timings[k] = t
	}
	t.Count++
	t.SumMS += ms
	if ms < t.MinMS {
		t.MinMS = ms
	}
	if ms > t.MaxMS {
		t.MaxMS = ms
	}
}

// GetOptimalGateOrder returns candidates reordered so that tier1 gates
// present in candidates come first in their canonical order, and the
// remainder is stable-sorted by descending Q-value for tool.
func (r *Router) GetOptimalGateOrder(tool string, candidates []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	inCandidates := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		inCandidates[c] = true
	}

	var ordered []string
	seen := map[string]bool{}
	for _, t := range r.tier1 {
		if inCandidates[t] {
			ordered = append(ordered, t)
			seen[t] = true
		}
	}

	var rest []string
	for _, c := range candidates {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	qOf := func(g string) float64 {
		if v, ok := r.q[key(g, tool)]; ok {
			return v
		}
		return 0.5
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return qOf(rest[i]) > qOf(rest[j])
	})
	return append(ordered, rest...)
}

// Flush persists the Q-table and timing aggregates. Failures are
// swallowed: the router is advisory, not load-bearing for safety.
func (r *Router) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := struct {
		Q       map[string]float64 `json:"q"`
		Timings map[string]*timing `json:"timings"`
	}{Q: r.q, Timings: r.timings}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	_ = os.WriteFile(r.path, data, 0o644)
}
