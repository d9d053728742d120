// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry holds the static gate list, the tool-applicability
// map, the Tier-1 safety set, and an fsnotify-backed override loader
// that lets an operator flip a gate's enabled/profile-mode flag or
// substitute its pattern table without a new build.
package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hookguard/sentinel/internal/gate"
)

// ErrTier1LoadFailed is returned when a Tier-1 gate's override file
// cannot be read or parsed, or disables the gate; a Tier-1 gate with no
// override file at all loads normally. The enforcer maps this to a block
// exit: if we cannot confirm the safety gates are configured
// correctly, nothing proceeds.
var ErrTier1LoadFailed = errors.New("registry: tier-1 gate overrides missing or invalid")

// TIER1SafetyGates names the three gates that can never be skipped by
// the circuit breaker or disabled by an override file.
var TIER1SafetyGates = []string{
	"gate_01_read_before_edit",
	"gate_02_no_destroy",
	"gate_03_test_before_deploy",
}

// Override is one gate's override document, as loaded from
// <overrides>/<gate_name>.yaml.
type Override struct {
	Enabled      *bool             `yaml:"enabled"`
	ProfileMode  string            `yaml:"profile_mode"`
	Patterns     map[string]string `yaml:"patterns"`
}

// Registry holds the registered gates in canonical priority order and
// any loaded overrides.
type Registry struct {
	gates     []gate.Gate
	byName    map[string]*gate.Gate
	overrides map[string]Override
	mu        sync.RWMutex
}

// NewRegistry constructs a registry from gates in canonical order,
// then attempts to load override files from overrideDir (if set).
// If overrideDir is non-empty but the Tier-1 overrides cannot be
// parsed, NewRegistry returns ErrTier1LoadFailed.
func NewRegistry(gates []gate.Gate, overrideDir string) (*Registry, error) {
	r := &Registry{
		gates:     gates,
		byName:    map[string]*gate.Gate{},
		overrides: map[string]Override{},
	}
	for i := range gates {
		r.byName[gates[i].Name] = &gates[i]
	}

	if overrideDir == "" {
		return r, nil
	}
	if err := r.loadOverrides(overrideDir); err != nil {
		return nil, err
	}
	return r, nil
}

// loadOverrides polls fsnotify's non-blocking event channel once (the
// registry is constructed fresh every invocation, so there is no
// long-lived background watch; this mirrors the original
// implementation's RELOAD_CHECK_INTERVAL-gated mtime check, adapted to
// fsnotify's event model) and then reads every *.yaml file present.
func (r *Registry) loadOverrides(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		_ = watcher.Add(dir)
		select {
		case <-watcher.Events:
		default:
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// No override directory at all is fine: gates run at
			// their compiled-in defaults.
			return r.validateTier1(nil)
		}
		return err
	}

	loaded := map[string]Override{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".yaml")]
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			if isTier1(name) {
				return ErrTier1LoadFailed
			}
			continue
		}
		var ov Override
		if err := yaml.Unmarshal(data, &ov); err != nil {
			if isTier1(name) {
				return ErrTier1LoadFailed
			}
			continue
		}
		loaded[name] = ov
	}

	if err := r.validateTier1(loaded); err != nil {
		return err
	}

	r.mu.Lock()
	r.overrides = loaded
	r.mu.Unlock()
	return nil
}

// validateTier1 confirms that if any Tier-1 override file is present,
// it did not fail to parse and does not disable the gate. Tier-1
// gates that have no override file at all are fine: they run at their
// compiled-in default of enabled.
func (r *Registry) validateTier1(loaded map[string]Override) error {
	for _, name := range TIER1SafetyGates {
		ov, ok := loaded[name]
		if !ok {
			continue
		}
		if ov.Enabled != nil && !*ov.Enabled {
			return ErrTier1LoadFailed
		}
	}
	return nil
}

func isTier1(name string) bool {
	for _, t := range TIER1SafetyGates {
		if t == name {
			return true
		}
	}
	return false
}

// Enabled reports whether a gate is currently enabled (compiled-in
// default true, overridable for non-Tier-1 gates).
func (r *Registry) Enabled(name string) bool {
	if isTier1(name) {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ov, ok := r.overrides[name]; ok && ov.Enabled != nil {
		return *ov.Enabled
	}
	return true
}

// ProfileMode returns the override's profile_mode value for a gate,
// or "" if none is set.
func (r *Registry) ProfileMode(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overrides[name].ProfileMode
}

// Gates returns the registered gates in canonical priority order.
func (r *Registry) Gates() []gate.Gate {
	return r.gates
}

// ApplicableFor returns the gates that watch toolName, in canonical
// order, excluding any disabled by override.
func (r *Registry) ApplicableFor(toolName string) []gate.Gate {
	var out []gate.Gate
	for _, g := range r.gates {
		if !r.Enabled(g.Name) {
			continue
		}
		if g.Watches(toolName) {
			out = append(out, g)
		}
	}
	return out
}
