// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command pretooluse is the PreToolUse enforcer: a short-lived process
// the host invokes once per tool call, before the tool runs. It reads
// a HookEvent from stdin, runs the applicable gates, and exits 0 to
// allow or 2 to block, writing a structured decision to stdout when it
// has an opinion.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/breaker"
	"github.com/hookguard/sentinel/internal/cache"
	"github.com/hookguard/sentinel/internal/config"
	"github.com/hookguard/sentinel/internal/dispatcher"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/gates"
	"github.com/hookguard/sentinel/internal/registry"
	"github.com/hookguard/sentinel/internal/router"
	"github.com/hookguard/sentinel/internal/state"
	"github.com/hookguard/sentinel/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.Default()

	var evt event.HookEvent
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Error("read stdin failed", "error", err)
		return event.ExitAllow // fail open: we cannot even parse the event
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		log.Warn("malformed hook event, denying", "error", err)
		return event.ExitBlock
	}
	if err := evt.Validate(); err != nil {
		log.Warn("hook event missing required fields, denying", "error", err)
		return event.ExitBlock
	}

	cfg := config.Load()

	store, err := state.NewStore(cfg.StateRoot)
	if err != nil {
		log.Error("state store init failed", "error", err)
		return event.ExitAllow
	}

	reg, err := registry.NewRegistry(gates.All(), cfg.OverrideDir)
	if err != nil {
		log.Error("tier-1 gate overrides invalid, blocking", "error", err)
		writeDecision(evt, "deny", "tier-1 safety gate configuration could not be verified")
		return event.ExitBlock
	}

	deps := dispatcher.Deps{
		Store:         store,
		Audit:         audit.NewLog(cfg.StateRoot),
		Breaker:       breaker.NewGateBreaker(cfg.StateRoot + "/gate_breaker_state.json"),
		Router:        router.New(cfg.StateRoot+"/gate_router_state.json", registry.TIER1SafetyGates),
		Registry:      reg,
		Cache:         cache.NewAt(cfg.StateRoot + "/gate_result_cache.json"),
		Effectiveness: effectiveness.New(cfg.DiskStateRoot + "/.gate_effectiveness.json"),
	}

	outcome, err := dispatcher.Dispatch(deps, evt)
	if err != nil {
		log.Error("dispatch failed, allowing", "error", err)
		return event.ExitAllow
	}

	switch outcome.Decision {
	case "deny":
		writeDecision(evt, "deny", outcome.Reason)
		return event.ExitBlock
	case "ask":
		writeDecision(evt, "ask", outcome.Reason)
		return event.ExitAllow
	default:
		return event.ExitAllow
	}
}

func writeDecision(evt event.HookEvent, decision, reason string) {
	d := event.Decision{HookSpecificOutput: event.DecisionPayload{
		HookEventName:      evt.HookEventName,
		PermissionDecision: decision,
		PermissionReason:   reason,
	}}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(d)
}
