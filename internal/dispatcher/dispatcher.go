// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatcher implements the PreToolUse enforcer: the
// control flow that loads state, runs applicable gates in
// Q-router-optimized order, and decides pass/warn/block/ask.
package dispatcher

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/breaker"
	"github.com/hookguard/sentinel/internal/cache"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/gate"
	"github.com/hookguard/sentinel/internal/registry"
	"github.com/hookguard/sentinel/internal/router"
	"github.com/hookguard/sentinel/internal/state"
	"github.com/hookguard/sentinel/pkg/validation"
)

// alwaysAllowed tools bypass every gate outright. WebFetch/WebSearch
// are deliberately not in this set, so they go through the normal gate
// loop (gate 17 included).
var alwaysAllowed = map[string]bool{
	"Read": true, "Glob": true, "Grep": true, "TodoWrite": true,
}

var subagentSessionPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}-`)

const slowGateThreshold = 100 * time.Millisecond

// Outcome is the dispatcher's final decision for one PreToolUse
// invocation.
type Outcome struct {
	Decision string // allow | deny | ask
	Reason   string
}

// Deps bundles the collaborators the dispatcher needs; callers
// construct these once per process.
type Deps struct {
	Store         *state.Store
	Audit         *audit.Log
	Breaker       *breaker.GateBreaker
	Router        *router.Router
	Registry      *registry.Registry
	Cache         *cache.Cache
	Effectiveness *effectiveness.Store
}

// Dispatch runs the full PreToolUse algorithm for one event.
func Dispatch(d Deps, evt event.HookEvent) (Outcome, error) {
	var toolInput map[string]any
	if len(evt.ToolInput) > 0 {
		if err := json.Unmarshal(evt.ToolInput, &toolInput); err != nil {
			return Outcome{Decision: "deny", Reason: "malformed tool_input"}, nil
		}
	}
	if evt.ToolName == "" {
		return Outcome{Decision: "deny", Reason: "missing tool_name"}, nil
	}
	if err := validation.ValidateSessionID(evt.SessionID); err != nil {
		return Outcome{Decision: "deny", Reason: "invalid session id"}, nil
	}
	if isWriteLike(evt.ToolName) && len(toolInput) == 0 {
		return Outcome{Decision: "deny", Reason: "empty tool_input for a write-like tool"}, nil
	}

	// Step 1: load state; security_profile overlay comes from the
	// registry's per-gate override documents, consulted at Check time.
	s, err := d.Store.Load(evt.SessionID)
	if err != nil {
		return Outcome{Decision: "allow"}, nil // state-store failure fails open outside Tier-1
	}

	// Step 2: subagent-pattern session ids seen for the first time
	// get their memory-timestamp sideband refreshed.
	if subagentSessionPattern.MatchString(evt.SessionID) && s.MemoryLastQueried == 0 {
		_ = d.Store.WriteSideband(evt.SessionID, map[string]any{"memory_last_queried": float64(time.Now().Unix())})
	}

	// Step 3: ALWAYS_ALLOWED bypass (WebFetch/WebSearch are not in the
	// set, so gate 17 still runs against them below).
	if alwaysAllowed[evt.ToolName] {
		d.Store.Save(s, evt.SessionID)
		return Outcome{Decision: "allow"}, nil
	}

	// Step 4: applicable gates, reordered by the Q-router.
	applicable := d.Registry.ApplicableFor(evt.ToolName)
	names := make([]string, 0, len(applicable))
	byName := map[string]gate.Gate{}
	for _, g := range applicable {
		names = append(names, g.Name)
		byName[g.Name] = g
	}
	ordered := d.Router.GetOptimalGateOrder(evt.ToolName, names)

	in := gate.Input{
		SessionID: evt.SessionID,
		ToolName:  evt.ToolName,
		ToolInput: toolInput,
		Raw:       evt.ToolInput,
		State:     s,
	}

	outcome := Outcome{Decision: "allow"}
	for _, name := range ordered {
		g := byName[name]

		if d.Registry.ProfileMode(name) == "disabled" {
			continue
		}
		if d.Breaker.ShouldSkipGate(name) {
			continue
		}

		key := cache.Key(name, evt.ToolName, toolInput)
		if cached, ok := d.Cache.Get(key); ok {
			blocked, message := demoteIfWarnProfile(d.Registry, g, cached.Blocked, cached.Message)
			recordResult(d, s, evt, toolInput, name, blocked, cached.IsAsk, message, cached.Severity, &outcome)
			if outcome.Decision != "allow" {
				break
			}
			continue
		}

		start := time.Now()
		result, panicked := runGuarded(g, in)
		elapsed := time.Since(start)

		d.Breaker.RecordGateResult(name, !panicked)
		d.Router.RecordTiming(name, evt.ToolName, float64(elapsed.Milliseconds()))
		if elapsed > slowGateThreshold {
			d.Audit.Log(name, evt.ToolName, audit.DecisionSlow, fmt.Sprintf("took %s", elapsed), evt.SessionID, nil, audit.SeverityWarn, pathFromInput(toolInput), "")
		}

		if panicked {
			d.Audit.Log(name, evt.ToolName, audit.DecisionCrash, "gate panicked", evt.SessionID, nil, audit.SeverityCritical, "", "")
			d.Router.Update(name, evt.ToolName, false)
			if g.Tier == gate.Tier1 {
				// Tier-1 safety gates fail closed on a crash.
				outcome = Outcome{Decision: "deny", Reason: name + " crashed; tier-1 gates fail closed"}
				break
			}
			continue
		}

		d.Cache.Store(key, cache.Result{
			Blocked: result.Blocked, IsAsk: result.IsAsk, Message: result.Message,
			Severity: result.Severity, GateName: result.GateName, HookDecision: result.HookDecision,
		})

		acted := result.Blocked || result.IsAsk
		d.Router.Update(name, evt.ToolName, acted)

		blocked, message := demoteIfWarnProfile(d.Registry, g, result.Blocked, result.Message)
		recordResult(d, s, evt, toolInput, name, blocked, result.IsAsk, message, result.Severity, &outcome)
		if outcome.Decision != "allow" {
			break
		}
	}

	d.Router.Flush()
	d.Breaker.Flush()
	d.Store.Save(s, evt.SessionID)
	return outcome, nil
}

// demoteIfWarnProfile downgrades a non-Tier-1 block to a warn when the
// gate's registry override sets profile_mode to "warn": the tool call
// proceeds, but the decision is still logged (as a warn) and the
// operator gets a "[profile:downgraded]" marker distinguishing it from
// a gate that genuinely passed. Tier-1 safety gates are never demoted.
func demoteIfWarnProfile(reg *registry.Registry, g gate.Gate, blocked bool, message string) (bool, string) {
	if blocked && g.Tier != gate.Tier1 && reg.ProfileMode(g.Name) == "warn" {
		return false, "[profile:downgraded] " + message
	}
	return blocked, message
}

func recordResult(d Deps, s *state.State, evt event.HookEvent, toolInput map[string]any, gateName string, blocked, isAsk bool, message, severity string, outcome *Outcome) {
	decision := audit.DecisionPass
	switch {
	case blocked:
		decision = audit.DecisionBlock
	case isAsk:
		decision = audit.DecisionAsk
	case message != "":
		decision = audit.DecisionWarn
	}
	if decision != audit.DecisionPass {
		d.Audit.Log(gateName, evt.ToolName, decision, message, evt.SessionID, nil, severity, pathFromInput(toolInput), "")
	}

	switch {
	case blocked:
		outcome.Decision = "deny"
		outcome.Reason = message
		s.GateBlockOutcomes = append(s.GateBlockOutcomes, state.GateBlockOutcome{
			Gate: gateName, Tool: evt.ToolName, BlockedAt: float64(time.Now().Unix()),
		})
		d.Effectiveness.Increment(gateName, "blocks")
	case isAsk:
		outcome.Decision = "ask"
		outcome.Reason = message
	}
}

func runGuarded(g gate.Gate, in gate.Input) (result gate.Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			result = gate.Result{GateName: g.Name}
		}
	}()
	res, err := g.Check(in)
	if err != nil {
		return gate.Result{GateName: g.Name}, true
	}
	return res, false
}

func isWriteLike(tool string) bool {
	switch tool {
	case "Edit", "Write", "Bash", "NotebookEdit":
		return true
	}
	return false
}

func pathFromInput(input map[string]any) string {
	if input == nil {
		return ""
	}
	if v, ok := input["file_path"].(string); ok {
		return v
	}
	return ""
}
