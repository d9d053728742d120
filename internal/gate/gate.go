// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gate defines the shared Gate interface and result type
// every gate implementation returns.
package gate

import (
	"encoding/json"

	"github.com/hookguard/sentinel/internal/state"
)

// Result is the outcome of one gate's Check call.
type Result struct {
	Blocked      bool
	IsAsk        bool
	Message      string
	Severity     string // info|warn|error|critical
	GateName     string
	HookDecision string // pass|warn|block|ask
}

// Pass returns a non-blocking, non-ask passing result for name.
func Pass(name string) Result {
	return Result{GateName: name, HookDecision: "pass", Severity: "info"}
}

// Warn returns a warning result for name.
func Warn(name, message string) Result {
	return Result{GateName: name, HookDecision: "warn", Severity: "warn", Message: message}
}

// Block returns a blocking result for name.
func Block(name, message string) Result {
	return Result{GateName: name, Blocked: true, HookDecision: "block", Severity: "error", Message: message}
}

// Ask returns an ask result for name.
func Ask(name, message string) Result {
	return Result{GateName: name, IsAsk: true, HookDecision: "ask", Severity: "warn", Message: message}
}

// Input is everything a gate's Check function needs.
type Input struct {
	SessionID string
	ToolName  string
	ToolInput map[string]any
	Raw       json.RawMessage
	State     *state.State
	PostUse   bool // true when invoked from the PostToolUse surface (gate 17 only)
}

// Tier identifies a gate's safety classification.
type Tier int

const (
	TierNone Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
	Tier3    Tier = 3
)

// Dependencies declares the state keys a gate reads and writes, used
// for audit provenance.
type Dependencies struct {
	Reads  []string
	Writes []string
}

// Gate is a static, registered policy check.
type Gate struct {
	Name         string
	Tier         Tier
	WatchedTools []string // nil/empty means universal ("*")
	Deps         Dependencies
	Check        func(in Input) (Result, error)
}

// Watches reports whether the gate applies to toolName.
func (g Gate) Watches(toolName string) bool {
	if len(g.WatchedTools) == 0 {
		return true
	}
	for _, t := range g.WatchedTools {
		if t == toolName {
			return true
		}
	}
	return false
}
