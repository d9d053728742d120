// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package event defines the host JSON protocol shared by the three
// sentinel executables (PreToolUse, PostToolUse, SessionEnd).
package event

import (
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"
)

// HookEvent is the JSON document the host process writes to stdin
// for every invocation, regardless of surface.
type HookEvent struct {
	SessionID      string          `json:"session_id" validate:"required"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	CWD            string          `json:"cwd,omitempty"`
	HookEventName  string          `json:"hook_event_name" validate:"required"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse   json.RawMessage `json:"tool_response,omitempty"`
}

var (
	eventValidate     *validator.Validate
	eventValidateOnce sync.Once
)

// Validate checks the event against its required-field tags. The
// dispatcher and tracker apply their own domain-specific checks on top
// of this (e.g. ValidateSessionID's filename-safety rules); this pass
// only catches a host protocol violation: a hook event missing fields
// every surface depends on.
func (e HookEvent) Validate() error {
	eventValidateOnce.Do(func() { eventValidate = validator.New() })
	return eventValidate.Struct(e)
}

// Decision is the structured JSON a PreToolUse invocation may write to
// stdout. Its absence (or Decision == "") means allow.
type Decision struct {
	HookSpecificOutput DecisionPayload `json:"hookSpecificOutput"`
}

// DecisionPayload carries the gate outcome understood by the host.
type DecisionPayload struct {
	HookEventName      string `json:"hookEventName"`
	PermissionDecision string `json:"permissionDecision"` // "allow" | "deny" | "ask"
	PermissionReason   string `json:"permissionDecisionReason,omitempty"`
}

// Exit codes understood by the host across all three surfaces.
const (
	ExitAllow = 0
	ExitBlock = 2
)
