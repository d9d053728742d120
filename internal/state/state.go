// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package state implements the per-session state document: load,
// migrate, validate, and atomically save.
package state

// CurrentVersion is the schema version new documents are written at.
const CurrentVersion = 3

// SubagentRecord is one entry in the subagent token-accounting history.
type SubagentRecord struct {
	AgentID string  `json:"agent_id"`
	Tokens  int     `json:"tokens"`
	EndedAt float64 `json:"ended_at"`
}

// SkillInvocation records one Skill-tool use.
type SkillInvocation struct {
	Name    string  `json:"name"`
	At      float64 `json:"at"`
}

// StrategyOutcome tracks a causal-chain strategy's recent success record.
type StrategyOutcome struct {
	SuccessCount int     `json:"success_count"`
	LastSuccess  float64 `json:"last_success"`
}

// ToolStat is a per-tool call counter kept for dashboard parity with
// the capped ToolCallCounts map.
type ToolStat struct {
	Count int `json:"count"`
}

// GateBlockOutcome records a PreToolUse block pending PostToolUse
// resolution into "prevented" or "override".
type GateBlockOutcome struct {
	Gate      string  `json:"gate"`
	Tool      string  `json:"tool"`
	FilePath  string  `json:"file_path,omitempty"`
	BlockedAt float64 `json:"blocked_at"`
	Outcome   string  `json:"outcome,omitempty"` // "", "prevented", "override"
}

// State is the full per-session document. Field names mirror the
// original Python implementation's keys so migrations and gate
// contracts can be grounded directly on it.
type State struct {
	Version int `json:"version"`

	// File history.
	FilesRead          []string       `json:"files_read"`
	FilesEdited        []string       `json:"files_edited"`
	PendingVerification []string      `json:"pending_verification"`
	VerifiedFixes      []string       `json:"verified_fixes"`
	VerificationScores map[string]int `json:"verification_scores"`

	// Test-run facts.
	LastTestRun         float64 `json:"last_test_run,omitempty"`
	LastTestPassed      bool    `json:"last_test_passed"`
	LastTestCommand     string  `json:"last_test_command,omitempty"`
	LastTestExitCode    int     `json:"last_test_exit_code"`
	SessionTestBaseline bool    `json:"session_test_baseline"`
	RecentTestFailure   *string `json:"recent_test_failure"`

	// Error tracking.
	UnloggedErrors     []string       `json:"unlogged_errors"`
	ErrorPatternCounts map[string]int `json:"error_pattern_counts"`
	FixingError        bool           `json:"fixing_error"`
	FixingErrorSince   float64        `json:"fixing_error_since,omitempty"`

	// Causal chain.
	CurrentStrategyID      string                     `json:"current_strategy_id,omitempty"`
	CurrentErrorSignature  string                     `json:"current_error_signature,omitempty"`
	PendingChainIDs        []string                   `json:"pending_chain_ids"`
	ActiveBans             map[string]int             `json:"active_bans"` // strategy_id -> fail_count
	SuccessfulStrategies   map[string]StrategyOutcome `json:"successful_strategies"`

	// Rate-limit window: tool -> sorted call timestamps within window.
	RateWindow map[string][]float64 `json:"rate_window"`

	// Counters. Per-gate timing aggregates live in the router's own
	// JSON document (internal/router), not here: the Q-router already
	// persists count/sum/min/max per (gate, tool) pair independently of
	// the per-session state document.
	ToolCallCounts map[string]int      `json:"tool_call_counts"` // capped at 50
	ToolStats      map[string]ToolStat `json:"tool_stats"`       // capped at 50
	TotalToolCalls int                 `json:"total_tool_calls"`

	// Subagent registry.
	SessionTokenEstimate int              `json:"session_token_estimate"`
	SubagentTotalTokens  int              `json:"subagent_total_tokens"`
	SubagentHistory      []SubagentRecord `json:"subagent_history"`

	// Skill tracking.
	SkillUsage   map[string]int    `json:"skill_usage"` // capped 50
	RecentSkills []SkillInvocation `json:"recent_skills"` // capped 50

	// Edit streak / escalation counters.
	EditStreak                map[string]int `json:"edit_streak"`
	ConfidenceWarnedSignals    []string       `json:"confidence_warned_signals"`
	ConfidenceWarningsPerFile  map[string]int `json:"confidence_warnings_per_file"`
	CodeQualityWarningsPerFile map[string]int `json:"code_quality_warnings_per_file"`
	Gate6WarnCount             int            `json:"gate6_warn_count"`
	Gate12WarnCount            int            `json:"gate12_warn_count"`
	InjectionAttempts          int            `json:"injection_attempts"`

	// Timestamps.
	MemoryLastQueried    float64            `json:"memory_last_queried"`
	AnalyticsLastQueried float64            `json:"analytics_last_queried"`
	AnalyticsLastUsed    map[string]float64 `json:"analytics_last_used"`
	FixHistoryQueried    float64            `json:"fix_history_queried"`
	LastExitPlanMode     float64            `json:"last_exit_plan_mode"`

	// Gate block-outcome log (gate 13's file claims live in .file_claims.json, not here).
	GateBlockOutcomes []GateBlockOutcome `json:"gate_block_outcomes"` // capped 100

	// Model enforcement (gate 10).
	SubagentModelTier map[string]string `json:"subagent_model_tier"`

	// Mentor (advisory only).
	MentorLastVerdict      string  `json:"mentor_last_verdict,omitempty"`
	MentorScore            float64 `json:"mentor_score"`
	MentorEscalationCount  int     `json:"mentor_escalation_count"`
	MentorWarnedThisCycle  bool    `json:"mentor_warned_this_cycle"`

	// Session metadata.
	SessionStartedAt   float64 `json:"session_started_at,omitempty"`
	LastDurationNudge  int     `json:"last_duration_nudge"` // 0, 1, 2, or 3 (hours milestone reached)
	Domain             string  `json:"domain,omitempty"`
	SecurityProfile    string  `json:"security_profile,omitempty"`

	// sessionID is set by the loader from the event, never persisted.
	sessionID string `json:"-"`
}

// SessionID returns the loader-populated, non-persisted session id.
func (s *State) SessionID() string { return s.sessionID }

// New returns a zero-value state with all maps/slices initialized and
// stamped at the current schema version.
func New(sessionID string) *State {
	return &State{
		Version:                    CurrentVersion,
		FilesRead:                  []string{},
		FilesEdited:                []string{},
		PendingVerification:        []string{},
		VerifiedFixes:              []string{},
		VerificationScores:         map[string]int{},
		UnloggedErrors:             []string{},
		ErrorPatternCounts:         map[string]int{},
		PendingChainIDs:            []string{},
		ActiveBans:                 map[string]int{},
		SuccessfulStrategies:       map[string]StrategyOutcome{},
		RateWindow:                 map[string][]float64{},
		ToolCallCounts:             map[string]int{},
		ToolStats:                 map[string]ToolStat{},
		SubagentHistory:            []SubagentRecord{},
		SkillUsage:                 map[string]int{},
		RecentSkills:               []SkillInvocation{},
		EditStreak:                 map[string]int{},
		ConfidenceWarnedSignals:    []string{},
		ConfidenceWarningsPerFile:  map[string]int{},
		CodeQualityWarningsPerFile: map[string]int{},
		AnalyticsLastUsed:          map[string]float64{},
		GateBlockOutcomes:          []GateBlockOutcome{},
		SubagentModelTier:          map[string]string{},
		sessionID:                  sessionID,
	}
}
