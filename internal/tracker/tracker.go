// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tracker implements the PostToolUse state-evolution pass:
// it always exits pass, merging sideband mutations, updating file
// history, verification scoring, causal-chain bookkeeping, and
// resolving pending gate-block outcomes.
package tracker

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/gate"
	"github.com/hookguard/sentinel/internal/gates"
	"github.com/hookguard/sentinel/internal/state"
)

const (
	blockOutcomeWindow = 30 * time.Minute
	fixingErrorExpiry  = 30 * time.Minute
)

// Deps bundles the tracker's collaborators.
type Deps struct {
	Store         *state.Store
	Audit         *audit.Log
	Effectiveness *effectiveness.Store
}

// Track runs the full PostToolUse mutation pass for one event. It
// never returns an error that should block the host: all failures are
// absorbed so the surface always exits pass.
func Track(d Deps, evt event.HookEvent) {
	s, err := d.Store.Load(evt.SessionID)
	if err != nil {
		return
	}

	if sideband, _ := d.Store.ReadAndClearSideband(evt.SessionID); sideband != nil {
		mergeSideband(s, sideband)
	}

	var toolInput map[string]any
	if len(evt.ToolInput) > 0 {
		_ = json.Unmarshal(evt.ToolInput, &toolInput)
	}

	now := time.Now()
	nowEpoch := float64(now.Unix())

	s.TotalToolCalls++
	st := s.ToolStats[evt.ToolName]
	st.Count++
	s.ToolStats[evt.ToolName] = st
	s.ToolCallCounts[evt.ToolName]++
	s.SessionTokenEstimate += estimateTokens(evt.ToolName, toolInput)

	expireFixingError(s, nowEpoch)
	resolveGateBlockOutcomes(d, s, evt, nowEpoch)

	switch evt.ToolName {
	case "Read":
		trackRead(s, toolInput)
	case "Edit", "Write", "NotebookEdit":
		trackEdit(s, toolInput, nowEpoch)
	case "Bash":
		trackBash(s, toolInput, d, evt)
	case "Skill":
		trackSkill(s, toolInput, nowEpoch)
	case "ExitPlanMode":
		s.LastExitPlanMode = nowEpoch
	case "WebFetch", "WebSearch":
		runGate17PostUse(s, evt, toolInput)
	}

	if isMemoryTool(evt.ToolName) {
		trackMemoryTool(s, evt.ToolName, toolInput, nowEpoch, d.Store, evt.SessionID)
	}
	if isCausalChainTool(evt.ToolName) {
		trackCausalChain(s, evt.ToolName, toolInput, nowEpoch)
	}

	applySessionDurationNudges(s, nowEpoch)
	d.Store.Save(s, evt.SessionID)
}

func mergeSideband(s *state.State, sideband map[string]any) {
	if v, ok := sideband["memory_last_queried"].(float64); ok && v > s.MemoryLastQueried {
		s.MemoryLastQueried = v
	}
}

// durationMilestones are the session-age thresholds, in seconds, at
// which a one-time nudge fires (1h, 2h, 3h).
var durationMilestones = [3]float64{3600, 7200, 10800}

// applySessionDurationNudges bumps LastDurationNudge past each
// milestone the session has now crossed, firing at most once per
// milestone regardless of how many tool calls land in between.
func applySessionDurationNudges(s *state.State, nowEpoch float64) {
	if s.SessionStartedAt == 0 {
		s.SessionStartedAt = nowEpoch
		return
	}
	elapsed := nowEpoch - s.SessionStartedAt
	for milestone := s.LastDurationNudge; milestone < len(durationMilestones); milestone++ {
		if elapsed < durationMilestones[milestone] {
			break
		}
		s.LastDurationNudge = milestone + 1
	}
}

func expireFixingError(s *state.State, nowEpoch float64) {
	if s.FixingError && s.FixingErrorSince > 0 && nowEpoch-s.FixingErrorSince > fixingErrorExpiry.Seconds() {
		s.FixingError = false
		s.FixingErrorSince = 0
	}
}

// resolveGateBlockOutcomes classifies pending block entries within the
// 30-minute window as "prevented" (memory/fix-history queried after
// the block) or "override" (tool call proceeded without new evidence),
// then prunes entries older than the window. Each resolution also
// bumps the gate's cumulative effectiveness counter on disk.
func resolveGateBlockOutcomes(d Deps, s *state.State, evt event.HookEvent, nowEpoch float64) {
	kept := s.GateBlockOutcomes[:0:0]
	for _, o := range s.GateBlockOutcomes {
		if nowEpoch-o.BlockedAt > blockOutcomeWindow.Seconds() {
			continue // pruned
		}
		if o.Outcome == "" && o.Tool == evt.ToolName {
			if s.MemoryLastQueried > o.BlockedAt || s.FixHistoryQueried > o.BlockedAt {
				o.Outcome = "prevented"
			} else {
				o.Outcome = "override"
			}
			field := o.Outcome
			if field == "override" {
				field = "overrides"
			}
			d.Effectiveness.Increment(o.Gate, field)
		}
		kept = append(kept, o)
	}
	s.GateBlockOutcomes = kept
}

func trackRead(s *state.State, toolInput map[string]any) {
	path, _ := toolInput["file_path"].(string)
	if path == "" {
		return
	}
	clean := filepath.Clean(path)
	for _, p := range s.FilesRead {
		if p == clean {
			return
		}
	}
	s.FilesRead = append(s.FilesRead, clean)
}

func trackEdit(s *state.State, toolInput map[string]any, nowEpoch float64) {
	var path string
	if v, ok := toolInput["file_path"].(string); ok {
		path = v
	} else if v, ok := toolInput["notebook_path"].(string); ok {
		path = v
	}
	if path == "" {
		return
	}
	clean := filepath.Clean(path)

	found := false
	for _, p := range s.FilesEdited {
		if p == clean {
			found = true
			break
		}
	}
	if !found {
		s.FilesEdited = append(s.FilesEdited, clean)
		if len(s.FilesEdited) > 200 {
			s.FilesEdited = s.FilesEdited[len(s.FilesEdited)-200:]
		}
	}

	pendingFound := false
	for _, p := range s.PendingVerification {
		if p == clean {
			pendingFound = true
			break
		}
	}
	if !pendingFound {
		s.PendingVerification = append(s.PendingVerification, clean)
	}

	s.EditStreak[clean]++
	_ = nowEpoch
}

var (
	broadTestCommands = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(go test \./\.\.\.|pytest$|npm test$|yarn test$|make test$)`),
	}
	targetedTestPattern = regexp.MustCompile(`(?i)(test_\w+\.py|::|\.test\.(js|ts|tsx))`)
	scriptRunPattern    = regexp.MustCompile(`(?i)^(python |node |go run |\./)`)
	deployLikePattern   = regexp.MustCompile(`(?i)\b(deploy|publish|release)\b`)
)

func classifyVerificationScore(command string) int {
	for _, p := range broadTestCommands {
		if p.MatchString(command) {
			return 100
		}
	}
	if targetedTestPattern.MatchString(command) {
		return 70
	}
	if scriptRunPattern.MatchString(command) {
		return 50
	}
	if deployLikePattern.MatchString(command) {
		return 10
	}
	return 30
}

// excludedVerifiedPrefixes are path prefixes that must never graduate
// into verified_fixes, even at a qualifying score: scratch output
// under a temp directory proves nothing about the real fix.
var excludedVerifiedPrefixes = []string{"/tmp/", "/var/tmp/", "/dev/"}

func hasExcludedPrefix(path string) bool {
	for _, p := range excludedVerifiedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// commandReferencesFile reports whether a targeted test command names
// path directly, matching on the full path, basename, or extensionless
// stem as a whole word so "test_a.py" doesn't match "test_ab.py".
func commandReferencesFile(cmd, path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, candidate := range []string{path, base, stem} {
		if candidate == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(candidate) + `\b`
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return true
		}
	}
	return false
}

// extractExitCode reads the tool's reported exit status from the host's
// tool_response payload, which arrives either as a JSON object or as a
// JSON-encoded string wrapping one. A missing or unparsable response is
// treated as exit 0, matching the fail-open default of the fields below.
func extractExitCode(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	if s, ok := v.(string); ok {
		var nested any
		if json.Unmarshal([]byte(s), &nested) == nil {
			v = nested
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	for _, key := range []string{"exit_code", "exitCode", "status"} {
		if n, ok := m[key].(float64); ok {
			return int(n)
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func trackBash(s *state.State, toolInput map[string]any, d Deps, evt event.HookEvent) {
	cmd, _ := toolInput["command"].(string)
	if cmd == "" {
		return
	}
	score := classifyVerificationScore(cmd)
	broad := broadTestCommands[0].MatchString(cmd)
	isTest := score >= 30 && (broad || targetedTestPattern.MatchString(cmd) || scriptRunPattern.MatchString(cmd))
	if !isTest {
		return
	}

	nowEpoch := float64(time.Now().Unix())
	s.LastTestRun = nowEpoch
	s.LastTestCommand = truncate(cmd, 200)
	s.SessionTestBaseline = true
	s.EditStreak = map[string]int{} // verification resets the per-file edit streak

	if broad {
		for _, path := range s.PendingVerification {
			s.VerificationScores[path] += score
		}
	} else {
		for _, path := range s.PendingVerification {
			if !commandReferencesFile(cmd, path) {
				continue
			}
			effective := score
			if score >= 30 {
				effective = maxInt(score, 70)
			}
			s.VerificationScores[path] += effective
		}
	}

	exitCode := extractExitCode(evt.ToolResponse)
	s.LastTestExitCode = exitCode
	s.LastTestPassed = exitCode == 0
	if s.LastTestPassed {
		promoteVerifiedFixes(s)
	} else {
		failure := cmd
		s.RecentTestFailure = &failure
		s.FixingError = true
		s.FixingErrorSince = nowEpoch
	}
}

func promoteVerifiedFixes(s *state.State) {
	var stillPending []string
	for _, path := range s.PendingVerification {
		if s.VerificationScores[path] >= 70 {
			if !hasExcludedPrefix(path) {
				found := false
				for _, v := range s.VerifiedFixes {
					if v == path {
						found = true
						break
					}
				}
				if !found {
					s.VerifiedFixes = append(s.VerifiedFixes, path)
				}
			}
			delete(s.VerificationScores, path)
		} else {
			stillPending = append(stillPending, path)
		}
	}
	s.PendingVerification = stillPending
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func trackSkill(s *state.State, toolInput map[string]any, nowEpoch float64) {
	name, _ := toolInput["skill"].(string)
	if name == "" {
		return
	}
	s.SkillUsage[name]++
	s.RecentSkills = append(s.RecentSkills, state.SkillInvocation{Name: name, At: nowEpoch})
	if len(s.RecentSkills) > 50 {
		s.RecentSkills = s.RecentSkills[len(s.RecentSkills)-50:]
	}
}

func isMemoryTool(name string) bool {
	return strings.HasPrefix(name, "mcp__memory__") || strings.HasPrefix(name, "mcp_memory_")
}

func trackMemoryTool(s *state.State, toolName string, toolInput map[string]any, nowEpoch float64, store *state.Store, sessionID string) {
	s.MemoryLastQueried = nowEpoch
	_ = store.WriteSideband(sessionID, map[string]any{"memory_last_queried": nowEpoch})

	if toolName == "mcp__memory__remember_this" || toolName == "mcp_memory_remember_this" {
		if rejected, _ := toolInput["rejected"].(bool); rejected {
			return
		}
		if deduped, _ := toolInput["deduplicated"].(bool); deduped {
			return
		}
		s.Gate6WarnCount = 0
		s.Gate12WarnCount = 0
	}
}

func isCausalChainTool(name string) bool {
	switch name {
	case "mcp__causal__record_attempt", "mcp__causal__record_outcome", "mcp__causal__query_fix_history":
		return true
	}
	return false
}

func trackCausalChain(s *state.State, toolName string, toolInput map[string]any, nowEpoch float64) {
	switch toolName {
	case "mcp__causal__query_fix_history":
		s.FixHistoryQueried = nowEpoch
	case "mcp__causal__record_attempt":
		strategyID, _ := toolInput["strategy_id"].(string)
		if strategyID != "" {
			s.CurrentStrategyID = strategyID
		}
	case "mcp__causal__record_outcome":
		strategyID, _ := toolInput["strategy_id"].(string)
		success, _ := toolInput["success"].(bool)
		if strategyID == "" {
			return
		}
		if success {
			out := s.SuccessfulStrategies[strategyID]
			out.SuccessCount++
			out.LastSuccess = nowEpoch
			s.SuccessfulStrategies[strategyID] = out
			delete(s.ActiveBans, strategyID)
		} else {
			s.ActiveBans[strategyID]++
		}
	}
}

func runGate17PostUse(s *state.State, evt event.HookEvent, toolInput map[string]any) {
	g := gates.Gate17InjectionDefense()
	_, _ = g.Check(buildPostUseInput(s, evt, toolInput))
}

func buildPostUseInput(s *state.State, evt event.HookEvent, toolInput map[string]any) gate.Input {
	return gate.Input{
		SessionID: evt.SessionID,
		ToolName:  evt.ToolName,
		ToolInput: toolInput,
		Raw:       evt.ToolResponse,
		State:     s,
		PostUse:   true,
	}
}

// estimateTokens uses a coarse per-tool heuristic, matching the
// original's _TOKEN_ESTIMATES table.
func estimateTokens(toolName string, toolInput map[string]any) int {
	switch toolName {
	case "Read":
		return 500
	case "Edit", "Write", "NotebookEdit":
		if s, ok := toolInput["new_string"].(string); ok {
			return len(s) / 4
		}
		if s, ok := toolInput["content"].(string); ok {
			return len(s) / 4
		}
		return 100
	case "Bash":
		return 50
	case "Task":
		return 1000
	default:
		return 20
	}
}
