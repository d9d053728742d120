// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sessionend implements the SessionEnd surface: a summary of
// the session's metrics, a capture-queue flush trigger, and the
// session-count/live-state bookkeeping used by the next session.
package sessionend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/memsocket"
	"github.com/hookguard/sentinel/internal/state"
)

// Deps bundles the SessionEnd surface's collaborators. Memory is
// optional: a nil Memory client means no worker is configured for this
// invocation, and the flush notification is skipped silently.
type Deps struct {
	Store  *state.Store
	Memory *memsocket.Client
}

// Summary is the human-readable metrics block printed to stderr at
// session end, mirroring the original's "Duration / Tool Calls /
// Files Modified / Errors / Tests" report.
type Summary struct {
	DurationSeconds int
	ToolCalls       int
	FilesModified   []string
	Verified        map[string]bool
	Errors          int
	TestsRun        bool
	TestsPassed     bool
}

const maxFilesListed = 15

// BuildSummary assembles the metrics block from a loaded state
// document.
func BuildSummary(s *state.State) Summary {
	verified := make(map[string]bool, len(s.FilesEdited))
	for _, f := range s.VerifiedFixes {
		verified[f] = true
	}
	duration := 0
	if s.SessionStartedAt > 0 {
		duration = int(float64(time.Now().Unix()) - s.SessionStartedAt)
	}
	return Summary{
		DurationSeconds: duration,
		ToolCalls:       s.TotalToolCalls,
		FilesModified:   s.FilesEdited,
		Verified:        verified,
		Errors:          len(s.UnloggedErrors),
		TestsRun:        s.LastTestRun > 0,
		TestsPassed:     s.LastTestPassed,
	}
}

// Format renders the summary the way the host displays it: a short
// metrics block, files capped at 15 with verified/pending tags.
func (sm Summary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(sm.DurationSeconds))
	fmt.Fprintf(&b, "Tool Calls: %d\n", sm.ToolCalls)
	fmt.Fprintf(&b, "Errors: %d\n", sm.Errors)
	if sm.TestsRun {
		status := "failed"
		if sm.TestsPassed {
			status = "passed"
		}
		fmt.Fprintf(&b, "Tests: %s\n", status)
	}
	if len(sm.FilesModified) > 0 {
		b.WriteString("Files Modified:\n")
		shown := sm.FilesModified
		if len(shown) > maxFilesListed {
			shown = shown[:maxFilesListed]
		}
		for _, f := range shown {
			tag := "pending"
			if sm.Verified[f] {
				tag = "verified"
			}
			fmt.Fprintf(&b, "  - %s (%s)\n", f, tag)
		}
		if len(sm.FilesModified) > maxFilesListed {
			fmt.Fprintf(&b, "  ... and %d more\n", len(sm.FilesModified)-maxFilesListed)
		}
	}
	return b.String()
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// captureEntry is one observation appended to the capture queue,
// drained by an out-of-process memory worker.
type captureEntry struct {
	SessionID string  `json:"session_id"`
	At        float64 `json:"at"`
	Summary   string  `json:"summary"`
}

// End runs the SessionEnd pass: build the summary and return it
// formatted (the caller prints it), append a capture-queue observation,
// increment the session count in LIVE_STATE.json, and ask the memory
// worker to flush. It does not reset per-session state. Always succeeds
// from the host's point of view; internal errors are swallowed silently.
func End(d Deps, evt event.HookEvent, stateRoot string) string {
	s, err := d.Store.Load(evt.SessionID)
	if err != nil {
		return ""
	}
	summary := BuildSummary(s)
	formatted := summary.Format()

	appendCaptureQueue(stateRoot, evt.SessionID, formatted)
	bumpLiveStateSessionCount(stateRoot)
	notifyMemoryWorker(d.Memory)

	return formatted
}

// notifyMemoryWorker asks the out-of-process memory worker to drain
// the capture queue just written. Failures (worker not running,
// breaker open) are expected in normal operation and never surface to
// the host.
func notifyMemoryWorker(client *memsocket.Client) {
	if client == nil {
		return
	}
	_, _ = client.Call(memsocket.Request{Op: "flush"})
}

func appendCaptureQueue(stateRoot, sessionID, summary string) {
	path := filepath.Join(stateRoot, "capture_queue.jsonl")
	entry := captureEntry{SessionID: sessionID, At: float64(time.Now().Unix()), Summary: summary}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	line = append(line, '\n')
	_, _ = f.Write(line)
}

type liveState struct {
	SessionCount int `json:"session_count"`
}

func bumpLiveStateSessionCount(stateRoot string) {
	path := filepath.Join(stateRoot, "LIVE_STATE.json")
	var live liveState
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &live)
	}
	live.SessionCount++
	data, err := json.Marshal(live)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
