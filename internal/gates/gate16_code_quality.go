// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"regexp"

	"github.com/hookguard/sentinel/internal/classify"
	"github.com/hookguard/sentinel/internal/gate"
)

// classifyEngine is loaded once at package init from the embedded
// pattern table; a load failure falls back to the inline regex
// families below so the gate still functions.
var classifyEngine, classifyEngineErr = classify.NewEngine()

const gate16Name = "gate_16_code_quality"

// gate16BlockThreshold: escalates identically to gate 14, 3
// occurrences of the same finding in the same file.
const gate16BlockThreshold = 3

var debugPrintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bconsole\.log\(`),
	regexp.MustCompile(`(?i)\bprint\(\s*["']DEBUG`),
	regexp.MustCompile(`(?i)\bfmt\.Println\(\s*"DEBUG`),
	regexp.MustCompile(`(?i)\bpdb\.set_trace\(\)`),
	regexp.MustCompile(`(?i)\bdebugger;`),
}

var bareExceptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*except\s*:\s*$`),
	regexp.MustCompile(`(?i)\bcatch\s*\(\s*\)\s*\{\s*\}`),
}

var literalSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9_\-/+=]{12,}["']`),
	regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)\bAKIA[0-9A-Z]{16}\b`),
}

// Gate16CodeQuality rejects new content with debug prints, bare
// exception handlers, or literal secrets, escalating per-file.
func Gate16CodeQuality() gate.Gate {
	return gate.Gate{
		Name:         gate16Name,
		Tier:         gate.Tier3,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Writes: []string{"code_quality_warnings_per_file"}},
		Check:        checkGate16,
	}
}

func checkGate16(in gate.Input) (gate.Result, error) {
	content := newContentField(in)
	if content == "" {
		return gate.Pass(gate16Name), nil
	}

	finding := matchesAny(content, literalSecretPatterns)
	if !finding {
		finding = matchesAny(content, debugPrintPatterns)
	}
	if !finding {
		finding = matchesAny(content, bareExceptPatterns)
	}
	if !finding && classifyEngineErr == nil {
		finding = len(classifyEngine.ScanContent(content)) > 0
	}
	if !finding {
		return gate.Pass(gate16Name), nil
	}

	path := pathField(in)
	s := in.State
	count := s.CodeQualityWarningsPerFile[path] + 1
	s.CodeQualityWarningsPerFile[path] = count
	if count >= gate16BlockThreshold {
		return gate.Block(gate16Name, "repeated code-quality finding (debug print / bare except / literal secret) in this file"), nil
	}
	return gate.Warn(gate16Name, "new content contains a debug print, bare exception handler, or literal secret"), nil
}

func matchesAny(content string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

func newContentField(in gate.Input) string {
	for _, key := range []string{"new_string", "content"} {
		if v, ok := in.ToolInput[key].(string); ok {
			return v
		}
	}
	return ""
}
