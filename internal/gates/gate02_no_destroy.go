// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"regexp"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate02Name = "gate_02_no_destroy"

var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-[a-z]*r[a-z]*f\b`),
	regexp.MustCompile(`(?i)\brm\s+-[a-z]*f[a-z]*r\b`),
	regexp.MustCompile(`(?i)\bgit\s+push\s+.*--force\b`),
	regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
	regexp.MustCompile(`(?i)\bmkfs\.`),
	regexp.MustCompile(`(?i)\bdd\s+if=.*of=/dev/`),
	regexp.MustCompile(`(?i):\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), // fork bomb
	regexp.MustCompile(`(?i)\bchmod\s+-R\s+777\s+/`),
	regexp.MustCompile(`(?i)\btruncate\s+-s\s*0\b`),
}

// Gate02NoDestroy forbids a curated family of destructive Bash
// commands.
func Gate02NoDestroy() gate.Gate {
	return gate.Gate{
		Name:         gate02Name,
		Tier:         gate.Tier1,
		WatchedTools: []string{"Bash"},
		Deps:         gate.Dependencies{},
		Check:        checkGate02,
	}
}

func checkGate02(in gate.Input) (gate.Result, error) {
	cmd, _ := in.ToolInput["command"].(string)
	if cmd == "" {
		return gate.Pass(gate02Name), nil
	}
	for _, p := range destructivePatterns {
		if p.MatchString(cmd) {
			return gate.Block(gate02Name, "command matches a forbidden destructive pattern"), nil
		}
	}
	return gate.Pass(gate02Name), nil
}
