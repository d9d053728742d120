// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"regexp"
	"time"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate03Name = "gate_03_test_before_deploy"

const testFreshness = 30 * time.Minute

var deployPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(kubectl|helm)\s+(apply|upgrade|rollout)\b`),
	regexp.MustCompile(`(?i)\bdocker\s+(push|deploy)\b`),
	regexp.MustCompile(`(?i)\bterraform\s+apply\b`),
	regexp.MustCompile(`(?i)\b(npm|yarn|pnpm)\s+(publish)\b`),
	regexp.MustCompile(`(?i)\bgit\s+push\s+.*\b(prod|production|release)\b`),
	regexp.MustCompile(`(?i)\bserverless\s+deploy\b`),
	regexp.MustCompile(`(?i)\bcap\s+(production|staging)\s+deploy\b`),
}

// Gate03TestBeforeDeploy requires a recent passing test run before a
// Bash command matching a deploy pattern.
func Gate03TestBeforeDeploy() gate.Gate {
	return gate.Gate{
		Name:         gate03Name,
		Tier:         gate.Tier1,
		WatchedTools: []string{"Bash"},
		Deps:         gate.Dependencies{Reads: []string{"last_test_run", "last_test_passed"}},
		Check:        checkGate03,
	}
}

func checkGate03(in gate.Input) (gate.Result, error) {
	cmd, _ := in.ToolInput["command"].(string)
	if cmd == "" {
		return gate.Pass(gate03Name), nil
	}
	isDeploy := false
	for _, p := range deployPatterns {
		if p.MatchString(cmd) {
			isDeploy = true
			break
		}
	}
	if !isDeploy {
		return gate.Pass(gate03Name), nil
	}
	if !in.State.LastTestPassed {
		return gate.Block(gate03Name, "no recent passing test run before deploy command"), nil
	}
	age := time.Since(epochToTime(in.State.LastTestRun))
	if age > testFreshness {
		return gate.Block(gate03Name, "last passing test run is stale"), nil
	}
	return gate.Pass(gate03Name), nil
}

func epochToTime(epoch float64) time.Time {
	if epoch <= 0 {
		return time.Unix(0, 0)
	}
	return time.Unix(int64(epoch), 0)
}
