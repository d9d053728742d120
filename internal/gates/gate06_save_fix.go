// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate06Name = "gate_06_save_fix"

// gate6BlockThreshold is the fixed graduated-escalation threshold:
// warn on attempts 1-2, block from the 3rd. gate12_warn_count (the
// plan-mode save companion) shares this same escalation path.
const gate6BlockThreshold = 3

// Gate06SaveFix requires a remember_this call after a verified fix or
// a plan-mode exit, escalating warn to block.
func Gate06SaveFix() gate.Gate {
	return gate.Gate{
		Name:         gate06Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit", "Task"},
		Deps: gate.Dependencies{
			Reads:  []string{"last_exit_plan_mode", "memory_last_queried", "verified_fixes", "gate6_warn_count", "gate12_warn_count"},
			Writes: []string{"gate6_warn_count"},
		},
		Check: checkGate06,
	}
}

func checkGate06(in gate.Input) (gate.Result, error) {
	s := in.State
	noSaveSincePlanExit := s.LastExitPlanMode > 0 && s.LastExitPlanMode > s.MemoryLastQueried
	noSaveSinceVerifiedFix := len(s.VerifiedFixes) > 0 && s.MemoryLastQueried == 0

	if !noSaveSincePlanExit && !noSaveSinceVerifiedFix {
		return gate.Pass(gate06Name), nil
	}

	combined := s.Gate6WarnCount + s.Gate12WarnCount
	if combined+1 >= gate6BlockThreshold {
		s.Gate6WarnCount++
		return gate.Block(gate06Name, "fix or plan must be saved with remember_this before continuing"), nil
	}
	s.Gate6WarnCount++
	return gate.Warn(gate06Name, "consider saving this fix or plan with remember_this"), nil
}
