// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate15Name = "gate_15_causal_chain"

// Gate15CausalChain requires query_fix_history after a test failure,
// before further edits.
func Gate15CausalChain() gate.Gate {
	return gate.Gate{
		Name:         gate15Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Reads: []string{"recent_test_failure", "fix_history_queried"}},
		Check:        checkGate15,
	}
}

func checkGate15(in gate.Input) (gate.Result, error) {
	s := in.State
	if s.RecentTestFailure == nil {
		return gate.Pass(gate15Name), nil
	}
	if s.FixHistoryQueried == 0 {
		return gate.Block(gate15Name, "query_fix_history must be called before editing after a test failure"), nil
	}
	return gate.Pass(gate15Name), nil
}
