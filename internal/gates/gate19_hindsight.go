// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate19Name = "gate_19_hindsight"

// hindsightRepeatThreshold is how many times the same gate's block
// must be overridden before the mentor surfaces a suggestion.
const hindsightRepeatThreshold = 3

// Gate19Hindsight is advisory-only: it reviews gate_block_outcomes for
// a pattern of repeated overrides of the same gate and warns
// suggesting the user adjust their workflow. It is never capable of
// returning blocked=true and is tier-less, so it never participates
// in Tier-1 exemption logic or the Q-router's Tier-1 pinning.
func Gate19Hindsight() gate.Gate {
	return gate.Gate{
		Name:         gate19Name,
		Tier:         gate.TierNone,
		WatchedTools: nil, // universal
		Deps:         gate.Dependencies{Reads: []string{"gate_block_outcomes"}},
		Check:        checkGate19,
	}
}

func checkGate19(in gate.Input) (gate.Result, error) {
	overridesByGate := map[string]int{}
	for _, outcome := range in.State.GateBlockOutcomes {
		if outcome.Outcome == "override" {
			overridesByGate[outcome.Gate]++
		}
	}
	for name, count := range overridesByGate {
		if count >= hindsightRepeatThreshold {
			return gate.Warn(gate19Name, "repeatedly overriding "+name+" this session; consider adjusting your workflow instead"), nil
		}
	}
	return gate.Pass(gate19Name), nil
}
