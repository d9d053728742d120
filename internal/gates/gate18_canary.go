// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate18Name = "gate_18_canary"

// canaryCallBurstThreshold flags a sudden spike in total tool-call
// volume within a session as anomalous shape, not a specific tool's
// rate (that's gate 11's job).
const canaryCallBurstThreshold = 500

// Gate18Canary is a universal observer: it never blocks, but tracks
// gross tool-call-shape anomalies (very deep sessions, runaway
// counters) and surfaces them as warnings for downstream review.
func Gate18Canary() gate.Gate {
	return gate.Gate{
		Name:         gate18Name,
		Tier:         gate.Tier3,
		WatchedTools: nil, // universal
		Deps:         gate.Dependencies{Reads: []string{"total_tool_calls"}},
		Check:        checkGate18,
	}
}

func checkGate18(in gate.Input) (gate.Result, error) {
	if in.State.TotalToolCalls > 0 && in.State.TotalToolCalls%canaryCallBurstThreshold == 0 {
		return gate.Warn(gate18Name, "session has made an unusually large number of tool calls"), nil
	}
	return gate.Pass(gate18Name), nil
}
