// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate09Name = "gate_09_strategy_ban"

const strategyBanFailThreshold = 3

// Gate09StrategyBan refuses edits under a strategy already banned for
// repeated failure.
func Gate09StrategyBan() gate.Gate {
	return gate.Gate{
		Name:         gate09Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Reads: []string{"active_bans", "current_strategy_id"}},
		Check:        checkGate09,
	}
}

func checkGate09(in gate.Input) (gate.Result, error) {
	strategy := in.State.CurrentStrategyID
	if strategy == "" {
		return gate.Pass(gate09Name), nil
	}
	failCount, banned := in.State.ActiveBans[strategy]
	if banned && failCount >= strategyBanFailThreshold {
		return gate.Block(gate09Name, "strategy has failed repeatedly and is currently banned: "+strategy), nil
	}
	return gate.Pass(gate09Name), nil
}
