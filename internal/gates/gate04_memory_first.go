// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"time"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate04Name = "gate_04_memory_first"

const memoryFreshness = 15 * time.Minute

// Gate04MemoryFirst requires a recent memory-tool query before
// Edit/Write/NotebookEdit/Task.
func Gate04MemoryFirst() gate.Gate {
	return gate.Gate{
		Name:         gate04Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit", "Task"},
		Deps:         gate.Dependencies{Reads: []string{"memory_last_queried"}},
		Check:        checkGate04,
	}
}

func checkGate04(in gate.Input) (gate.Result, error) {
	if in.State.MemoryLastQueried == 0 {
		return gate.Warn(gate04Name, "no memory query recorded this session yet"), nil
	}
	age := time.Since(epochToTime(in.State.MemoryLastQueried))
	if age > memoryFreshness {
		return gate.Warn(gate04Name, "memory was queried too long ago for this edit"), nil
	}
	return gate.Pass(gate04Name), nil
}
