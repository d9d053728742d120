// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate14Name = "gate_14_confidence"

// gate14BlockThreshold: warn up to 2 times per file, block on the 3rd
// risky edit to the same file without new verification evidence.
const gate14BlockThreshold = 3

// Gate14Confidence is a composite check before risky edits: a long
// edit streak on a file without an intervening verification run is
// treated as low confidence and escalates per-file.
func Gate14Confidence() gate.Gate {
	return gate.Gate{
		Name:         gate14Name,
		Tier:         gate.Tier3,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps: gate.Dependencies{
			Reads:  []string{"edit_streak", "confidence_warnings_per_file"},
			Writes: []string{"confidence_warnings_per_file"},
		},
		Check: checkGate14,
	}
}

const riskyEditStreak = 3

func checkGate14(in gate.Input) (gate.Result, error) {
	path := pathField(in)
	if path == "" {
		return gate.Pass(gate14Name), nil
	}
	s := in.State
	if s.EditStreak[path] < riskyEditStreak {
		return gate.Pass(gate14Name), nil
	}

	warned := s.ConfidenceWarningsPerFile[path]
	if warned+1 >= gate14BlockThreshold {
		s.ConfidenceWarningsPerFile[path] = warned + 1
		return gate.Block(gate14Name, "repeated edits to this file without new verification evidence"), nil
	}
	s.ConfidenceWarningsPerFile[path] = warned + 1
	return gate.Warn(gate14Name, "several consecutive edits to this file without re-verifying"), nil
}
