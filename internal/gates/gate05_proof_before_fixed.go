// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate05Name = "gate_05_proof_before_fixed"

const verificationGraduationScore = 70

// Gate05ProofBeforeFixed requires an accumulated verification score
// before an edit to a path already claimed "fixed".
func Gate05ProofBeforeFixed() gate.Gate {
	return gate.Gate{
		Name:         gate05Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Reads: []string{"pending_verification", "verification_scores"}},
		Check:        checkGate05,
	}
}

func checkGate05(in gate.Input) (gate.Result, error) {
	path := pathField(in)
	if path == "" {
		return gate.Pass(gate05Name), nil
	}
	pending := false
	for _, p := range in.State.PendingVerification {
		if p == path {
			pending = true
			break
		}
	}
	if !pending {
		return gate.Pass(gate05Name), nil
	}
	score := in.State.VerificationScores[path]
	if score < verificationGraduationScore {
		return gate.Warn(gate05Name, "file claimed fixed but has not accumulated enough verification evidence"), nil
	}
	return gate.Pass(gate05Name), nil
}
