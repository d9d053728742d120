// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"strings"
	"time"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate07Name = "gate_07_critical_file_guard"

var sensitivePathFragments = []string{
	"/.env", "secrets", "credentials", "id_rsa", ".pem", ".key",
	"/migrations/", "schema.sql", "docker-compose", "/ci/", "/.github/workflows/",
	"package-lock.json", "go.sum", "Cargo.lock",
}

// Gate07CriticalFileGuard requires a recent memory query before
// writing to a sensitive path.
func Gate07CriticalFileGuard() gate.Gate {
	return gate.Gate{
		Name:         gate07Name,
		Tier:         gate.Tier2,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Reads: []string{"memory_last_queried"}},
		Check:        checkGate07,
	}
}

func checkGate07(in gate.Input) (gate.Result, error) {
	path := strings.ToLower(pathField(in))
	if path == "" {
		return gate.Pass(gate07Name), nil
	}
	sensitive := false
	for _, frag := range sensitivePathFragments {
		if strings.Contains(path, frag) {
			sensitive = true
			break
		}
	}
	if !sensitive {
		return gate.Pass(gate07Name), nil
	}
	if in.State.MemoryLastQueried == 0 || time.Since(epochToTime(in.State.MemoryLastQueried)) > memoryFreshness {
		return gate.Warn(gate07Name, "writing to a sensitive path without a recent memory query"), nil
	}
	return gate.Pass(gate07Name), nil
}
