// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hookguard/sentinel/internal/fsutil"
	"github.com/hookguard/sentinel/internal/gate"
	"github.com/hookguard/sentinel/pkg/validation"
)

const gate13Name = "gate_13_workspace_isolation"

// fileClaimsDoc is the shared .file_claims.json document:
// path -> claiming session id.
type fileClaimsDoc map[string]string

// Gate13WorkspaceIsolation requires that a write target is not
// claimed by a different concurrently-running session.
func Gate13WorkspaceIsolation() gate.Gate {
	return gate.Gate{
		Name:         gate13Name,
		Tier:         gate.Tier3,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{},
		Check:        checkGate13,
	}
}

func checkGate13(in gate.Input) (gate.Result, error) {
	path := pathField(in)
	if path == "" {
		return gate.Pass(gate13Name), nil
	}
	if err := validation.ValidateWorkspacePath(path); err != nil {
		return gate.Block(gate13Name, "rejected path traversal attempt in write target"), nil
	}
	clean := filepath.Clean(path)
	claimsPath := filepath.Join(filepath.Dir(clean), ".file_claims.json")

	claims := readFileClaims(claimsPath)
	if owner, ok := claims[clean]; ok && owner != in.SessionID {
		return gate.Block(gate13Name, "file is claimed by another active session"), nil
	}
	claims[clean] = in.SessionID
	writeFileClaims(claimsPath, claims)
	return gate.Pass(gate13Name), nil
}

func readFileClaims(path string) fileClaimsDoc {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileClaimsDoc{}
	}
	var doc fileClaimsDoc
	if json.Unmarshal(data, &doc) != nil {
		return fileClaimsDoc{}
	}
	return doc
}

func writeFileClaims(path string, doc fileClaimsDoc) {
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	_ = fsutil.AtomicWrite(path, data, 0o644)
}
