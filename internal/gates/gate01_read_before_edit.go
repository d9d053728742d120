// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"path/filepath"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate01Name = "gate_01_read_before_edit"

// Gate01ReadBeforeEdit requires that the target path of an
// Edit/Write/NotebookEdit was previously read this session.
func Gate01ReadBeforeEdit() gate.Gate {
	return gate.Gate{
		Name:         gate01Name,
		Tier:         gate.Tier1,
		WatchedTools: []string{"Edit", "Write", "NotebookEdit"},
		Deps:         gate.Dependencies{Reads: []string{"files_read"}},
		Check:        checkGate01,
	}
}

func checkGate01(in gate.Input) (gate.Result, error) {
	path := pathField(in)
	if path == "" {
		return gate.Pass(gate01Name), nil
	}
	clean := filepath.Clean(path)
	for _, p := range in.State.FilesRead {
		if p == clean {
			return gate.Pass(gate01Name), nil
		}
	}
	return gate.Block(gate01Name, "target file must be read before it is edited: "+clean), nil
}

func pathField(in gate.Input) string {
	if v, ok := in.ToolInput["file_path"].(string); ok {
		return v
	}
	if v, ok := in.ToolInput["notebook_path"].(string); ok {
		return v
	}
	return ""
}
