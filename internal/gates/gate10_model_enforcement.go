// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import "github.com/hookguard/sentinel/internal/gate"

const gate10Name = "gate_10_model_enforcement"

// allowedSubagentModelTier constrains which model tier a subagent_type
// may request; "*" permits any.
var allowedSubagentModelTier = map[string]string{
	"general-purpose": "*",
	"code-reviewer":   "*",
}

// Gate10ModelEnforcement tracks and constrains the model tier Task
// invocations request per agent type.
func Gate10ModelEnforcement() gate.Gate {
	return gate.Gate{
		Name:         gate10Name,
		Tier:         gate.Tier3,
		WatchedTools: []string{"Task"},
		Deps:         gate.Dependencies{Writes: []string{"subagent_model_tier"}},
		Check:        checkGate10,
	}
}

func checkGate10(in gate.Input) (gate.Result, error) {
	subagentType, _ := in.ToolInput["subagent_type"].(string)
	model, _ := in.ToolInput["model"].(string)
	if subagentType == "" {
		return gate.Pass(gate10Name), nil
	}
	allowed, known := allowedSubagentModelTier[subagentType]
	if known && allowed != "*" && model != "" && model != allowed {
		return gate.Warn(gate10Name, "subagent type requested a model tier outside its configured allowance"), nil
	}
	if model != "" {
		in.State.SubagentModelTier[subagentType] = model
	}
	return gate.Pass(gate10Name), nil
}
