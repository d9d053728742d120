// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gates implements the concrete policy checks gate 1 through
// gate 19 (the canonical priority order run by the dispatcher).
package gates

import "github.com/hookguard/sentinel/internal/gate"

// All returns the registered gates in canonical priority order. Gates
// 8, 12, and 17 are a special case each: 8 is unused (reserved, no
// contract names it — skipped deliberately, same as the original's
// numbering gap), 12's counter merges into gate 6's escalation family
// per §4.10.1, and 17 lives in its own file given its size.
func All() []gate.Gate {
	return []gate.Gate{
		Gate01ReadBeforeEdit(),
		Gate02NoDestroy(),
		Gate03TestBeforeDeploy(),
		Gate04MemoryFirst(),
		Gate05ProofBeforeFixed(),
		Gate06SaveFix(),
		Gate07CriticalFileGuard(),
		Gate09StrategyBan(),
		Gate10ModelEnforcement(),
		Gate11RateLimit(),
		Gate13WorkspaceIsolation(),
		Gate14Confidence(),
		Gate15CausalChain(),
		Gate16CodeQuality(),
		Gate17InjectionDefense(),
		Gate18Canary(),
		Gate19Hindsight(),
	}
}
