// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/hookguard/sentinel/internal/gate"
)

const gate11Name = "gate_11_rate_limit"

const (
	rateWindow     = 60 * time.Second
	rateMaxCalls   = 30
	rateBurstLimit = 5 // calls allowed within a single burstWindow
	burstWindow    = time.Second
)

// Gate11RateLimit caps any single tool's call rate over a rolling
// window persisted across invocations in state, plus a short-burst
// check (golang.org/x/time/rate's token-bucket model applied to just
// the calls that landed within the last second of the window).
func Gate11RateLimit() gate.Gate {
	return gate.Gate{
		Name:         gate11Name,
		Tier:         gate.Tier3,
		WatchedTools: nil, // universal
		Deps:         gate.Dependencies{Reads: []string{"rate_window"}, Writes: []string{"rate_window"}},
		Check:        checkGate11,
	}
}

func checkGate11(in gate.Input) (gate.Result, error) {
	now := time.Now()
	nowEpoch := float64(now.Unix())
	cutoff := float64(now.Add(-rateWindow).Unix())
	burstCutoff := float64(now.Add(-burstWindow).Unix())

	window := in.State.RateWindow[in.ToolName]
	kept := window[:0:0]
	burstCount := 0
	for _, ts := range window {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
		if ts >= burstCutoff {
			burstCount++
		}
	}
	kept = append(kept, nowEpoch)
	in.State.RateWindow[in.ToolName] = kept

	limiter := rate.NewLimiter(rate.Every(burstWindow/rateBurstLimit), rateBurstLimit)
	if !limiter.AllowN(now, burstCount+1) {
		return gate.Block(gate11Name, "tool call burst rate exceeded"), nil
	}
	if len(kept) > rateMaxCalls {
		return gate.Block(gate11Name, "tool call rate exceeded for this session window"), nil
	}
	return gate.Pass(gate11Name), nil
}
