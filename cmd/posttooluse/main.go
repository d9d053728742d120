// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command posttooluse is the PostToolUse tracker: a short-lived
// process invoked once per tool call, after the tool has run. It
// updates session state (file history, verification scoring,
// causal-chain bookkeeping) and always exits 0 — this surface never
// blocks a tool call that has already executed.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/hookguard/sentinel/internal/audit"
	"github.com/hookguard/sentinel/internal/config"
	"github.com/hookguard/sentinel/internal/effectiveness"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/state"
	"github.com/hookguard/sentinel/internal/tracker"
	"github.com/hookguard/sentinel/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.Default()

	var evt event.HookEvent
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Error("read stdin failed", "error", err)
		return event.ExitAllow
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		log.Warn("malformed hook event, ignoring", "error", err)
		return event.ExitAllow
	}
	if err := evt.Validate(); err != nil {
		log.Warn("hook event missing required fields, ignoring", "error", err)
		return event.ExitAllow
	}

	cfg := config.Load()

	store, err := state.NewStore(cfg.StateRoot)
	if err != nil {
		log.Error("state store init failed", "error", err)
		return event.ExitAllow
	}

	tracker.Track(tracker.Deps{
		Store:         store,
		Audit:         audit.NewLog(cfg.StateRoot),
		Effectiveness: effectiveness.New(cfg.DiskStateRoot + "/.gate_effectiveness.json"),
	}, evt)

	return event.ExitAllow
}
