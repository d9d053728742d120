// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command sessionend prints the end-of-session summary, flushes a
// capture-queue observation for the memory worker, and bumps the
// session count in LIVE_STATE.json. It always exits 0.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hookguard/sentinel/internal/config"
	"github.com/hookguard/sentinel/internal/event"
	"github.com/hookguard/sentinel/internal/memsocket"
	"github.com/hookguard/sentinel/internal/sessionend"
	"github.com/hookguard/sentinel/internal/state"
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

	deps := sessionend.Deps{Store: store, Memory: memsocket.NewClient(cfg.SocketPath)}
	summary := sessionend.End(deps, evt, cfg.StateRoot)
	if summary != "" {
		fmt.Fprintln(os.Stderr, summary)
	}

	return event.ExitAllow
}
