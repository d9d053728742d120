// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package effectiveness persists cumulative per-gate block/override/
// prevented counters to a single JSON document. Unlike the Q-router
// and gate breaker documents, this one is always read-modify-written
// under an exclusive file lock: it is cheap to recompute a gate's
// ordering or breaker state from scratch after a crash, but a lost
// effectiveness increment is gone for good, and the document lives
// under the disk state root (never the ramdisk) so it survives a
// reboot.
package effectiveness

import (
	"encoding/json"
	"os"

	"github.com/hookguard/sentinel/internal/fslock"
	"github.com/hookguard/sentinel/internal/fsutil"
)

// Counts is one gate's cumulative effectiveness record.
type Counts struct {
	Blocks    int `json:"blocks"`
	Overrides int `json:"overrides"`
	Prevented int `json:"prevented"`
}

// Store is a handle on the on-disk effectiveness document at path.
type Store struct {
	path string
}

// New returns a store backed by path. The document is created on the
// first Increment call; a missing file reads as empty.
func New(path string) *Store {
	return &Store{path: path}
}

// Increment bumps one of "blocks", "overrides", or "prevented" for
// gate by one, under an exclusive lock so concurrent short-lived
// processes never clobber each other's update. Failures are
// swallowed: this document is advisory, not load-bearing for safety.
func (s *Store) Increment(gate, field string) {
	if s == nil || s.path == "" {
		return
	}
	_ = fslock.WithLock(s.path+".lock", fslock.Exclusive, func() error {
		data := s.read()
		c := data[gate]
		switch field {
		case "blocks":
			c.Blocks++
		case "overrides":
			c.Overrides++
		case "prevented":
			c.Prevented++
		default:
			return nil
		}
		data[gate] = c
		blob, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return fsutil.AtomicWrite(s.path, blob, 0o644)
	})
}

// Load returns the current counters, for diagnostics and tests.
func (s *Store) Load() map[string]Counts {
	if s == nil || s.path == "" {
		return map[string]Counts{}
	}
	return s.read()
}

func (s *Store) read() map[string]Counts {
	data := map[string]Counts{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return data
	}
	_ = json.Unmarshal(raw, &data)
	return data
}
