// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hookguard/sentinel/internal/fslock"
	"github.com/hookguard/sentinel/internal/fsutil"
	"github.com/hookguard/sentinel/pkg/validation"
)

// SanitizeSessionID strips anything outside [A-Za-z0-9_-] before the
// id is used as a filename component.
func SanitizeSessionID(id string) string {
	return validation.SanitizeSessionID(id)
}

// Store is the filesystem-backed state document store for one state
// root directory (typically under the session's ramdisk or fallback
// disk location).
type Store struct {
	Root string
}

// NewStore returns a store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{Root: dir}, nil
}

// StateFileFor returns the JSON document path for a session.
func (st *Store) StateFileFor(sessionID string) string {
	return filepath.Join(st.Root, fmt.Sprintf("state_%s.json", SanitizeSessionID(sessionID)))
}

func (st *Store) lockFileFor(sessionID string) string {
	return filepath.Join(st.Root, fmt.Sprintf(".state_%s.lock", SanitizeSessionID(sessionID)))
}

func (st *Store) sidebandFileFor(sessionID string) string {
	return filepath.Join(st.Root, fmt.Sprintf(".enforcer_sideband_%s.json", SanitizeSessionID(sessionID)))
}

// SidebandFileFor exposes the sideband path for the tracker to merge.
func (st *Store) SidebandFileFor(sessionID string) string {
	return st.sidebandFileFor(sessionID)
}

// Load reads, migrates, and validates a session's state document.
// A missing or unparsable file yields fresh defaults rather than an
// error: the state store fails open. Lock-acquisition failure falls
// back to an unlocked best-effort read rather than blocking the
// invocation.
func (st *Store) Load(sessionID string) (*State, error) {
	path := st.StateFileFor(sessionID)
	lockPath := st.lockFileFor(sessionID)

	var raw []byte
	readFn := func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				raw = nil
				return nil
			}
			return err
		}
		raw = data
		return nil
	}

	if lock, err := fslock.Open(lockPath); err == nil {
		defer lock.Close()
		if err := lock.Lock(fslock.Shared); err == nil {
			defer lock.Unlock()
			_ = readFn()
		} else {
			_ = readFn() // best-effort unlocked fallback
		}
	} else {
		_ = readFn()
	}

	s := New(sessionID)
	if len(raw) == 0 {
		ApplyInvariants(s)
		return s, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		// parse failure -> defaults
		ApplyInvariants(s)
		return s, nil
	}
	doc = MigrateForward(doc)

	migrated, err := json.Marshal(doc)
	if err != nil {
		ApplyInvariants(s)
		return s, nil
	}
	if err := json.Unmarshal(migrated, s); err != nil {
		ApplyInvariants(s)
		return s, nil
	}
	s.sessionID = sessionID
	ApplyInvariants(s)
	return s, nil
}

// Save enforces caps and invariants, then atomically writes the
// document while holding an exclusive lock on the session's lock
// file.
func (st *Store) Save(s *State, sessionID string) error {
	ApplyInvariants(s)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	path := st.StateFileFor(sessionID)
	lockPath := st.lockFileFor(sessionID)

	lock, err := fslock.Open(lockPath)
	if err != nil {
		// Best-effort: write unlocked rather than lose the mutation.
		return fsutil.AtomicWrite(path, data, 0o644)
	}
	defer lock.Close()
	if err := lock.Lock(fslock.Exclusive); err != nil {
		return fsutil.AtomicWrite(path, data, 0o644)
	}
	defer lock.Unlock()
	return fsutil.AtomicWrite(path, data, 0o644)
}

// Reset deletes a session's state document and sideband file.
func (st *Store) Reset(sessionID string) error {
	_ = os.Remove(st.StateFileFor(sessionID))
	_ = os.Remove(st.sidebandFileFor(sessionID))
	return nil
}

// CleanupAll removes every state document and sideband file under the
// store's root. Used by retention sweeps, never by a single
// invocation.
func (st *Store) CleanupAll() error {
	entries, err := os.ReadDir(st.Root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if (len(name) >= 6 && name[:6] == "state_") ||
			(len(name) >= 19 && name[:19] == ".enforcer_sideband_") {
			_ = os.Remove(filepath.Join(st.Root, name))
		}
	}
	return nil
}

// WriteSideband persists mutations the enforcer makes that the tracker
// must observe even before it promotes them into the canonical
// document on its own Save.
func (st *Store) WriteSideband(sessionID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(st.sidebandFileFor(sessionID), data, 0o644)
}

// ReadAndClearSideband reads the sideband document if present and
// deletes it, so the tracker merges each mutation exactly once.
func (st *Store) ReadAndClearSideband(sessionID string) (map[string]any, error) {
	path := st.sidebandFileFor(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	_ = os.Remove(path)
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil
	}
	return payload, nil
}
