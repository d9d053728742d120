// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// filesystem paths or derived as state-document filename components. Using
// these validators prevents path traversal and filename injection.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionIDPattern matches the session identifiers the host sends us:
// UUIDs, optionally suffixed with a subagent discriminator.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSessionID rejects session identifiers that are empty, too
// long, or contain anything that could escape a filename component
// (path separators, null bytes, ".." segments).
//
// Example:
//
//	if err := validation.ValidateSessionID(evt.SessionID); err != nil {
//	    return fmt.Errorf("invalid session id: %w", err)
//	}
//	// Safe to use as a state_<id>.json filename component
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session id must not contain path segments: %q", id)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be 1-128 chars of letters, digits, underscore, or hyphen)", id)
	}
	return nil
}

var sessionIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeSessionID normalizes a session id for safe use as a filename
// component, replacing any character outside [A-Za-z0-9_-] with an
// underscore. Unlike ValidateSessionID, this never fails: callers that
// need a guaranteed-safe filename regardless of the input's validity
// (e.g. building a lock path for a malformed event) should use this.
func SanitizeSessionID(id string) string {
	return sessionIDSanitizer.ReplaceAllString(id, "_")
}

// ValidateWorkspacePath rejects traversal segments in a tool-supplied
// file path before it is used to key a per-path state map (file
// claims, verification scores, edit streaks).
//
// Returns an error if the path attempts to traverse above its own
// workspace root via "..".
func ValidateWorkspacePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return fmt.Errorf("path must not contain a %q segment: %q", "..", path)
		}
	}
	return nil
}
