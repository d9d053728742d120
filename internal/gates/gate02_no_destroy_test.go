// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gates

import (
	"testing"

	"github.com/hookguard/sentinel/internal/gate"
)

func TestGate02BlocksForceRemoval(t *testing.T) {
	cases := []string{
		"rm -rf /tmp/build",
		"rm -fr ./dist",
		"git push origin main --force",
		"git reset --hard HEAD~3",
		"DROP TABLE users;",
		"mkfs.ext4 /dev/sdb1",
		"dd if=/dev/zero of=/dev/sda",
		"chmod -R 777 /",
		"truncate -s 0 /var/log/syslog",
	}
	for _, cmd := range cases {
		res, err := checkGate02(gate.Input{ToolInput: map[string]any{"command": cmd}})
		if err != nil {
			t.Fatalf("checkGate02(%q): %v", cmd, err)
		}
		if !res.Blocked {
			t.Errorf("command %q should have been blocked", cmd)
		}
	}
}

func TestGate02AllowsBenignCommands(t *testing.T) {
	cases := []string{
		"ls -la",
		"rm build/output.bin",
		"git push origin feature-branch",
		"git status",
	}
	for _, cmd := range cases {
		res, err := checkGate02(gate.Input{ToolInput: map[string]any{"command": cmd}})
		if err != nil {
			t.Fatalf("checkGate02(%q): %v", cmd, err)
		}
		if res.Blocked {
			t.Errorf("command %q should not have been blocked", cmd)
		}
	}
}

func TestGate02PassesWhenCommandFieldMissing(t *testing.T) {
	res, err := checkGate02(gate.Input{ToolInput: map[string]any{}})
	if err != nil {
		t.Fatalf("checkGate02: %v", err)
	}
	if res.Blocked {
		t.Fatal("expected pass when no command field is present")
	}
}
