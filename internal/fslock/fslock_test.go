// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fslock

import (
	"path/filepath"
	"testing"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.lock")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.Lock(Exclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestTryLockWouldBlockOnExclusiveHeldElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.lock")

	holder, err := Open(path)
	if err != nil {
		t.Fatalf("Open holder: %v", err)
	}
	defer holder.Close()
	if err := holder.Lock(Exclusive); err != nil {
		t.Fatalf("holder Lock: %v", err)
	}

	contender, err := Open(path)
	if err != nil {
		t.Fatalf("Open contender: %v", err)
	}
	defer contender.Close()

	if err := contender.TryLock(Exclusive); err != ErrWouldBlock {
		t.Fatalf("TryLock: got %v, want ErrWouldBlock", err)
	}
}

func TestWithLockRunsFnAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.lock")
	ran := false
	if err := WithLock(path, Exclusive, func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}

	// A second WithLock call must succeed, proving the first released.
	if err := WithLock(path, Exclusive, func() error { return nil }); err != nil {
		t.Fatalf("second WithLock: %v", err)
	}
}

func TestSharedLocksDoNotBlockEachOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.lock")

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	defer a.Close()
	if err := a.Lock(Shared); err != nil {
		t.Fatalf("a.Lock: %v", err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer b.Close()
	if err := b.TryLock(Shared); err != nil {
		t.Fatalf("b.TryLock(Shared): %v", err)
	}
}
