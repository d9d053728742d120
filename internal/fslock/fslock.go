// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fslock provides POSIX advisory file locking with both shared
// (read) and exclusive (write) modes, used to serialize concurrent
// access to the per-session state document and the shared cache and
// effectiveness documents.
package fslock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by TryLock when the lock is already held
// by another process in an incompatible mode.
var ErrWouldBlock = errors.New("fslock: lock held by another process")

// Mode selects the POSIX lock discipline.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// Lock wraps an open file descriptor used purely as a lock handle.
// It never reads or writes the file's contents; callers open the
// state/audit files separately.
type Lock struct {
	path string
	file *os.File
	mode Mode
}

// Open creates (if necessary) and opens the lock file at path without
// acquiring it.
func Open(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fslock: open %s: %w", path, err)
	}
	return &Lock{path: path, file: f}, nil
}

// Lock blocks until the lock is acquired in the given mode.
func (l *Lock) Lock(mode Mode) error {
	how := unix.LOCK_EX
	if mode == Shared {
		how = unix.LOCK_SH
	}
	if err := unix.Flock(int(l.file.Fd()), how); err != nil {
		return fmt.Errorf("fslock: flock %s: %w", l.path, err)
	}
	l.mode = mode
	return nil
}

// TryLock attempts to acquire the lock in the given mode without
// blocking, returning ErrWouldBlock if another process holds an
// incompatible lock.
func (l *Lock) TryLock(mode Mode) error {
	how := unix.LOCK_EX | unix.LOCK_NB
	if mode == Shared {
		how = unix.LOCK_SH | unix.LOCK_NB
	}
	err := unix.Flock(int(l.file.Fd()), how)
	if err == nil {
		l.mode = mode
		return nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrWouldBlock
	}
	return fmt.Errorf("fslock: flock %s: %w", l.path, err)
}

// Unlock releases the lock but keeps the underlying file descriptor
// open so a subsequent Lock call can reuse it cheaply.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("fslock: unlock %s: %w", l.path, err)
	}
	return nil
}

// Close releases the lock and closes the file descriptor.
func (l *Lock) Close() error {
	_ = l.Unlock()
	return l.file.Close()
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// WithLock runs fn while holding the lock in the given mode,
// releasing it unconditionally afterward.
func WithLock(path string, mode Mode, fn func() error) error {
	l, err := Open(path)
	if err != nil {
		return err
	}
	defer l.Close()
	if err := l.Lock(mode); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}
