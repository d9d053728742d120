// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config resolves the filesystem roots and overlay locations
// each of the three executables needs, preferring a fast ramdisk
// location and falling back to disk when unavailable.
package config

import (
	"os"
	"path/filepath"
)

// Config is the resolved set of paths one invocation needs.
type Config struct {
	StateRoot     string // per-session state documents and sideband files
	DiskStateRoot string // always-disk root for documents that must survive a reboot, never the ramdisk
	OverrideDir   string // gate override YAML documents, watched via fsnotify
	SocketPath    string // memory worker UDS path
}

const (
	envHome        = "SENTINEL_HOME"
	envOverrideDir = "SENTINEL_OVERRIDE_DIR"
	envSocketPath  = "SENTINEL_MEMORY_SOCKET"
	ramdiskPath    = "/dev/shm/sentinel-hooks"
	diskSubdir     = ".sentinel/hooks"
)

// Load resolves Config from environment overrides, preferring a
// ramdisk location for hot state files and falling back to disk when
// the ramdisk is unwritable (containers without /dev/shm, for
// example). SENTINEL_HOME pins the root explicitly, bypassing the
// ramdisk/disk probe entirely.
func Load() Config {
	root := resolveRoot()
	diskRoot := diskFallback()
	_ = os.MkdirAll(diskRoot, 0o755)
	return Config{
		StateRoot:     root,
		DiskStateRoot: diskRoot,
		OverrideDir:   valueOr(os.Getenv(envOverrideDir), filepath.Join(root, "overrides")),
		SocketPath:    valueOr(os.Getenv(envSocketPath), "/tmp/sentinel-memory.sock"),
	}
}

func resolveRoot() string {
	if home := os.Getenv(envHome); home != "" {
		_ = os.MkdirAll(home, 0o755)
		return home
	}
	return firstWritable(ramdiskPath, diskFallback())
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func diskFallback() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, diskSubdir)
}

// firstWritable returns the first candidate that exists or can be
// created, in order, skipping empty candidates.
func firstWritable(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := os.MkdirAll(c, 0o755); err == nil {
			return c
		}
	}
	return diskFallback()
}
