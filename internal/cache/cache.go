// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache implements the gate-result TTL cache keyed by a
// truncated SHA-256 digest of (gate, tool, salient tool-input fields).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hookguard/sentinel/internal/fslock"
	"github.com/hookguard/sentinel/internal/fsutil"
)

// DefaultTTL is the cache entry lifetime.
const DefaultTTL = 60 * time.Second

// salientFields maps tool name to the tool_input fields that
// determine cache identity for that tool. "default" is used for any
// tool not listed explicitly.
var salientFields = map[string][]string{
	"Edit":         {"file_path", "old_string"},
	"Write":        {"file_path"},
	"NotebookEdit": {"notebook_path", "cell_number"},
	"Bash":         {"command"},
	"Task":         {"model", "subagent_type", "description"},
	"WebFetch":     {"url"},
	"WebSearch":    {"query"},
	"default":      {"file_path", "command", "url", "query"},
}

// Result is a cacheable, non-blocking, non-ask gate outcome.
type Result struct {
	Blocked      bool   `json:"blocked"`
	IsAsk        bool   `json:"is_ask"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	GateName     string `json:"gate_name"`
	HookDecision string `json:"hook_decision"`
}

// Cacheable reports whether a result is eligible for caching: only
// pass/warn results that neither block nor ask are stored.
func (r Result) Cacheable() bool {
	return !r.Blocked && !r.IsAsk
}

type entry struct {
	result    Result
	expiresAt time.Time
}

// diskEntry is entry's on-disk representation; entry itself isn't
// marshaled directly since its fields are unexported.
type diskEntry struct {
	Result    Result    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache is a TTL cache, optionally backed by a persistent document on
// disk: since each gate invocation is a separate short-lived process,
// an in-memory-only cache (path == "") never produces a cross-process
// hit. When path is set, Store writes the entry through to disk under
// an exclusive lock (one-writer read-modify-write), and a fresh Cache
// constructed against the same path picks up unexpired entries left
// by a prior process.
type Cache struct {
	ttl    time.Duration
	path   string
	mu     sync.Mutex
	items  map[string]entry
	hits   int
	misses int
}

// New returns a process-local cache with the default TTL and no disk
// backing.
func New() *Cache {
	return &Cache{ttl: DefaultTTL, items: map[string]entry{}}
}

// NewAt returns a cache backed by a persistent TTL document at path,
// preloaded with whatever unexpired entries a previous invocation left
// behind.
func NewAt(path string) *Cache {
	c := &Cache{ttl: DefaultTTL, path: path, items: map[string]entry{}}
	for k, v := range readDiskEntries(path) {
		if v.ExpiresAt.After(time.Now()) {
			c.items[k] = entry{result: v.Result, expiresAt: v.ExpiresAt}
		}
	}
	return c
}

func readDiskEntries(path string) map[string]diskEntry {
	onDisk := map[string]diskEntry{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return onDisk
	}
	_ = json.Unmarshal(raw, &onDisk)
	return onDisk
}

// Key computes the cache key for (gate, tool, tool_input).
func Key(gateName, toolName string, toolInput map[string]any) string {
	fields, ok := salientFields[toolName]
	if !ok {
		fields = salientFields["default"]
	}
	salient := map[string]any{}
	for _, f := range fields {
		if v, ok := toolInput[f]; ok {
			salient[f] = v
		}
	}
	keys := make([]string, 0, len(salient))
	for k := range salient {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]any, len(keys))
	for _, k := range keys {
		ordered[k] = salient[k]
	}
	blob, _ := json.Marshal(ordered)
	sum := sha256.Sum256(append([]byte(gateName+"|"+toolName+"|"), blob...))
	return hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached result for key if present and unexpired.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		c.misses++
		return Result{}, false
	}
	c.hits++
	return e.result, true
}

// Store saves result under key if it is cacheable, and writes it
// through to the backing document (if any) under an exclusive lock.
func (c *Cache) Store(key string, result Result) {
	if !result.Cacheable() {
		return
	}
	c.mu.Lock()
	e := entry{result: result, expiresAt: time.Now().Add(c.ttl)}
	c.items[key] = e
	c.mu.Unlock()

	if c.path == "" {
		return
	}
	_ = fslock.WithLock(c.path+".lock", fslock.Exclusive, func() error {
		onDisk := readDiskEntries(c.path)
		onDisk[key] = diskEntry{Result: e.result, ExpiresAt: e.expiresAt}
		now := time.Now()
		for k, v := range onDisk {
			if !v.ExpiresAt.After(now) {
				delete(onDisk, k)
			}
		}
		blob, err := json.Marshal(onDisk)
		if err != nil {
			return err
		}
		return fsutil.AtomicWrite(c.path, blob, 0o644)
	})
}

// Stats reports hit/miss counters.
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Stats returns current hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}
