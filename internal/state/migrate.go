// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

// migration operates on the raw decoded document so fields added or
// renamed across versions can be handled before struct unmarshaling
// drops anything unrecognized. Each entry is total over its domain: it
// never panics, and on unexpected shapes it leaves the input alone.
type migration func(map[string]any) map[string]any

// migrations maps "from version" to the function that advances a
// document from that version to the next one.
var migrations = map[int]migration{
	1: migrateV1ToV2,
	2: migrateV2ToV3,
}

// migrateV1ToV2 introduces the causal-chain fields and renames the v1
// "bans" list into the v2 active_bans map of strategy_id -> fail_count.
func migrateV1ToV2(doc map[string]any) map[string]any {
	if raw, ok := doc["bans"]; ok {
		if list, ok := raw.([]any); ok {
			bans := make(map[string]any, len(list))
			for _, item := range list {
				if id, ok := item.(string); ok {
					bans[id] = 1
				}
			}
			doc["active_bans"] = bans
		}
		delete(doc, "bans")
	}
	if _, ok := doc["pending_chain_ids"]; !ok {
		doc["pending_chain_ids"] = []any{}
	}
	doc["version"] = 2
	return doc
}

// migrateV2ToV3 introduces the mentor advisory fields and the
// gate_block_outcomes log.
func migrateV2ToV3(doc map[string]any) map[string]any {
	if _, ok := doc["gate_block_outcomes"]; !ok {
		doc["gate_block_outcomes"] = []any{}
	}
	if _, ok := doc["mentor_score"]; !ok {
		doc["mentor_score"] = 0.0
	}
	doc["version"] = 3
	return doc
}

// MigrateForward runs doc through the migration chain from its stored
// version to CurrentVersion. On any error mid-chain the document is
// simply stamped at CurrentVersion and returned as-is: migrations are
// additive and a missing intermediate field is recovered by the
// zero-value defaults applied during unmarshaling.
func MigrateForward(doc map[string]any) map[string]any {
	from := 1
	if v, ok := doc["version"].(float64); ok {
		from = int(v)
	}
	for from < CurrentVersion {
		fn, ok := migrations[from]
		if !ok {
			break
		}
		doc = fn(doc)
		next, ok := doc["version"].(int)
		if !ok {
			break
		}
		from = next
	}
	doc["version"] = CurrentVersion
	return doc
}
