// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"path/filepath"
	"sort"
)

// Bounded-growth caps, enforced on every load and save.
const (
	capFilesRead          = 200
	capUnloggedErrors     = 20
	capErrorPatternCounts = 50
	capActiveBans         = 50
	capGateBlockOutcomes  = 100
	capToolCallCounts     = 50
	capToolStats          = 50
	capSkillUsage         = 50
	capRecentSkills       = 50
)

// ApplyInvariants enforces I1-I5 plus bounded-growth caps. Called after
// load (post-migration) and before save.
func ApplyInvariants(s *State) {
	dedupePreserveOrder(&s.FilesRead)
	dedupePreserveOrder(&s.FilesEdited)
	dedupePreserveOrder(&s.PendingVerification)
	dedupePreserveOrder(&s.VerifiedFixes)
	dedupePreserveOrder(&s.PendingChainIDs)

	normalizePaths(s.FilesRead)
	normalizePaths(s.FilesEdited)
	normalizePaths(s.PendingVerification)
	normalizePaths(s.VerifiedFixes)

	// I1: pending ∩ verified = ∅, remove from pending on overlap.
	verified := make(map[string]bool, len(s.VerifiedFixes))
	for _, p := range s.VerifiedFixes {
		verified[p] = true
	}
	kept := s.PendingVerification[:0:0]
	for _, p := range s.PendingVerification {
		if !verified[p] {
			kept = append(kept, p)
		}
	}
	s.PendingVerification = kept

	if s.Version < 1 || s.Version > CurrentVersion {
		s.Version = CurrentVersion
	}

	capList(&s.FilesRead, capFilesRead)
	capList(&s.UnloggedErrors, capUnloggedErrors)
	capIntMapByFrequency(s.ErrorPatternCounts, capErrorPatternCounts)
	capIntMapByFrequency(s.ActiveBans, capActiveBans)
	capBlockOutcomesByRecency(&s.GateBlockOutcomes, capGateBlockOutcomes)
	capLeastUsed(s.ToolCallCounts, capToolCallCounts)
	capToolStatsLeastUsed(s.ToolStats, capToolStats)
	capLeastUsed(s.SkillUsage, capSkillUsage)
	capSkillInvocations(&s.RecentSkills, capRecentSkills)

	if s.VerificationScores == nil {
		s.VerificationScores = map[string]int{}
	}
	if s.ErrorPatternCounts == nil {
		s.ErrorPatternCounts = map[string]int{}
	}
	if s.ActiveBans == nil {
		s.ActiveBans = map[string]int{}
	}
}

func normalizePaths(paths []string) {
	for i, p := range paths {
		paths[i] = filepath.Clean(p)
	}
}

func dedupePreserveOrder(list *[]string) {
	seen := make(map[string]bool, len(*list))
	out := (*list)[:0:0]
	for _, v := range *list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	*list = out
}

func capList(list *[]string, max int) {
	if len(*list) > max {
		*list = (*list)[len(*list)-max:]
	}
}

func capIntMapByFrequency(m map[string]int, max int) {
	if len(m) <= max {
		return
	}
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(m))
	for k, v := range m {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].v > items[j].v })
	for _, item := range items[max:] {
		delete(m, item.k)
	}
}

func capLeastUsed(m map[string]int, max int) {
	capIntMapByFrequency(m, max)
}

func capToolStatsLeastUsed(m map[string]ToolStat, max int) {
	if len(m) <= max {
		return
	}
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(m))
	for k, v := range m {
		items = append(items, kv{k, v.Count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].v > items[j].v })
	for _, item := range items[max:] {
		delete(m, item.k)
	}
}

func capSkillInvocations(list *[]SkillInvocation, max int) {
	if len(*list) > max {
		*list = (*list)[len(*list)-max:]
	}
}

func capBlockOutcomesByRecency(list *[]GateBlockOutcome, max int) {
	if len(*list) <= max {
		return
	}
	sort.Slice(*list, func(i, j int) bool { return (*list)[i].BlockedAt < (*list)[j].BlockedAt })
	*list = (*list)[len(*list)-max:]
}
