// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import "testing"

func TestApplyInvariantsRemovesPendingOverlapWithVerified(t *testing.T) {
	s := New("s1")
	s.PendingVerification = []string{"/a.go", "/b.go"}
	s.VerifiedFixes = []string{"/a.go"}
	ApplyInvariants(s)

	for _, p := range s.PendingVerification {
		if p == "/a.go" {
			t.Fatal("a verified file must not remain pending")
		}
	}
	if len(s.PendingVerification) != 1 || s.PendingVerification[0] != "/b.go" {
		t.Fatalf("PendingVerification = %v", s.PendingVerification)
	}
}

func TestApplyInvariantsDedupesFileLists(t *testing.T) {
	s := New("s1")
	s.FilesRead = []string{"/a.go", "/a.go", "/b.go"}
	ApplyInvariants(s)
	if len(s.FilesRead) != 2 {
		t.Fatalf("FilesRead = %v, want 2 deduped entries", s.FilesRead)
	}
}

func TestApplyInvariantsNormalizesPaths(t *testing.T) {
	s := New("s1")
	s.FilesRead = []string{"/a/../b.go"}
	ApplyInvariants(s)
	if s.FilesRead[0] != "/b.go" {
		t.Fatalf("FilesRead[0] = %q, want /b.go", s.FilesRead[0])
	}
}

func TestApplyInvariantsClampsOutOfRangeVersion(t *testing.T) {
	s := New("s1")
	s.Version = 999
	ApplyInvariants(s)
	if s.Version != CurrentVersion {
		t.Fatalf("Version = %d, want %d", s.Version, CurrentVersion)
	}
}

func TestApplyInvariantsCapsFilesReadToMostRecent(t *testing.T) {
	s := New("s1")
	for i := 0; i < capFilesRead+10; i++ {
		s.FilesRead = append(s.FilesRead, uniquePath(i))
	}
	ApplyInvariants(s)
	if len(s.FilesRead) != capFilesRead {
		t.Fatalf("len(FilesRead) = %d, want %d", len(s.FilesRead), capFilesRead)
	}
}

func uniquePath(i int) string {
	digits := []byte{}
	if i == 0 {
		digits = append(digits, '0')
	}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return "/f" + string(digits) + ".go"
}

func TestApplyInvariantsCapsErrorPatternCountsByFrequency(t *testing.T) {
	s := New("s1")
	s.ErrorPatternCounts = map[string]int{}
	for i := 0; i < capErrorPatternCounts+5; i++ {
		s.ErrorPatternCounts[uniquePath(i)] = i
	}
	ApplyInvariants(s)
	if len(s.ErrorPatternCounts) != capErrorPatternCounts {
		t.Fatalf("len(ErrorPatternCounts) = %d, want %d", len(s.ErrorPatternCounts), capErrorPatternCounts)
	}
	// The highest-frequency entries must survive the cap.
	if _, ok := s.ErrorPatternCounts[uniquePath(capErrorPatternCounts+4)]; !ok {
		t.Fatal("expected the highest-count entry to survive capping")
	}
}
