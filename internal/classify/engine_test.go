// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import "testing"

func TestNewEngineLoadsEmbeddedPatterns(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if len(e.classifications) == 0 {
		t.Fatal("expected at least one embedded classification")
	}
}

func TestClassifyDetectsSecretCredential(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := e.Classify([]byte(`api_key = "sk-abcdefghijklmnop1234567890"`))
	if got != "secret_credential" {
		t.Fatalf("Classify = %q, want secret_credential", got)
	}
}

func TestClassifyReturnsPublicOnNoMatch(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if got := e.Classify([]byte("just some ordinary code")); got != "public" {
		t.Fatalf("Classify = %q, want public", got)
	}
}

func TestClassifyPrefersHigherPriorityClassification(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	// Content matches both an email (pii, priority 80) and an API key
	// assignment (secret_credential, priority 100); the higher-priority
	// classification must win.
	content := `contact admin@example.com, token = "zzzzzzzzzzzzzzzzzzzz1234"`
	if got := e.Classify([]byte(content)); got != "secret_credential" {
		t.Fatalf("Classify = %q, want secret_credential (higher priority)", got)
	}
}

func TestScanContentReportsLineNumbers(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	content := "line one\nconsole.log('debug')\nline three"
	findings := e.ScanContent(content)
	if len(findings) == 0 {
		t.Fatal("expected at least one finding")
	}
	found := false
	for _, f := range findings {
		if f.LineNumber == 2 && f.ClassificationName == "debug_artifact" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a debug_artifact finding on line 2, got %+v", findings)
	}
}
