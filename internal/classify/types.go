// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classify provides content classification used by the
// code-quality and critical-file gates: literal-secret, PII, and
// debug-artifact detection driven by a priority-ordered, embedded
// pattern table rather than a hardcoded regex list.
package classify

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Confidence mirrors the embedded pattern table's declared confidence
// for a match.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

type patternFile struct {
	ClassificationPatterns []Classification `yaml:"classifications"`
}

// Classification is one named category of content (secret_credential,
// pii, debug_artifact, ...) with its own pattern set and priority.
type Classification struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

// Pattern is one regex within a Classification.
type Pattern struct {
	ID              string     `yaml:"id"`
	Description     string     `yaml:"description"`
	Regex           string     `yaml:"regex"`
	Confidence      Confidence `yaml:"confidence"`
	compiledPattern *regexp.Regexp
}

func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Confidence(s) {
	case High, Medium, Low:
		*c = Confidence(s)
		return nil
	default:
		return fmt.Errorf("classify: invalid confidence %q", s)
	}
}

func (p *patternFile) compileRegexes() error {
	for i := range p.ClassificationPatterns {
		for j := range p.ClassificationPatterns[i].Patterns {
			pat := &p.ClassificationPatterns[i].Patterns[j]
			re, err := regexp.Compile(pat.Regex)
			if err != nil {
				return fmt.Errorf("classify: compile %s: %w", pat.Regex, err)
			}
			p.ClassificationPatterns[i].CompiledPatterns = append(p.ClassificationPatterns[i].CompiledPatterns, re)
			pat.compiledPattern = re
		}
	}
	return nil
}

func (p *patternFile) sortByPriority() {
	sort.Slice(p.ClassificationPatterns, func(i, j int) bool {
		return p.ClassificationPatterns[i].Priority > p.ClassificationPatterns[j].Priority
	})
}

// Finding is one match surfaced by ScanContent.
type Finding struct {
	LineNumber         int        `json:"line_number"`
	MatchedContent     string     `json:"matched_content"`
	ClassificationName string     `json:"classification_name"`
	PatternID          string     `json:"pattern_id"`
	PatternDescription string     `json:"pattern_description"`
	Confidence         Confidence `json:"confidence"`
}
