// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine classifies content against the embedded, priority-ordered
// pattern table.
type Engine struct {
	classifications []Classification
}

// NewEngine loads and compiles the embedded classification patterns.
func NewEngine() (*Engine, error) {
	var pf patternFile
	if err := yaml.Unmarshal(dataClassificationPatterns, &pf); err != nil {
		return nil, fmt.Errorf("classify: unmarshal embedded patterns: %w", err)
	}
	if err := pf.compileRegexes(); err != nil {
		return nil, err
	}
	pf.sortByPriority()
	return &Engine{classifications: pf.ClassificationPatterns}, nil
}

// Classify returns the name of the first (highest-priority)
// classification matching data, or "public" if none match.
func (e *Engine) Classify(data []byte) string {
	for _, c := range e.classifications {
		for _, re := range c.CompiledPatterns {
			if re.Match(data) {
				return c.Name
			}
		}
	}
	return "public"
}

// ScanContent checks every line of content against every pattern,
// returning all findings with line numbers for detailed reporting
// (used by gate 16's code-quality check).
func (e *Engine) ScanContent(content string) []Finding {
	var findings []Finding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, c := range e.classifications {
			for _, pat := range c.Patterns {
				if match := pat.compiledPattern.FindString(line); match != "" {
					findings = append(findings, Finding{
						LineNumber:         lineNum + 1,
						MatchedContent:     strings.TrimSpace(match),
						ClassificationName: c.Name,
						PatternID:          pat.ID,
						PatternDescription: pat.Description,
						Confidence:         pat.Confidence,
					})
				}
			}
		}
	}
	return findings
}
