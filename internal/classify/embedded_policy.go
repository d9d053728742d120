// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	_ "embed"
)

// dataClassificationPatterns holds the raw byte content of the
// embedded data_classification_patterns.yaml, baked into the binary
// via go:embed so the secret/PII/debug-artifact classification rules
// ship with the executable regardless of the state root's contents.
//
//go:embed data_classification_patterns.yaml
var dataClassificationPatterns []byte
