// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"regexp"
	"strings"
)

// codeRe matches an equipment zone code inside a point name: a letter
// prefix followed by a numeric suffix, with an optional separator.
// Examples: "LE-3", "LECT_12", "UTL 4".
var codeRe = regexp.MustCompile(`([A-Za-z]+)[ _-]?(\d+)`)

// ExtractCode extracts a normalized equipment code from a point name.
// The reader prefix variant "LECT" is normalized to its canonical "LE"
// form and the separator is always "-". Returns ok=false when the name
// carries no code pattern; callers treat that as "no linkage", not an
// error.
func ExtractCode(pointName string) (string, bool) {
	m := codeRe.FindStringSubmatch(pointName)
	if m == nil {
		return "", false
	}
	prefix := strings.ToUpper(m[1])
	if prefix == "LECT" {
		prefix = "LE"
	}
	return prefix + "-" + m[2], true
}
