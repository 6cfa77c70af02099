// SPDX-License-Identifier: MIT

// Package strutil holds small string helpers shared by CLI flag parsing.
package strutil

import "strings"

// SplitCSV splits a comma-separated flag value, trimming blanks and dropping
// empty items. An empty input yields nil.
func SplitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
