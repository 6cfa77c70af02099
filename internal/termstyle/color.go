// SPDX-License-Identifier: MIT
package termstyle

import "github.com/liggitt/tabwriter"

const (
	Reset = "\x1b[0m"
	Green = "\x1b[32m"
	Brown = "\x1b[33m"
	Red   = "\x1b[31m"
	Blue  = "\x1b[34m"

	Healthy = Green
	Warn    = Brown
	Error   = Red
	Info    = Blue
)

// Colorize wraps a value in ANSI escapes when color output is enabled.
func Colorize(enabled bool, value, color string) string {
	if !enabled || value == "" || color == "" {
		return value
	}
	// Escaped so tabwriter does not count the sequences toward column width.
	esc := string([]byte{tabwriter.Escape})
	return esc + color + esc + value + esc + Reset + esc
}

// ForOutcome picks the color for a reconciliation outcome label such as
// "resolved", "diverged" or "skipped_missing". Unknown labels stay plain.
func ForOutcome(outcome string) string {
	switch outcome {
	case "resolved", "up_to_date", "fast_forwarded", "created_unborn", "clean":
		return Healthy
	case "diverged", "dirty":
		return Warn
	case "skipped_missing", "skipped_bare", "skipped_no_remote", "unborn":
		return Info
	case "failed_open", "failed_resolve", "error":
		return Error
	default:
		return ""
	}
}
