// Package tableutil renders the CLI's aligned tables.
package tableutil

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/liggitt/tabwriter"
)

// New creates a tabwriter with the CLI's column spacing. stripEscape hides
// tabwriter.Escape-wrapped color codes from width calculations.
func New(out io.Writer, stripEscape bool) *tabwriter.Writer {
	var flags uint
	if stripEscape {
		flags = tabwriter.StripEscape
	}
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', flags)
}

// PrintHeaders writes a tab-separated header row unless disabled.
func PrintHeaders(w io.Writer, noHeaders bool, headers string) error {
	if noHeaders {
		return nil
	}
	_, err := fmt.Fprintln(w, headers)
	return err
}

// TruncateLeft shortens value to max runes keeping its tail, which is the
// informative end of a path. max <= 0 disables truncation.
func TruncateLeft(value string, max int) string {
	n := utf8.RuneCountInString(value)
	if max <= 0 || n <= max {
		return value
	}
	runes := []rune(value)
	if max <= 3 {
		return string(runes[n-max:])
	}
	return "..." + string(runes[n-max+3:])
}
