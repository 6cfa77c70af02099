// SPDX-License-Identifier: MIT
package reposync

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	narrowTableWidth = 100
	tinyTableWidth   = 80
)

var getTerminalSize = term.GetSize

func tableWidth(cmd *cobra.Command) (int, bool) {
	if cmd == nil {
		return 0, false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(file.Fd())
	if !isTerminalFD(fd) {
		return 0, false
	}
	width, _, err := getTerminalSize(fd)
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

// pathCellLimit caps the PATH column on narrow terminals; 0 means no limit.
func pathCellLimit(cmd *cobra.Command) int {
	if getBoolFlag(cmd, "wrap") {
		return 0
	}
	width, ok := tableWidth(cmd)
	if !ok {
		return 0
	}
	return pathCellLimitForWidth(width)
}

func pathCellLimitForWidth(width int) int {
	switch {
	case width > 0 && width < tinyTableWidth:
		return 24
	case width > 0 && width < narrowTableWidth:
		return 40
	default:
		return 0
	}
}
