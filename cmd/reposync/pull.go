// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/termstyle"
)

var pullCmd = &cobra.Command{
	Use:   "pull [PATH]",
	Short: "Fast-forward the default branch to the remote tip",
	Long:  "Fetches from the default remote and fast-forwards the local default branch. An unborn branch is created at the remote tip. Diverged histories are an error.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		repo, err := openRepo(repoPath(args, 0))
		if err != nil {
			return err
		}
		outcome, err := s.eng.Pull(cmd.Context(), repo, engine.PullOptions{
			Settings: s.settings(cmd),
			Switch:   getBoolFlag(cmd, "switch"),
			Progress: progressPrinter(cmd),
		})
		if err != nil {
			return err
		}
		kind, err := parseOutputKind(getStringFlag(cmd, "format"))
		if err != nil {
			return err
		}
		if handled, err := writeStructured(cmd, kind, outcome); handled {
			return err
		}
		setColorOutputMode(cmd, string(kind))
		state := string(outcome.State)
		state = termstyle.Colorize(colorOutputEnabled, state, termstyle.ForOutcome(state))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", outcome.Branch, state)
		return err
	},
}

func init() {
	pullCmd.Flags().Bool("switch", false, "check out the default branch when HEAD is on another branch")
	addFormatFlag(pullCmd, "output format: table, json or yaml")
	rootCmd.AddCommand(pullCmd)
}
