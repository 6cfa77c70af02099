// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push [PATH]",
	Short: "Publish the current branch to the default remote without fetching",
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
		if err := s.eng.Push(cmd.Context(), repo, s.settings(cmd)); err != nil {
			return err
		}
		head, err := repo.HeadStatus()
		if err != nil {
			return err
		}
		if head.IsUnborn() {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to push")
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", head.Name)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
