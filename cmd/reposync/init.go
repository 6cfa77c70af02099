// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Create an empty repository on the default branch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		path, err := filepath.Abs(repoPath(args, 0))
		if err != nil {
			return err
		}
		bare := getBoolFlag(cmd, "bare")
		repo, err := s.eng.Init(path, bare, s.settings(cmd))
		if err != nil {
			return err
		}
		head, err := repo.HeadStatus()
		if err != nil {
			return err
		}
		kind := "repository"
		if bare {
			kind = "bare repository"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty %s in %s on %s\n", kind, repo.Path(), head.Name)
		return err
	},
}

func init() {
	initCmd.Flags().Bool("bare", false, "create a repository without a working tree")
	rootCmd.AddCommand(initCmd)
}
