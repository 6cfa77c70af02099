package reposync

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit [PATH]",
	Short: "Stage every change and commit it",
	Long:  "Stages new, modified and deleted files and commits them with a message listing the changed paths.",
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
		hash, message, err := s.eng.Commit(repo)
		if err != nil {
			return err
		}
		if hash.IsZero() {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to commit")
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hash.String()[:7], message)
		return err
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
