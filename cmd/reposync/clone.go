// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/registry"
)

var cloneCmd = &cobra.Command{
	Use:   "clone URL [PATH]",
	Short: "Clone a remote and track its default branch",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		url := args[0]
		dest := cloneDestination(url)
		if len(args) > 1 {
			dest = args[1]
		}
		if dest, err = filepath.Abs(dest); err != nil {
			return err
		}

		repo, err := s.eng.Clone(cmd.Context(), url, dest, engine.CloneOptions{
			Token:    getStringFlag(cmd, "token"),
			Settings: s.settings(cmd),
			Progress: progressPrinter(cmd),
		})
		if err != nil {
			return err
		}
		head, err := repo.HeadStatus()
		if err != nil {
			return err
		}

		if s.cfgExists && getBoolFlag(cmd, "register") {
			s.reg.Upsert(registry.Entry{
				RepoID:    gitx.NormalizeURL(url),
				Path:      repo.Path(),
				RemoteURL: url,
				Type:      "checkout",
				Branch:    head.Name,
				LastSeen:  time.Now(),
				Status:    registry.StatusPresent,
			})
			if err := s.saveRegistry(); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s into %s (%s)\n", url, repo.Path(), head.String())
		return err
	},
}

// cloneDestination derives a directory name from the last URL segment.
func cloneDestination(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	if i := strings.LastIndex(trimmed, ":"); i >= 0 && !strings.Contains(trimmed[i:], "/") {
		trimmed = trimmed[i+1:]
	}
	base := strings.TrimSuffix(path.Base(trimmed), ".git")
	if base == "" || base == "." || base == "/" {
		return "repo"
	}
	return base
}

func init() {
	cloneCmd.Flags().String("token", "", "access token for HTTPS remotes; not persisted")
	cloneCmd.Flags().Bool("register", true, "record the clone in the registry when a config exists")
	rootCmd.AddCommand(cloneCmd)
}
