// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/cliio"
	"github.com/skaphos/reposync/internal/config"
	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
	"github.com/skaphos/reposync/internal/strutil"
)

var scanCmd = &cobra.Command{
	Use:   "scan [ROOT...]",
	Short: "Discover git working copies and update the registry",
	Long:  "Walks each ROOT (default: the config root) for git working copies and bare repositories and records them in the registry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting scan")
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		kind, err := parseOutputKind(getStringFlag(cmd, "format"))
		if err != nil {
			return err
		}
		roots := args
		if len(roots) == 0 {
			roots = []string{s.cwd}
			if s.cfgExists {
				roots = []string{config.ConfigRoot(s.cfgPath)}
			}
		}

		reports, err := s.eng.Scan(cmd.Context(), engine.ScanOptions{
			Roots:          roots,
			Exclude:        strutil.SplitCSV(getStringFlag(cmd, "exclude")),
			FollowSymlinks: getBoolFlag(cmd, "follow-symlinks"),
		})
		if err != nil {
			return err
		}
		if getBoolFlag(cmd, "prune-stale") {
			pruned := s.reg.PruneStale(time.Duration(s.cfg.RegistryStaleDays) * 24 * time.Hour)
			debugf(cmd, "pruned %d stale entries", pruned)
		}
		if getBoolFlag(cmd, "write-registry") {
			if err := s.saveRegistry(); err != nil {
				return err
			}
		}

		handled, err := writeStructured(cmd, kind, reports)
		if !handled {
			err = writeScanTable(cmd, reports, s.cwd, getBoolFlag(cmd, "no-headers"))
		}
		logOutputWriteFailure(cmd, "scan", err)

		if hasRegistryWarnings(s.reg) {
			raiseExitCode(1)
		}
		infof(cmd, "scan completed: %d repos", len(reports))
		return nil
	},
}

func writeScanTable(cmd *cobra.Command, reports []model.RepoReport, cwd string, noHeaders bool) error {
	rows := make([][]string, 0, len(reports))
	for _, repo := range reports {
		bare := "no"
		if repo.Bare {
			bare = "yes"
		}
		rows = append(rows, []string{repo.RepoID, displayRepoPath(repo.Path, cwd), bare, dash(repo.PrimaryRemote)})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, noHeaders, []string{"REPO", "PATH", "BARE", "PRIMARY_REMOTE"}, rows)
}

func hasRegistryWarnings(reg *registry.Registry) bool {
	for _, entry := range reg.Entries {
		if entry.Status == registry.StatusMissing || entry.Status == registry.StatusMoved {
			return true
		}
	}
	return false
}

func init() {
	scanCmd.Flags().String("exclude", "", "comma-separated glob patterns to exclude (default from config)")
	scanCmd.Flags().Bool("follow-symlinks", false, "follow symbolic links during scan")
	scanCmd.Flags().Bool("write-registry", true, "write discovered repos to the registry")
	scanCmd.Flags().Bool("prune-stale", false, "remove registry entries missing beyond the stale threshold")
	addFormatFlag(scanCmd, fmt.Sprintf("output format: %s, %s or %s", outputKindTable, outputKindJSON, outputKindYAML))
	addNoHeadersFlag(scanCmd)

	rootCmd.AddCommand(scanCmd)
}
