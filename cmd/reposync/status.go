// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/cliio"
	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/remotemismatch"
)

var statusCmd = &cobra.Command{
	Use:   "status [PATH...]",
	Short: "Report head, upstream, working tree and default branch",
	Long:  "Reports the status of the working copies at PATH (default: the current directory), or of every registered working copy with --all.",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting status")
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		kind, err := parseOutputKind(getStringFlag(cmd, "format"))
		if err != nil {
			return err
		}
		filter, ok := engine.ParseFilter(getStringFlag(cmd, "only"))
		if !ok {
			return fmt.Errorf("unsupported --only value %q", getStringFlag(cmd, "only"))
		}
		mode, err := remotemismatch.ParseReconcileMode(getStringFlag(cmd, "reconcile-remote-mismatch"))
		if err != nil {
			return err
		}
		all := getBoolFlag(cmd, "all")
		if mode != remotemismatch.ReconcileNone && !all {
			return fmt.Errorf("--reconcile-remote-mismatch requires --all")
		}
		override := settingsOverride(cmd)
		opts := engine.StatusOptions{
			Filter:      filter,
			Concurrency: getIntFlag(cmd, "concurrency"),
			Timeout:     getIntFlag(cmd, "timeout"),
			Settings:    override,
		}

		var report *model.StatusReport
		if all {
			if report, err = s.eng.StatusAll(cmd.Context(), opts); err != nil {
				return err
			}
			if mode != remotemismatch.ReconcileNone {
				if report, err = reconcileRemoteMismatch(cmd, s, report, mode, opts); err != nil {
					return err
				}
			}
		} else {
			report = inspectPaths(cmd, s, args, override)
		}

		setColorOutputMode(cmd, string(kind))
		handled, err := writeStructured(cmd, kind, report)
		if !handled {
			err = writeStatusTable(cmd, report, s.cwd, getBoolFlag(cmd, "no-headers"), kind == outputKindWide)
		}
		logOutputWriteFailure(cmd, "status", err)

		if all {
			raiseExitCode(statusExitCode(report, s.reg))
		} else {
			raiseExitCode(statusExitCode(report, nil))
		}
		infof(cmd, "status completed: %d repos", len(report.Repos))
		return nil
	},
}

// inspectPaths reports each path in order. Failures become error rows.
func inspectPaths(cmd *cobra.Command, s *session, args []string, override model.Settings) *model.StatusReport {
	if len(args) == 0 {
		args = []string{"."}
	}
	report := &model.StatusReport{GeneratedAt: time.Now()}
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			path = arg
		}
		repo, err := s.eng.InspectRepo(cmd.Context(), path, override)
		if err != nil {
			report.Repos = append(report.Repos, model.RepoReport{
				Path:       path,
				Error:      err.Error(),
				ErrorClass: gitx.ClassifyError(err),
			})
			continue
		}
		if entry := s.reg.FindByPath(repo.Path); entry != nil {
			repo.LastResolve = entry.LastResolve
		}
		report.Repos = append(report.Repos, *repo)
	}
	return report
}

func reconcileRemoteMismatch(cmd *cobra.Command, s *session, report *model.StatusReport, mode remotemismatch.ReconcileMode, opts engine.StatusOptions) (*model.StatusReport, error) {
	plans := remotemismatch.BuildPlans(report.Repos, s.reg, mode)
	if len(plans) == 0 {
		infof(cmd, "no remote mismatches to reconcile")
		return report, nil
	}
	dryRun := getBoolFlag(cmd, "dry-run")
	logOutputWriteFailure(cmd, "remote mismatch plan", writeRemoteMismatchPlan(cmd, plans, s.cwd, dryRun))
	if dryRun {
		return report, nil
	}
	if !getBoolFlag(cmd, "yes") {
		confirmed, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cmd.InOrStdin(), "Proceed with remote mismatch reconciliation? [y/N]: ")
		if err != nil {
			return nil, err
		}
		if !confirmed {
			infof(cmd, "remote mismatch reconcile cancelled")
			return report, nil
		}
	}
	if err := remotemismatch.ApplyPlans(plans, s.reg, mode, remotemismatch.GitURLSetter{}, nil); err != nil {
		return nil, err
	}
	if mode == remotemismatch.ReconcileRegistry {
		if err := s.saveRegistry(); err != nil {
			return nil, err
		}
	}
	return s.eng.StatusAll(cmd.Context(), opts)
}

func writeRemoteMismatchPlan(cmd *cobra.Command, plans []remotemismatch.Plan, cwd string, dryRun bool) error {
	label := "applying"
	if dryRun {
		label = "planned"
	}
	if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "Remote mismatch reconcile (%s):\n", label); err != nil {
		return err
	}
	rows := make([][]string, 0, len(plans))
	for _, plan := range plans {
		rows = append(rows, []string{
			displayRepoPath(plan.Path, cwd),
			plan.Action,
			plan.PrimaryRemote,
			plan.RepoRemoteURL,
			plan.RegistryURL,
		})
	}
	return cliio.WriteTable(cmd.ErrOrStderr(), false, false,
		[]string{"PATH", "ACTION", "PRIMARY_REMOTE", "GIT_REMOTE_URL", "REGISTRY_REMOTE_URL"}, rows)
}

func init() {
	statusCmd.Flags().Bool("all", false, "report every registered working copy")
	addFormatFlag(statusCmd, "output format: table, wide, json or yaml")
	addRepoFilterFlag(statusCmd)
	addNoHeadersFlag(statusCmd)
	addRunFlags(statusCmd)
	statusCmd.Flags().Bool("wrap", false, "do not truncate long paths")
	statusCmd.Flags().String("reconcile-remote-mismatch", "none", "with --all, reconcile origin URL drift: none, registry, git")
	statusCmd.Flags().Bool("dry-run", true, "preview reconcile actions without modifying registry or git remotes")
	statusCmd.Flags().BoolP("yes", "y", false, "apply reconcile actions without prompting")

	rootCmd.AddCommand(statusCmd)
}
