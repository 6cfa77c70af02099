// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/cliio"
	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
	"github.com/skaphos/reposync/internal/tableutil"
	"github.com/skaphos/reposync/internal/termstyle"
)

type outputKind string

const (
	outputKindTable outputKind = "table"
	outputKindWide  outputKind = "wide"
	outputKindJSON  outputKind = "json"
	outputKindYAML  outputKind = "yaml"
)

func parseOutputKind(format string) (outputKind, error) {
	switch kind := outputKind(strings.ToLower(strings.TrimSpace(format))); kind {
	case "", outputKindTable:
		return outputKindTable, nil
	case outputKindWide, outputKindJSON, outputKindYAML:
		return kind, nil
	case "yml":
		return outputKindYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected table, wide, json or yaml)", format)
	}
}

// writeStructured handles the json and yaml kinds. It reports false for
// tabular kinds, which each command renders itself.
func writeStructured(cmd *cobra.Command, kind outputKind, v any) (bool, error) {
	switch kind {
	case outputKindJSON:
		return true, cliio.WriteJSON(cmd.OutOrStdout(), v)
	case outputKindYAML:
		return true, cliio.WriteYAML(cmd.OutOrStdout(), v)
	default:
		return false, nil
	}
}

// logOutputWriteFailure notes a failed table or document write at -v.
// Readers that close early, like `head`, must not fail the command.
func logOutputWriteFailure(cmd *cobra.Command, context string, err error) {
	if err == nil {
		return
	}
	debugf(cmd, "ignored output write failure (%s): %v", context, err)
}

func writeStatusTable(cmd *cobra.Command, report *model.StatusReport, cwd string, noHeaders, wide bool) error {
	headers := []string{"PATH", "HEAD", "UPSTREAM", "CHANGES", "DEFAULT_BRANCH"}
	if wide {
		headers = append(headers, "PRIMARY_REMOTE", "LAST_RESOLVE", "ERROR_CLASS", "ERROR")
	}
	pathMax := pathCellLimit(cmd)
	rows := make([][]string, 0, len(report.Repos))
	for _, repo := range report.Repos {
		row := []string{
			tableutil.TruncateLeft(displayRepoPath(repo.Path, cwd), pathMax),
			displayHead(repo),
			displayUpstream(repo.Status),
			displayChanges(repo),
			displayDefaultBranch(repo.Status),
		}
		if wide {
			row = append(row,
				dash(repo.PrimaryRemote),
				displayLastResolve(repo.LastResolve),
				dash(repo.ErrorClass),
				dash(repo.Error),
			)
		}
		rows = append(rows, row)
	}
	return cliio.WriteTable(cmd.OutOrStdout(), true, noHeaders, headers, rows)
}

func displayHead(repo model.RepoReport) string {
	if repo.Status == nil {
		return "-"
	}
	head := repo.Status.Head
	if head.IsUnborn() {
		return termstyle.Colorize(colorOutputEnabled, head.String(), termstyle.ForOutcome("unborn"))
	}
	return head.String()
}

func displayUpstream(status *model.RepositoryStatus) string {
	if status == nil || status.Upstream.Kind != model.UpstreamTracking {
		return "-"
	}
	up := status.Upstream
	name := strings.TrimPrefix(up.Ref, "refs/remotes/")
	switch {
	case up.Ahead > 0 && up.Behind > 0:
		return termstyle.Colorize(colorOutputEnabled, fmt.Sprintf("%s +%d/-%d", name, up.Ahead, up.Behind), termstyle.ForOutcome("diverged"))
	case up.Ahead > 0:
		return fmt.Sprintf("%s +%d", name, up.Ahead)
	case up.Behind > 0:
		return fmt.Sprintf("%s -%d", name, up.Behind)
	default:
		return name
	}
}

func displayChanges(repo model.RepoReport) string {
	switch {
	case repo.Error != "":
		return termstyle.Colorize(colorOutputEnabled, dash(repo.ErrorClass), termstyle.ForOutcome("error"))
	case repo.Status == nil:
		return "-"
	case repo.Bare:
		return "bare"
	case repo.Status.WorkingTree.Clean():
		return termstyle.Colorize(colorOutputEnabled, "clean", termstyle.ForOutcome("clean"))
	default:
		return termstyle.Colorize(colorOutputEnabled, fmt.Sprintf("%d changed", len(repo.Status.WorkingTree)), termstyle.ForOutcome("dirty"))
	}
}

func displayDefaultBranch(status *model.RepositoryStatus) string {
	if status == nil {
		return "-"
	}
	return model.Deref(status.DefaultBranch, "?")
}

func displayLastResolve(rec *model.ResolveRecord) string {
	if rec == nil {
		return "-"
	}
	state := "ok"
	switch {
	case rec.Error != "":
		state = "failed"
	case !rec.OK:
		state = "diverged"
	}
	return state + " " + rec.At.Local().Format(time.DateTime)
}

func dash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func writeRunTable(cmd *cobra.Command, results []engine.RunResult, cwd string, noHeaders bool) error {
	pathMax := pathCellLimit(cmd)
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			tableutil.TruncateLeft(displayRepoPath(res.Path, cwd), pathMax),
			termstyle.Colorize(colorOutputEnabled, string(res.Outcome), termstyle.ForOutcome(string(res.Outcome))),
			dash(res.ErrorClass),
			dash(res.Error),
		})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), true, noHeaders, []string{"PATH", "OUTCOME", "ERROR_CLASS", "ERROR"}, rows)
}

// statusExitCode maps a report to the severity ladder: errors are 2; dirty
// trees, diverged branches and missing registry entries are 1.
func statusExitCode(report *model.StatusReport, reg *registry.Registry) int {
	code := 0
	for _, repo := range report.Repos {
		switch {
		case repo.Error != "" && repo.ErrorClass != "missing":
			code = 2
		case code >= 1:
		case repo.Error != "":
			code = 1
		case repo.Status != nil && !repo.Status.WorkingTree.Clean():
			code = 1
		case repo.Status != nil && repo.Status.Upstream.Ahead > 0 && repo.Status.Upstream.Behind > 0:
			code = 1
		}
	}
	if code < 1 && reg != nil {
		for _, entry := range reg.Entries {
			if entry.Status == registry.StatusMissing || entry.Status == registry.StatusMoved {
				code = 1
				break
			}
		}
	}
	return code
}

// runExitCode maps resolve run results: failures are 2, divergence and
// skipped missing paths are 1.
func runExitCode(results []engine.RunResult) int {
	code := 0
	for _, res := range results {
		switch res.Outcome {
		case engine.OutcomeFailedOpen, engine.OutcomeFailedResolve:
			return 2
		case engine.OutcomeDiverged, engine.OutcomeSkippedMissing:
			code = 1
		}
	}
	return code
}

func displayRepoPath(repoPath, cwd string) string {
	if repoPath == "" {
		return repoPath
	}
	if rel, ok := relWithin(cwd, repoPath); ok {
		return rel
	}
	return repoPath
}

func relWithin(base, target string) (string, bool) {
	if strings.TrimSpace(base) == "" || strings.TrimSpace(target) == "" {
		return "", false
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
