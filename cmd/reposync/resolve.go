// SPDX-License-Identifier: MIT
package reposync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/termstyle"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [PATH]",
	Short: "Reconcile the current branch with its origin in both directions",
	Long: `Fetches from the origin, fast-forwards or bootstraps the local branch where
history allows, then pushes local commits. Diverged histories are reported
and left untouched. Without --url or --origin-file the persisted origin is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if getBoolFlag(cmd, "all") {
			return runResolveAll(cmd)
		}
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		origin, explicit, err := originFromFlags(cmd)
		if err != nil {
			return err
		}
		repo, err := openRepo(repoPath(args, 0))
		if err != nil {
			return err
		}
		opts := engine.ResolveOptions{Settings: s.settings(cmd), Progress: progressPrinter(cmd)}
		var result model.ResolveResult
		if explicit {
			result, err = s.eng.Resolve(cmd.Context(), repo, origin, opts)
		} else {
			result, err = s.eng.Sync(cmd.Context(), repo, opts)
		}
		return reportResolve(cmd, s, repo.Path(), result, err)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [PATH]",
	Short: "Resolve against the origin persisted for the default remote",
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
		result, err := s.eng.Sync(cmd.Context(), repo, engine.ResolveOptions{
			Settings: s.settings(cmd),
			Progress: progressPrinter(cmd),
		})
		return reportResolve(cmd, s, repo.Path(), result, err)
	},
}

// originFromFlags builds the origin from --url/--token or --origin-file.
// explicit is false when neither was given.
func originFromFlags(cmd *cobra.Command) (model.Origin, bool, error) {
	url := getStringFlag(cmd, "url")
	file := getStringFlag(cmd, "origin-file")
	if url != "" && file != "" {
		return model.Origin{}, false, errors.New("--url and --origin-file are mutually exclusive")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return model.Origin{}, false, err
		}
		var origin model.Origin
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
			origin, err = model.DecodeOriginYAML(data)
		default:
			origin, err = model.DecodeOrigin(data)
		}
		if err != nil {
			return model.Origin{}, false, fmt.Errorf("%s: %w", file, err)
		}
		if token := getStringFlag(cmd, "token"); token != "" {
			origin.Token = &token
		}
		return origin, true, nil
	}
	if url == "" {
		if getStringFlag(cmd, "token") != "" {
			return model.Origin{}, false, errors.New("--token requires --url or --origin-file")
		}
		return model.Origin{}, false, nil
	}
	return model.Origin{URL: url, Token: model.StringPtr(getStringFlag(cmd, "token"))}, true, nil
}

// reportResolve records the outcome in the registry and prints it.
// Divergence raises the exit code without failing the command.
func reportResolve(cmd *cobra.Command, s *session, path string, result model.ResolveResult, resolveErr error) error {
	rec := model.ResolveRecord{OK: result.OK, At: time.Now()}
	if resolveErr != nil {
		rec.Error = resolveErr.Error()
	}
	s.recordResolve(cmd, path, rec)
	if resolveErr != nil {
		return resolveErr
	}

	kind, err := parseOutputKind(getStringFlag(cmd, "format"))
	if err != nil {
		return err
	}
	if !result.OK {
		raiseExitCode(1)
	}
	if handled, err := writeStructured(cmd, kind, result); handled {
		return err
	}
	setColorOutputMode(cmd, string(kind))
	outcome := string(engine.OutcomeResolved)
	if !result.OK {
		outcome = string(engine.OutcomeDiverged)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
		displayRepoPath(path, s.cwd),
		termstyle.Colorize(colorOutputEnabled, outcome, termstyle.ForOutcome(outcome)))
	return err
}

func runResolveAll(cmd *cobra.Command) error {
	s, err := loadSession(cmd)
	if err != nil {
		return err
	}
	kind, err := parseOutputKind(getStringFlag(cmd, "format"))
	if err != nil {
		return err
	}
	if getStringFlag(cmd, "url") != "" || getStringFlag(cmd, "origin-file") != "" {
		return errors.New("--all resolves each repo against its persisted origin; --url and --origin-file are not allowed")
	}
	results, err := s.eng.ResolveAll(cmd.Context(), engine.ResolveAllOptions{
		Concurrency:     getIntFlag(cmd, "concurrency"),
		Timeout:         getIntFlag(cmd, "timeout"),
		ContinueOnError: getBoolFlag(cmd, "continue-on-error"),
		Settings:        settingsOverride(cmd),
		OnResult: func(res engine.RunResult) {
			debugf(cmd, "%s: %s", res.Path, res.Outcome)
		},
	})
	if err != nil {
		return err
	}
	if s.cfgExists {
		if err := s.saveRegistry(); err != nil {
			infof(cmd, "warning: could not save registry: %v", err)
		}
	}

	setColorOutputMode(cmd, string(kind))
	handled, err := writeStructured(cmd, kind, results)
	if !handled {
		err = writeRunTable(cmd, results, s.cwd, getBoolFlag(cmd, "no-headers"))
	}
	logOutputWriteFailure(cmd, "resolve", err)
	raiseExitCode(runExitCode(results))
	infof(cmd, "resolve completed: %d repos", len(results))
	return nil
}

func init() {
	resolveCmd.Flags().String("url", "", "origin URL to write into the remote before resolving")
	resolveCmd.Flags().String("token", "", "access token for HTTPS remotes; used for this call only")
	resolveCmd.Flags().String("origin-file", "", "read the origin from a JSON or YAML file")
	resolveCmd.Flags().Bool("all", false, "resolve every registered working copy against its persisted origin")
	resolveCmd.Flags().Bool("continue-on-error", false, "with --all, run concurrently and keep going after failures")
	addRunFlags(resolveCmd)
	addFormatFlag(resolveCmd, "output format: table, json or yaml")
	addNoHeadersFlag(resolveCmd)

	addFormatFlag(syncCmd, "output format: table, json or yaml")

	rootCmd.AddCommand(resolveCmd, syncCmd)
}
