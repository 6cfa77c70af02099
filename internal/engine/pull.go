// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

// PullOptions configures Pull.
type PullOptions struct {
	Settings model.Settings
	// Status is a snapshot taken by Status. Nil computes a fresh one.
	Status *model.RepositoryStatus
	// Remote is reused when already resolved, typically by Status.
	Remote *gitx.Remote
	// Switch checks out the default branch when HEAD is on another branch.
	Switch   bool
	Progress func(model.Progress)
}

// Pull brings the local default branch up to the remote's tip. It only
// ever fast-forwards or bootstraps an unborn branch.
func (e *Engine) Pull(ctx context.Context, repo *gitx.Repository, opts PullOptions) (model.PullOutcome, error) {
	repo.Lock()
	defer repo.Unlock()

	status, remote := opts.Status, opts.Remote
	if status == nil {
		st, rem, err := e.status(ctx, repo, opts.Settings)
		if err != nil {
			return model.PullOutcome{}, err
		}
		status = &st
		if remote == nil {
			remote = rem
		}
	}
	if remote == nil {
		var err error
		if remote, err = DefaultRemote(repo, opts.Settings); err != nil {
			return model.PullOutcome{}, err
		}
	}

	branch := model.Deref(status.DefaultBranch, "")
	if branch == "" {
		advertised, err := repo.ListRemote(ctx, remote, opts.Settings)
		if err != nil {
			return model.PullOutcome{}, fmt.Errorf("%w: %w", gitx.ErrUnknownDefaultBranch, err)
		}
		if advertised == "" {
			return model.PullOutcome{}, fmt.Errorf("%w: remote %s advertises no HEAD", gitx.ErrUnknownDefaultBranch, remote.Name)
		}
		branch = advertised
	}

	if err := onDefaultBranch(repo, status.Head, branch, opts.Switch); err != nil {
		return model.PullOutcome{}, err
	}

	log := e.log.With("path", repo.Path(), "remote", remote.Name, "branch", branch)
	if _, err := repo.Fetch(ctx, remote, e.fetchOptions(opts.Settings, opts.Progress)); err != nil {
		return model.PullOutcome{}, err
	}
	_, tip, err := repo.MergeTarget(remote.Name, branch, branch)
	if err != nil {
		return model.PullOutcome{}, err
	}
	analysis, err := repo.Classify(tip)
	if err != nil {
		return model.PullOutcome{}, err
	}
	log.Debug("merge analysis", "analysis", analysis.String(), "tip", tip.String())

	state, err := apply(repo, remote.Name, branch, analysis, tip)
	if err != nil {
		return model.PullOutcome{}, err
	}
	log.Debug("pull complete", "outcome", state)
	return model.PullOutcome{State: state, Branch: branch}, nil
}

// onDefaultBranch enforces the branch guard, switching when allowed.
func onDefaultBranch(repo *gitx.Repository, head model.HeadStatus, branch string, switchBranch bool) error {
	if head.OnBranch(branch) {
		return nil
	}
	if !switchBranch {
		return fmt.Errorf("%w: HEAD is %s, default branch is %s", gitx.ErrNotOnDefaultBranch, head.String(), branch)
	}
	if head.IsDetached() {
		return fmt.Errorf("%w: cannot switch to %s", gitx.ErrDetachedHead, branch)
	}
	return repo.SwitchBranch(branch)
}

// apply converges the local branch according to analysis. Diverged is an
// error here; Resolve intercepts it before calling apply.
func apply(repo *gitx.Repository, remote, branch string, analysis gitx.MergeAnalysis, tip plumbing.Hash) (model.PullState, error) {
	switch analysis {
	case gitx.AnalysisUpToDate:
		return model.PullUpToDate, nil
	case gitx.AnalysisUnborn:
		if err := repo.CreateBranchAt(remote, branch, tip); err != nil {
			return "", err
		}
		return model.PullCreatedUnborn, nil
	case gitx.AnalysisFastForward:
		if err := repo.FastForward(tip); err != nil {
			return "", err
		}
		return model.PullFastForwarded, nil
	case gitx.AnalysisDiverged:
		return "", fmt.Errorf("%w: %s and %s/%s", gitx.ErrCannotFastForward, branch, remote, branch)
	default:
		return "", fmt.Errorf("unhandled merge analysis %s", analysis)
	}
}

func (e *Engine) fetchOptions(settings model.Settings, progress func(model.Progress)) gitx.FetchOptions {
	return gitx.FetchOptions{
		Settings: settings,
		Prune:    gitx.PruneFromSettings(settings.Prune),
		Progress: progress,
	}
}
