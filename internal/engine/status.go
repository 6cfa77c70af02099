// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"fmt"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

// Status synthesizes head, upstream, working tree and default branch from a
// single snapshot of repo. The returned remote is the one whose advertised
// HEAD supplied the default branch; it is nil when settings named the branch
// or no remote answered.
func (e *Engine) Status(ctx context.Context, repo *gitx.Repository, settings model.Settings) (model.RepositoryStatus, *gitx.Remote, error) {
	repo.Lock()
	defer repo.Unlock()
	return e.status(ctx, repo, settings)
}

func (e *Engine) status(ctx context.Context, repo *gitx.Repository, settings model.Settings) (model.RepositoryStatus, *gitx.Remote, error) {
	head, err := repo.HeadStatus()
	if err != nil {
		return model.RepositoryStatus{}, nil, err
	}
	upstream, err := repo.UpstreamStatus(head)
	if err != nil {
		return model.RepositoryStatus{}, nil, err
	}
	var tree model.WorkingTreeStatus
	if !repo.IsBare() {
		if tree, err = repo.WorkingTreeStatus(settings.Ignore); err != nil {
			return model.RepositoryStatus{}, nil, err
		}
	}
	branch, remote := e.TryDefaultBranch(ctx, repo, settings)
	e.log.Debug("status",
		"path", repo.Path(),
		"head", head.String(),
		"upstream", upstream.Kind,
		"changes", len(tree),
		"default_branch", model.Deref(branch, ""),
	)
	return model.RepositoryStatus{
		Head:          head,
		Upstream:      upstream,
		WorkingTree:   tree,
		DefaultBranch: branch,
	}, remote, nil
}

// TryDefaultBranch names the branch pull and resolve converge on:
// settings first, then the default remote's advertised HEAD. It never fails;
// any error along the way yields nil. The remote consulted is returned for
// reuse. It does not lock repo.
func (e *Engine) TryDefaultBranch(ctx context.Context, repo *gitx.Repository, settings model.Settings) (*string, *gitx.Remote) {
	if branch := model.Deref(settings.DefaultBranch, ""); branch != "" {
		return &branch, nil
	}
	remote, err := DefaultRemote(repo, settings)
	if err != nil {
		e.log.Debug("no default remote", "path", repo.Path(), "err", err)
		return nil, nil
	}
	branch, err := repo.ListRemote(ctx, remote, settings)
	if err != nil {
		e.log.Debug("list remote failed", "path", repo.Path(), "remote", remote.Name, "err", err)
		return nil, nil
	}
	if branch == "" {
		return nil, remote
	}
	return &branch, remote
}

// DefaultRemote picks the remote pull and push talk to: the one named by
// settings, else the only configured remote.
func DefaultRemote(repo *gitx.Repository, settings model.Settings) (*gitx.Remote, error) {
	if name := model.Deref(settings.DefaultRemote, ""); name != "" {
		return repo.Remote(name)
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}
	switch len(remotes) {
	case 0:
		return nil, gitx.ErrNoRemote
	case 1:
		return repo.Remote(remotes[0].Name)
	default:
		return nil, fmt.Errorf("%w: %d remotes and no default-remote setting", gitx.ErrAmbiguousRemote, len(remotes))
	}
}
