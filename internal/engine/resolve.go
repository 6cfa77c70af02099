// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

// ResolveOptions configures Resolve and Sync.
type ResolveOptions struct {
	Settings model.Settings
	Progress func(model.Progress)
}

// Resolve reconciles the current branch with origin in both directions:
// fetch, converge locally where history allows, then push. OK is false only
// when the histories diverged and the push still went through. A rejected
// push is ErrPushFailed, diverged or not.
//
// A fetch failure does not stop the push. It is returned only when the push
// fails too, or when there is nothing local to push.
func (e *Engine) Resolve(ctx context.Context, repo *gitx.Repository, origin model.Origin, opts ResolveOptions) (model.ResolveResult, error) {
	if err := origin.Validate(); err != nil {
		return model.ResolveResult{}, err
	}
	repo.Lock()
	defer repo.Unlock()
	return e.resolve(ctx, repo, origin, opts)
}

// Sync runs Resolve against the origin persisted for the default remote.
func (e *Engine) Sync(ctx context.Context, repo *gitx.Repository, opts ResolveOptions) (model.SyncResult, error) {
	repo.Lock()
	defer repo.Unlock()
	remote, err := DefaultRemote(repo, opts.Settings)
	if err != nil {
		return model.SyncResult{}, err
	}
	origin, err := repo.GetOrigin(remote.Name)
	if err != nil {
		return model.SyncResult{}, err
	}
	if err := origin.Validate(); err != nil {
		return model.SyncResult{}, fmt.Errorf("remote %s: %w", remote.Name, err)
	}
	opts.Settings.DefaultRemote = &remote.Name
	return e.resolve(ctx, repo, origin, opts)
}

func (e *Engine) resolve(ctx context.Context, repo *gitx.Repository, origin model.Origin, opts ResolveOptions) (model.ResolveResult, error) {
	name, err := e.resolveRemoteName(repo, opts.Settings)
	if err != nil {
		return model.ResolveResult{}, err
	}
	remote, err := repo.EnsureRemote(name, origin.URL)
	if err != nil {
		return model.ResolveResult{}, err
	}
	// The token travels with this call only; SetOrigin persists it.
	remote.Token = ""
	if origin.HasToken() {
		remote.Token = *origin.Token
	}

	head, err := repo.HeadStatus()
	if err != nil {
		return model.ResolveResult{}, err
	}
	if head.IsDetached() {
		return model.ResolveResult{}, fmt.Errorf("%w: nothing to resolve", gitx.ErrDetachedHead)
	}
	branch := head.Name
	log := e.log.With("path", repo.Path(), "remote", remote.Name, "branch", branch)

	result := model.ResolveResult{OK: true}
	_, fetchErr := repo.Fetch(ctx, remote, e.fetchOptions(opts.Settings, opts.Progress))
	if fetchErr != nil {
		log.Debug("fetch failed, continuing with push", "err", fetchErr)
	} else {
		ok, err := e.converge(repo, remote.Name, branch)
		if err != nil {
			return model.ResolveResult{}, err
		}
		result.OK = ok
	}

	if head, err = repo.HeadStatus(); err != nil {
		return model.ResolveResult{}, err
	}
	if head.IsUnborn() {
		if fetchErr == nil || gitx.IsEmptyRemote(fetchErr) {
			log.Debug("nothing to push")
			return model.ResolveResult{OK: true}, nil
		}
		return model.ResolveResult{}, fetchErr
	}

	if err := repo.Push(ctx, remote, branch, opts.Settings); err != nil {
		log.Debug("push failed", "diverged", !result.OK, "err", err)
		if fetchErr != nil {
			return model.ResolveResult{}, fetchErr
		}
		return model.ResolveResult{}, err
	}
	log.Debug("resolve complete", "ok", result.OK)
	return result, nil
}

// converge applies the fetched tip to branch. It reports false when the
// histories diverged and were left as they are.
func (e *Engine) converge(repo *gitx.Repository, remote, branch string) (bool, error) {
	_, tip, err := repo.MergeTarget(remote, branch, branch)
	if errors.Is(err, gitx.ErrNoMergeTarget) {
		// The remote does not have this branch yet; the push creates it.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	analysis, err := repo.Classify(tip)
	if err != nil {
		return false, err
	}
	e.log.Debug("merge analysis", "path", repo.Path(), "analysis", analysis.String())
	if analysis == gitx.AnalysisDiverged {
		return false, nil
	}
	if _, err := apply(repo, remote, branch, analysis, tip); err != nil {
		return false, err
	}
	return true, nil
}

// resolveRemoteName picks the remote Resolve writes the origin into.
func (e *Engine) resolveRemoteName(repo *gitx.Repository, settings model.Settings) (string, error) {
	if name := model.Deref(settings.DefaultRemote, ""); name != "" {
		return name, nil
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return "", err
	}
	if len(remotes) == 1 {
		return remotes[0].Name, nil
	}
	return e.defaults().RemoteName, nil
}

// Push publishes the current branch to the default remote without fetching.
// An unborn branch has nothing to publish.
func (e *Engine) Push(ctx context.Context, repo *gitx.Repository, settings model.Settings) error {
	repo.Lock()
	defer repo.Unlock()
	remote, err := DefaultRemote(repo, settings)
	if err != nil {
		return err
	}
	head, err := repo.HeadStatus()
	if err != nil {
		return err
	}
	switch head.Kind {
	case model.HeadDetached:
		return fmt.Errorf("%w: nothing to push", gitx.ErrDetachedHead)
	case model.HeadUnborn:
		return nil
	}
	return repo.Push(ctx, remote, head.Name, settings)
}
