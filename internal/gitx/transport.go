// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/skaphos/reposync/internal/model"
)

// PrunePolicy controls deletion of remote-tracking refs gone from the remote.
type PrunePolicy int

const (
	// PruneUnspecified defers to remote.<name>.prune, then fetch.prune.
	PruneUnspecified PrunePolicy = iota
	PruneOn
	PruneOff
)

// PruneFromSettings maps the optional settings flag onto a policy.
func PruneFromSettings(prune *bool) PrunePolicy {
	switch {
	case prune == nil:
		return PruneUnspecified
	case *prune:
		return PruneOn
	default:
		return PruneOff
	}
}

// FetchOptions configures Fetch.
type FetchOptions struct {
	Settings model.Settings
	Prune    PrunePolicy
	// Progress receives transfer updates. Counters never decrease within a stage.
	Progress func(model.Progress)
}

// FetchResult summarizes one fetch. It holds no connection state.
type FetchResult struct {
	Remote   string
	UpToDate bool
}

// ListRemote connects to remote without fetching and returns the branch its
// HEAD points at. An empty remote, or one that does not advertise HEAD,
// yields "".
func (r *Repository) ListRemote(ctx context.Context, remote *Remote, settings model.Settings) (string, error) {
	if err := cancelled(ctx); err != nil {
		return "", err
	}
	rem := git.NewRemote(r.repo.Storer, &config.RemoteConfig{Name: remote.Name, URLs: []string{remote.URL}})
	var refs []*plumbing.Reference
	err := r.negotiate(remote, settings, func(auth transport.AuthMethod) error {
		var err error
		refs, err = rem.ListContext(ctx, &git.ListOptions{Auth: auth})
		return err
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return "", nil
		}
		if c := cancelled(ctx); c != nil {
			return "", c
		}
		return "", err
	}
	advertised := make(map[plumbing.ReferenceName]bool, len(refs))
	var target plumbing.ReferenceName
	for _, ref := range refs {
		advertised[ref.Name()] = true
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
			target = ref.Target()
		}
	}
	// Some servers advertise HEAD for a repository with no branches yet.
	if target == "" || !advertised[target] {
		return "", nil
	}
	return target.Short(), nil
}

// Fetch downloads all branches and tags from remote into
// refs/remotes/<remote>/*.
func (r *Repository) Fetch(ctx context.Context, remote *Remote, opts FetchOptions) (FetchResult, error) {
	if err := cancelled(ctx); err != nil {
		return FetchResult{}, wrap(ErrFetchFailed, err)
	}
	prune, err := r.resolvePrune(remote.Name, opts.Prune)
	if err != nil {
		return FetchResult{}, wrap(ErrFetchFailed, err)
	}
	rem := git.NewRemote(r.repo.Storer, &config.RemoteConfig{Name: remote.Name, URLs: []string{remote.URL}})
	result := FetchResult{Remote: remote.Name}
	err = r.negotiate(remote, opts.Settings, func(auth transport.AuthMethod) error {
		fo := &git.FetchOptions{
			RemoteName: remote.Name,
			RefSpecs:   []config.RefSpec{fetchRefSpec(remote.Name)},
			Tags:       git.AllTags,
			Auth:       auth,
			Prune:      prune,
		}
		if opts.Progress != nil {
			fo.Progress = NewProgressWriter(opts.Progress)
		}
		return rem.FetchContext(ctx, fo)
	})
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		result.UpToDate = true
	default:
		if c := cancelled(ctx); c != nil {
			return result, wrap(ErrFetchFailed, c)
		}
		return result, wrap(ErrFetchFailed, err)
	}
	return result, nil
}

// Push updates refs/heads/<branch> on remote from the local branch. A remote
// that already has the commit counts as success.
func (r *Repository) Push(ctx context.Context, remote *Remote, branch string, settings model.Settings) error {
	if err := cancelled(ctx); err != nil {
		return wrap(ErrPushFailed, err)
	}
	ref := plumbing.NewBranchReferenceName(branch)
	rem := git.NewRemote(r.repo.Storer, &config.RemoteConfig{Name: remote.Name, URLs: []string{remote.URL}})
	err := r.negotiate(remote, settings, func(auth transport.AuthMethod) error {
		return rem.PushContext(ctx, &git.PushOptions{
			RemoteName: remote.Name,
			RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
			Auth:       auth,
		})
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if c := cancelled(ctx); c != nil {
		return wrap(ErrPushFailed, c)
	}
	return wrap(ErrPushFailed, err)
}

func (r *Repository) resolvePrune(remote string, policy PrunePolicy) (bool, error) {
	switch policy {
	case PruneOn:
		return true, nil
	case PruneOff:
		return false, nil
	}
	v, err := r.ConfigValue("remote", remote, "prune")
	if err != nil {
		return false, err
	}
	if v == "" {
		if v, err = r.ConfigValue("fetch", "", "prune"); err != nil {
			return false, err
		}
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}
