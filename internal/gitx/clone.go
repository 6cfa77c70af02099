// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"os"

	"github.com/skaphos/reposync/internal/model"
)

// CloneOptions configures Clone.
type CloneOptions struct {
	// RemoteName defaults to "origin".
	RemoteName string
	// Token is persisted as remote.<name>.token and sent to HTTP(S) remotes.
	Token    string
	Settings model.Settings
	Progress func(model.Progress)
}

// Clone creates a working copy of url at path. The local HEAD follows the
// remote's HEAD. An empty remote is not an error: the result is an unborn
// repository on the settings default branch with the remote configured.
func Clone(ctx context.Context, url, path string, opts CloneOptions) (*Repository, error) {
	name := opts.RemoteName
	if name == "" {
		name = "origin"
	}
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, os.ErrNotExist)

	repo, err := cloneInto(ctx, url, path, name, opts)
	if err != nil && created {
		_ = os.RemoveAll(path)
	}
	return repo, err
}

func cloneInto(ctx context.Context, url, path, name string, opts CloneOptions) (*Repository, error) {
	branch := model.Deref(opts.Settings.DefaultBranch, DefaultBranch)
	repo, err := Init(path, branch)
	if err != nil {
		return nil, err
	}
	var token *string
	if opts.Token != "" {
		token = &opts.Token
	}
	if err := repo.SetOrigin(name, model.Origin{URL: url, Token: token}); err != nil {
		return nil, err
	}
	remote, err := repo.Remote(name)
	if err != nil {
		return nil, err
	}
	advertised, err := repo.ListRemote(ctx, remote, opts.Settings)
	if err != nil {
		return nil, wrap(ErrFetchFailed, err)
	}
	if advertised == "" {
		return repo, nil
	}
	if advertised != branch {
		if err := repo.SwitchBranch(advertised); err != nil {
			return nil, err
		}
	}
	if _, err := repo.Fetch(ctx, remote, FetchOptions{Settings: opts.Settings, Progress: opts.Progress}); err != nil {
		return nil, err
	}
	_, tip, err := repo.MergeTarget(name, advertised, advertised)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateBranchAt(name, advertised, tip); err != nil {
		return nil, err
	}
	return repo, nil
}
