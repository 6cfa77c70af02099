// SPDX-License-Identifier: MIT
package engine

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

// Init creates a repository whose HEAD names the configured default branch.
func (e *Engine) Init(path string, bare bool, settings model.Settings) (*gitx.Repository, error) {
	branch := model.Deref(settings.DefaultBranch, e.defaults().Branch)
	e.log.Debug("init", "path", path, "bare", bare, "branch", branch)
	if bare {
		return gitx.InitBare(path, branch)
	}
	return gitx.Init(path, branch)
}

// CloneOptions configures Clone.
type CloneOptions struct {
	Token    string
	Settings model.Settings
	Progress func(model.Progress)
}

// Clone creates a working copy of url at path on the configured remote name.
func (e *Engine) Clone(ctx context.Context, url, path string, opts CloneOptions) (*gitx.Repository, error) {
	if err := (model.Origin{URL: url}).Validate(); err != nil {
		return nil, err
	}
	d := e.defaults()
	settings := opts.Settings
	if settings.DefaultBranch == nil {
		settings.DefaultBranch = &d.Branch
	}
	remote := model.Deref(opts.Settings.DefaultRemote, d.RemoteName)
	e.log.Debug("clone", "url", url, "path", path, "remote", remote)
	return gitx.Clone(ctx, url, path, gitx.CloneOptions{
		RemoteName: remote,
		Token:      opts.Token,
		Settings:   settings,
		Progress:   opts.Progress,
	})
}

// Commit stages every change and commits it. The message lists the new and
// modified paths. It returns the zero hash when there was nothing to commit.
func (e *Engine) Commit(repo *gitx.Repository) (plumbing.Hash, string, error) {
	repo.Lock()
	defer repo.Unlock()
	message, err := repo.AddAll()
	if err != nil {
		return plumbing.ZeroHash, "", err
	}
	sig, err := e.signature(repo)
	if err != nil {
		return plumbing.ZeroHash, "", err
	}
	h, err := repo.Commit(message, sig)
	if err != nil {
		return plumbing.ZeroHash, "", err
	}
	if !h.IsZero() && message == "" {
		message = gitx.InitialCommitMessage
	}
	e.log.Debug("commit", "path", repo.Path(), "hash", h.String(), "message", message)
	return h, message, nil
}

// signature prefers the repository's user.name/user.email over the
// configured defaults.
func (e *Engine) signature(repo *gitx.Repository) (gitx.Signature, error) {
	name, email, err := repo.Identity()
	if err != nil {
		return gitx.Signature{}, err
	}
	d := e.defaults()
	if name == "" {
		name = d.AuthorName
	}
	if email == "" {
		email = d.AuthorEmail
	}
	return gitx.Signature{Name: name, Email: email}, nil
}
