// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skaphos/reposync/internal/model"
)

const tokenKey = "token"

// Remote is a resolved remote descriptor. It is a plain value; every
// transfer opens and closes its own connection.
type Remote struct {
	Name string
	URL  string
	// Token is the bearer token sent to HTTP(S) remotes. Empty means none.
	Token string
}

// HeadStatus reports where HEAD points.
func (r *Repository) HeadStatus() (model.HeadStatus, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return model.HeadStatus{}, backendErr("read HEAD", err)
	}
	switch head.Type() {
	case plumbing.HashReference:
		return model.DetachedHead(head.Hash().String()), nil
	case plumbing.SymbolicReference:
		target := head.Target()
		_, err := r.repo.Reference(target, true)
		switch {
		case errors.Is(err, plumbing.ErrReferenceNotFound):
			return model.UnbornHead(target.Short()), nil
		case err != nil:
			return model.HeadStatus{}, backendErr("resolve "+target.String(), err)
		}
		return model.BranchHead(target.Short()), nil
	default:
		return model.HeadStatus{}, backendErr("read HEAD", plumbing.ErrInvalidType)
	}
}

// HeadCommit returns the commit HEAD resolves to, or the zero hash when unborn.
func (r *Repository) HeadCommit() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, backendErr("resolve HEAD", err)
	}
	return ref.Hash(), nil
}

// BranchExists reports whether refs/heads/<branch> exists.
func (r *Repository) BranchExists(branch string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, backendErr("read branch "+branch, err)
	}
	return true, nil
}

// Remotes returns every configured remote sorted by name.
func (r *Repository) Remotes() ([]model.Remote, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, backendErr("read config", err)
	}
	out := make([]model.Remote, 0, len(cfg.Remotes))
	for name, rc := range cfg.Remotes {
		url := ""
		if len(rc.URLs) > 0 {
			url = rc.URLs[0]
		}
		out = append(out, model.Remote{Name: name, URL: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remote returns the descriptor for name, including its persisted token.
func (r *Repository) Remote(name string) (*Remote, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, backendErr("read config", err)
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRemote, name)
	}
	remote := &Remote{Name: name}
	if len(rc.URLs) > 0 {
		remote.URL = rc.URLs[0]
	}
	remote.Token = strings.TrimSpace(cfg.Raw.Section("remote").Subsection(name).Option(tokenKey))
	return remote, nil
}

// EnsureRemote creates name pointing at url, or rewrites its URL when it
// already exists.
func (r *Repository) EnsureRemote(name, url string) (*Remote, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, backendErr("read config", err)
	}
	if rc, ok := cfg.Remotes[name]; ok {
		if len(rc.URLs) != 1 || rc.URLs[0] != url {
			rc.URLs = []string{url}
			if err := r.repo.SetConfig(cfg); err != nil {
				return nil, backendErr("write config", err)
			}
		}
		return r.Remote(name)
	}
	_, err = r.repo.CreateRemote(&config.RemoteConfig{
		Name:  name,
		URLs:  []string{url},
		Fetch: []config.RefSpec{fetchRefSpec(name)},
	})
	if err != nil && !errors.Is(err, git.ErrRemoteExists) {
		return nil, backendErr("create remote "+name, err)
	}
	return r.Remote(name)
}

// GetOrigin reads the URL and persisted token of remote name.
func (r *Repository) GetOrigin(name string) (model.Origin, error) {
	remote, err := r.Remote(name)
	if err != nil {
		return model.Origin{}, err
	}
	origin := model.Origin{URL: remote.URL}
	if remote.Token != "" {
		token := remote.Token
		origin.Token = &token
	}
	return origin, nil
}

// SetOrigin writes origin to remote name, creating it when missing. A nil
// or empty token clears remote.<name>.token.
func (r *Repository) SetOrigin(name string, origin model.Origin) error {
	if err := origin.Validate(); err != nil {
		return err
	}
	if _, err := r.EnsureRemote(name, origin.URL); err != nil {
		return err
	}
	cfg, err := r.repo.Config()
	if err != nil {
		return backendErr("read config", err)
	}
	sub := cfg.Raw.Section("remote").Subsection(name)
	if origin.HasToken() {
		sub.SetOption(tokenKey, strings.TrimSpace(*origin.Token))
	} else {
		sub.RemoveOption(tokenKey)
	}
	if err := r.repo.SetConfig(cfg); err != nil {
		return backendErr("write config", err)
	}
	return nil
}

// SetUpstream records refs/heads/<branch> on remote as branch's upstream.
func (r *Repository) SetUpstream(branch, remote string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return backendErr("read config", err)
	}
	cfg.Branches[branch] = &config.Branch{
		Name:   branch,
		Remote: remote,
		Merge:  plumbing.NewBranchReferenceName(branch),
	}
	if err := r.repo.SetConfig(cfg); err != nil {
		return backendErr("write config", err)
	}
	return nil
}

// upstreamRef returns the remote-tracking ref configured for branch, if any.
func (r *Repository) upstreamRef(branch string) (remote string, ref plumbing.ReferenceName, ok bool, err error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", "", false, backendErr("read config", err)
	}
	b, found := cfg.Branches[branch]
	if !found || b.Remote == "" || b.Merge == "" {
		return "", "", false, nil
	}
	if b.Remote == "." {
		return b.Remote, b.Merge, true, nil
	}
	return b.Remote, plumbing.NewRemoteReferenceName(b.Remote, b.Merge.Short()), true, nil
}

// ConfigValue reads section[.subsection].key from the repository config.
func (r *Repository) ConfigValue(section, subsection, key string) (string, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", backendErr("read config", err)
	}
	s := cfg.Raw.Section(section)
	if subsection != "" {
		return s.Subsection(subsection).Option(key), nil
	}
	return s.Option(key), nil
}

// Identity returns user.name and user.email from the repository config.
func (r *Repository) Identity() (name, email string, err error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", "", backendErr("read config", err)
	}
	return cfg.User.Name, cfg.User.Email, nil
}

func fetchRefSpec(remote string) config.RefSpec {
	return config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", remote))
}
