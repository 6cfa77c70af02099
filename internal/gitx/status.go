// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/skaphos/reposync/internal/model"
)

// UpstreamStatus reports the tracking relationship of head. Only a born
// branch with branch.<name>.remote and branch.<name>.merge configured has an
// upstream; a configured upstream that does not resolve is an error.
func (r *Repository) UpstreamStatus(head model.HeadStatus) (model.UpstreamStatus, error) {
	if head.Kind != model.HeadBranch {
		return model.NoUpstream(), nil
	}
	remote, ref, ok, err := r.upstreamRef(head.Name)
	if err != nil || !ok {
		return model.NoUpstream(), err
	}
	upstream, err := r.repo.Reference(ref, true)
	if err != nil {
		return model.UpstreamStatus{}, backendErr("resolve upstream "+ref.String(), err)
	}
	local, err := r.repo.Reference(plumbing.NewBranchReferenceName(head.Name), true)
	if err != nil {
		return model.UpstreamStatus{}, backendErr("resolve branch "+head.Name, err)
	}
	ahead, behind, err := r.aheadBehind(local.Hash(), upstream.Hash())
	if err != nil {
		return model.UpstreamStatus{}, err
	}
	return model.UpstreamStatus{
		Kind:   model.UpstreamTracking,
		Remote: remote,
		Ref:    ref.String(),
		Ahead:  ahead,
		Behind: behind,
	}, nil
}

// aheadBehind counts commits reachable from only one of local and upstream.
func (r *Repository) aheadBehind(local, upstream plumbing.Hash) (uint, uint, error) {
	if local == upstream {
		return 0, 0, nil
	}
	ours, err := r.ancestors(local)
	if err != nil {
		return 0, 0, err
	}
	theirs, err := r.ancestors(upstream)
	if err != nil {
		return 0, 0, err
	}
	var ahead, behind uint
	for h := range ours {
		if _, ok := theirs[h]; !ok {
			ahead++
		}
	}
	for h := range theirs {
		if _, ok := ours[h]; !ok {
			behind++
		}
	}
	return ahead, behind, nil
}

func (r *Repository) ancestors(from plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, backendErr("walk "+from.String(), err)
	}
	defer iter.Close()
	seen := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, backendErr("walk "+from.String(), err)
	}
	return seen, nil
}

// WorkingTreeStatus diffs index and HEAD against the working directory.
// Submodule paths are excluded. With core.ignorecase set, paths differing
// only in case collapse to one entry. ignore adds gitignore-style patterns.
// go-git reports no typechange state, so that flag is never produced.
func (r *Repository) WorkingTreeStatus(ignore []string) (model.WorkingTreeStatus, error) {
	if r.bare {
		return model.WorkingTreeStatus{}, nil
	}
	wt, err := r.worktree()
	if err != nil {
		return nil, err
	}
	for _, p := range ignore {
		wt.Excludes = append(wt.Excludes, gitignore.ParsePattern(p, nil))
	}
	st, err := wt.Status()
	if err != nil {
		return nil, backendErr("status", err)
	}
	foldCase, err := r.ignoreCase()
	if err != nil {
		return nil, err
	}
	skip, err := submodulePaths(wt, foldCase)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(st))
	out := make(model.WorkingTreeStatus, 0, len(st))
	for path, fs := range st {
		flag, changed := fileFlag(fs)
		if !changed {
			continue
		}
		key := path
		if foldCase {
			key = strings.ToLower(path)
		}
		if _, ok := skip[key]; ok || underSubmodule(key, skip) {
			continue
		}
		if i, ok := seen[key]; ok {
			if flagRank(flag) > flagRank(out[i].Flag) {
				out[i].Flag = flag
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, model.FileStatus{Path: path, Flag: flag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func fileFlag(fs *git.FileStatus) (model.FileFlag, bool) {
	codes := [2]git.StatusCode{fs.Staging, fs.Worktree}
	has := func(c git.StatusCode) bool { return codes[0] == c || codes[1] == c }
	switch {
	case has(git.UpdatedButUnmerged):
		return model.FileConflicted, true
	case has(git.Untracked), fs.Staging == git.Added:
		return model.FileNew, true
	case has(git.Renamed):
		return model.FileRenamed, true
	case has(git.Deleted):
		return model.FileDeleted, true
	case has(git.Modified), has(git.Copied):
		return model.FileModified, true
	default:
		return "", false
	}
}

// flagRank orders flags when case folding merges two entries.
func flagRank(f model.FileFlag) int {
	switch f {
	case model.FileConflicted:
		return 5
	case model.FileTypechange:
		return 4
	case model.FileDeleted:
		return 3
	case model.FileRenamed:
		return 2
	case model.FileModified:
		return 1
	default:
		return 0
	}
}

func (r *Repository) ignoreCase() (bool, error) {
	v, err := r.ConfigValue("core", "", "ignorecase")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

func submodulePaths(wt *git.Worktree, foldCase bool) (map[string]struct{}, error) {
	subs, err := wt.Submodules()
	if err != nil && !errors.Is(err, git.ErrSubmoduleNotFound) {
		return nil, backendErr("read submodules", err)
	}
	out := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		p := s.Config().Path
		if foldCase {
			p = strings.ToLower(p)
		}
		out[strings.TrimSuffix(p, "/")] = struct{}{}
	}
	return out, nil
}

func underSubmodule(path string, subs map[string]struct{}) bool {
	for p := range subs {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
