// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SwitchBranch checks out an existing local branch, refusing when tracked
// changes would be lost. When the branch does not exist yet HEAD is
// re-pointed at it and the repository becomes unborn on that branch.
func (r *Repository) SwitchBranch(branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	exists, err := r.BranchExists(branch)
	if err != nil {
		return err
	}
	if r.bare || !exists {
		if !r.bare {
			if err := r.ensureClean(plumbing.ZeroHash); err != nil {
				return err
			}
		}
		if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
			return backendErr("set HEAD", err)
		}
		return nil
	}
	target, err := r.repo.Reference(ref, true)
	if err != nil {
		return backendErr("resolve "+ref.String(), err)
	}
	if err := r.ensureClean(target.Hash()); err != nil {
		return err
	}
	wt, err := r.worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref}); err != nil {
		if errors.Is(err, git.ErrUnstagedChanges) {
			return wrap(ErrCheckoutConflict, err)
		}
		return backendErr("checkout "+branch, err)
	}
	return nil
}

// FastForward moves the branch HEAD points at to target and updates the
// working tree. Local modifications, or untracked files the target would
// overwrite, fail with ErrCheckoutConflict before anything changes.
func (r *Repository) FastForward(target plumbing.Hash) error {
	if r.bare {
		return r.moveHead(target)
	}
	if err := r.ensureClean(target); err != nil {
		return err
	}
	wt, err := r.worktree()
	if err != nil {
		return err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset}); err != nil {
		return backendErr("reset to "+target.String(), err)
	}
	return nil
}

// CreateBranchAt points refs/heads/<branch> at tip, makes it HEAD, force
// checks it out and tracks it on remote. It is used to bootstrap an unborn
// repository from a fetched tip.
func (r *Repository) CreateBranchAt(remote, branch string, tip plumbing.Hash) error {
	ref := plumbing.NewBranchReferenceName(branch)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(ref, tip)); err != nil {
		return backendErr("create "+ref.String(), err)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return backendErr("set HEAD", err)
	}
	if !r.bare {
		wt, err := r.worktree()
		if err != nil {
			return err
		}
		if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Force: true}); err != nil {
			return backendErr("checkout "+branch, err)
		}
	}
	return r.SetUpstream(branch, remote)
}

func (r *Repository) moveHead(target plumbing.Hash) error {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return backendErr("read HEAD", err)
	}
	name := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		name = head.Target()
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(name, target)); err != nil {
		return backendErr("update "+name.String(), err)
	}
	return nil
}

// ensureClean fails when tracked content differs from HEAD, or when an
// untracked file exists at a path present in target's tree. A zero target
// only checks tracked content.
func (r *Repository) ensureClean(target plumbing.Hash) error {
	wt, err := r.worktree()
	if err != nil {
		return err
	}
	st, err := wt.Status()
	if err != nil {
		return backendErr("status", err)
	}
	var tree *object.Tree
	if !target.IsZero() {
		c, err := object.GetCommit(r.repo.Storer, target)
		if err != nil {
			return backendErr("read commit "+target.String(), err)
		}
		if tree, err = c.Tree(); err != nil {
			return backendErr("read tree "+target.String(), err)
		}
	}

	var blocked []string
	for path, fs := range st {
		untracked := fs.Staging == git.Untracked && fs.Worktree == git.Untracked
		switch {
		case untracked && tree != nil:
			if _, err := tree.File(path); err == nil {
				blocked = append(blocked, path)
			}
		case untracked:
		case fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified:
			blocked = append(blocked, path)
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	sort.Strings(blocked)
	return fmt.Errorf("%w: %s", ErrCheckoutConflict, strings.Join(blocked, ", "))
}
