// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Signature is the author and committer identity for new commits.
type Signature struct {
	Name  string
	Email string
}

// InitialCommitMessage is used for the first commit when no message is given.
const InitialCommitMessage = "initial"

// Filesystem returns the working tree filesystem, or nil for bare repositories.
func (r *Repository) Filesystem() billy.Filesystem {
	wt, err := r.worktree()
	if err != nil {
		return nil
	}
	return wt.Filesystem
}

// AddAll stages every change in the working tree, deletions included, and
// returns the new, modified and deleted paths joined with ", " for use as a
// commit message.
func (r *Repository) AddAll() (string, error) {
	wt, err := r.worktree()
	if err != nil {
		return "", err
	}
	st, err := wt.Status()
	if err != nil {
		return "", backendErr("status", err)
	}
	var paths []string
	for path, fs := range st {
		switch fs.Worktree {
		case git.Untracked, git.Modified, git.Deleted:
			paths = append(paths, path)
		}
	}
	if st.IsClean() {
		return "", nil
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", backendErr("add", err)
	}
	sort.Strings(paths)
	return strings.Join(paths, ", "), nil
}

// Commit records the index. On an unborn branch the first commit is always
// written, with InitialCommitMessage when message is empty. Otherwise an
// empty index change returns the zero hash and no commit.
func (r *Repository) Commit(message string, sig Signature) (plumbing.Hash, error) {
	wt, err := r.worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	head, err := r.HeadCommit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	unborn := head.IsZero()
	if message == "" && unborn {
		message = InitialCommitMessage
	}
	now := time.Now()
	author := &object.Signature{Name: sig.Name, Email: sig.Email, When: now}
	h, err := wt.Commit(message, &git.CommitOptions{
		Author:            author,
		Committer:         author,
		AllowEmptyCommits: unborn,
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, backendErr("commit", err)
	}
	return h, nil
}
