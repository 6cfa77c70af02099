// Package gitx is the version-control backend. It wraps go-git with the
// reads and writes the reconciliation engine needs: head and upstream
// state, working-tree status, remote transfer with credential negotiation,
// ancestry classification and checkout.
package gitx

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DefaultBranch is used when nothing else names the initial branch.
const DefaultBranch = "main"

// Repository is an open repository handle. Callers that need a consistent
// view across several reads, or that mutate refs and the working tree, hold
// Lock for the duration.
type Repository struct {
	mu   sync.Mutex
	repo *git.Repository
	path string
	bare bool
}

// Lock serializes status reads against mutations on this handle.
func (r *Repository) Lock() { r.mu.Lock() }

// Unlock releases Lock.
func (r *Repository) Unlock() { r.mu.Unlock() }

// Path returns the directory the handle was opened at.
func (r *Repository) Path() string { return r.path }

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() bool { return r.bare }

// Init creates a repository with a working tree whose HEAD targets branch.
func Init(path, branch string) (*Repository, error) {
	return initRepo(path, branch, false)
}

// InitBare creates a bare repository whose HEAD targets branch.
func InitBare(path, branch string) (*Repository, error) {
	return initRepo(path, branch, true)
}

func initRepo(path, branch string, bare bool) (*Repository, error) {
	if branch == "" {
		branch = DefaultBranch
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, backendErr("resolve path", err)
	}
	repo, err := git.PlainInitWithOptions(abs, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
		Bare:        bare,
	})
	if err != nil {
		return nil, backendErr("init "+abs, err)
	}
	return &Repository{repo: repo, path: abs, bare: bare}, nil
}

// Open opens the repository at path. A bare repository is opened in place;
// otherwise parent directories are searched for a .git entry.
func Open(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, backendErr("resolve path", err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	}
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, abs)
		}
		return nil, backendErr("open "+abs, err)
	}
	r := &Repository{repo: repo, path: abs}
	wt, err := repo.Worktree()
	switch {
	case errors.Is(err, git.ErrIsBareRepository):
		r.bare = true
	case err != nil:
		return nil, backendErr("worktree", err)
	default:
		r.path = wt.Filesystem.Root()
	}
	return r, nil
}

// TryOpen is Open that returns (nil, nil) when path holds no repository.
func TryOpen(path string) (*Repository, error) {
	r, err := Open(path)
	if errors.Is(err, ErrNotARepository) {
		return nil, nil
	}
	return r, err
}

func (r *Repository) worktree() (*git.Worktree, error) {
	if r.bare {
		return nil, backendErr("worktree", git.ErrIsBareRepository)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, backendErr("worktree", err)
	}
	return wt, nil
}
