// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

var (
	// ErrBackend marks I/O failures, corrupt or unreadable refs and missing objects.
	ErrBackend = errors.New("backend error")
	// ErrAuthExhausted is returned when every credential strategy was rejected.
	ErrAuthExhausted = errors.New("authentication strategies exhausted")
	// ErrNoRemote is returned when no usable remote is configured.
	ErrNoRemote = errors.New("no remote configured")
	// ErrAmbiguousRemote is returned when several remotes exist and none is the default.
	ErrAmbiguousRemote = errors.New("ambiguous remote")
	// ErrNotOnDefaultBranch is returned by pull when HEAD is elsewhere and switching is off.
	ErrNotOnDefaultBranch = errors.New("not on default branch")
	// ErrDetachedHead is returned when a switch is requested from a detached HEAD.
	ErrDetachedHead = errors.New("detached HEAD")
	// ErrNoMergeTarget is returned when the fetch produced no ref to merge.
	ErrNoMergeTarget = errors.New("no merge target")
	// ErrCannotFastForward is returned when local and remote histories diverged.
	ErrCannotFastForward = errors.New("cannot fast-forward")
	// ErrFetchFailed wraps transport failures during fetch.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrPushFailed wraps transport failures and rejections during push.
	ErrPushFailed = errors.New("push failed")
	// ErrCheckoutConflict is returned when a checkout would lose local changes.
	ErrCheckoutConflict = errors.New("checkout conflict")
	// ErrUnknownDefaultBranch is returned when neither settings nor the remote name one.
	ErrUnknownDefaultBranch = errors.New("unknown default branch")
	// ErrCancelled is returned when the caller's context ends during a transfer.
	ErrCancelled = errors.New("operation cancelled")
	// ErrNotARepository is returned when a path holds no repository.
	ErrNotARepository = errors.New("not a repository")
)

// wrap joins a sentinel with its cause so both match errors.Is.
func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func backendErr(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, cause)
}

// cancelled reports ctx's error as ErrCancelled, or nil while ctx is live.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrap(ErrCancelled, err)
	}
	return nil
}

// IsEmptyRemote reports whether err came from a remote with no refs.
func IsEmptyRemote(err error) bool {
	return errors.Is(err, transport.ErrEmptyRemoteRepository)
}

// IsNonFastForward reports whether err is a push rejected because the remote
// branch is not an ancestor of the pushed commit.
func IsNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, git.ErrForceNeeded) || errors.Is(err, git.ErrNonFastForwardUpdate) {
		return true
	}
	return strings.Contains(err.Error(), "non-fast-forward")
}
