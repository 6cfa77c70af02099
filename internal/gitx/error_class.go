// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ClassifyError maps backend and engine errors into broad actionable categories.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return "timeout"
	}
	if errors.Is(err, ErrAuthExhausted) ||
		errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) {
		return "auth"
	}
	if errors.Is(err, ErrCannotFastForward) || IsNonFastForward(err) {
		return "diverged"
	}
	if errors.Is(err, ErrCheckoutConflict) {
		return "conflict"
	}
	if errors.Is(err, ErrNoRemote) || errors.Is(err, ErrNoMergeTarget) ||
		errors.Is(err, transport.ErrRepositoryNotFound) || errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return "missing_remote"
	}
	if errors.Is(err, ErrNotARepository) {
		return "corrupt"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission denied", "authentication failed", "access denied", "publickey", "unable to authenticate", "credential"):
		return "auth"
	case containsAny(msg, "could not resolve host", "no such host", "network is unreachable", "connection refused", "connection timed out", "failed to connect", "temporary failure in name resolution", "tls handshake timeout"):
		return "network"
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return "timeout"
	case containsAny(msg, "bad object", "corrupt", "object not found", "invalid checksum", "zlib"):
		return "corrupt"
	case containsAny(msg, "repository not found", "couldn't find remote ref", "remote ref does not exist", "remote not found"):
		return "missing_remote"
	case containsAny(msg, "non-fast-forward"):
		return "diverged"
	default:
		return "unknown"
	}
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
