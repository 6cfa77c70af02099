// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MergeAnalysis is the ancestry relationship between the local branch and a
// fetched tip. It is decided once per fetch.
type MergeAnalysis int

const (
	// AnalysisUpToDate means the fetched tip is already contained locally.
	AnalysisUpToDate MergeAnalysis = iota
	// AnalysisUnborn means the local branch has no commits.
	AnalysisUnborn
	// AnalysisFastForward means the fetched tip strictly descends from the local tip.
	AnalysisFastForward
	// AnalysisDiverged means neither tip is an ancestor of the other.
	AnalysisDiverged
)

func (a MergeAnalysis) String() string {
	switch a {
	case AnalysisUpToDate:
		return "up_to_date"
	case AnalysisUnborn:
		return "unborn"
	case AnalysisFastForward:
		return "fast_forward"
	case AnalysisDiverged:
		return "diverged"
	default:
		return fmt.Sprintf("analysis(%d)", int(a))
	}
}

// MergeTarget returns the fetched tip to merge into branch: its configured
// upstream when that lives on remote, else refs/remotes/<remote>/<fallback>.
func (r *Repository) MergeTarget(remote, branch, fallback string) (plumbing.ReferenceName, plumbing.Hash, error) {
	name := plumbing.NewRemoteReferenceName(remote, fallback)
	upRemote, upRef, ok, err := r.upstreamRef(branch)
	if err != nil {
		return "", plumbing.ZeroHash, err
	}
	if ok && upRemote == remote {
		name = upRef
	}
	ref, err := r.repo.Reference(name, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrNoMergeTarget, name)
	}
	if err != nil {
		return "", plumbing.ZeroHash, backendErr("resolve "+name.String(), err)
	}
	return name, ref.Hash(), nil
}

// Classify compares HEAD with target.
func (r *Repository) Classify(target plumbing.Hash) (MergeAnalysis, error) {
	local, err := r.HeadCommit()
	if err != nil {
		return 0, err
	}
	if local.IsZero() {
		return AnalysisUnborn, nil
	}
	if local == target {
		return AnalysisUpToDate, nil
	}
	contained, err := r.IsAncestor(target, local)
	if err != nil {
		return 0, err
	}
	if contained {
		return AnalysisUpToDate, nil
	}
	behind, err := r.IsAncestor(local, target)
	if err != nil {
		return 0, err
	}
	if behind {
		return AnalysisFastForward, nil
	}
	return AnalysisDiverged, nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repository) IsAncestor(ancestor, descendant plumbing.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	a, err := object.GetCommit(r.repo.Storer, ancestor)
	if err != nil {
		return false, backendErr("read commit "+ancestor.String(), err)
	}
	d, err := object.GetCommit(r.repo.Storer, descendant)
	if err != nil {
		return false, backendErr("read commit "+descendant.String(), err)
	}
	ok, err := a.IsAncestor(d)
	if err != nil {
		return false, backendErr("ancestry", err)
	}
	return ok, nil
}
