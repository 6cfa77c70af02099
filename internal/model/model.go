// Package model defines the core data types used throughout reposync.
package model

import (
	"time"
)

// Remote represents a single git remote.
type Remote struct {
	// Name is the configured remote name (for example, "origin").
	Name string `json:"name" yaml:"name"`
	// URL is the remote fetch/push URL.
	URL string `json:"url" yaml:"url"`
}

// HeadKind enumerates the possible HEAD states.
type HeadKind string

const (
	HeadUnborn   HeadKind = "unborn"
	HeadDetached HeadKind = "detached"
	HeadBranch   HeadKind = "branch"
)

// HeadStatus describes where HEAD points.
type HeadStatus struct {
	// Kind is the HEAD state.
	Kind HeadKind `json:"state" yaml:"state"`
	// Name is the branch HEAD refers to. Empty when detached.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Commit is the commit id HEAD points at directly. Only set when detached.
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// UnbornHead returns a HeadStatus for a symbolic HEAD with no commits yet.
func UnbornHead(branch string) HeadStatus { return HeadStatus{Kind: HeadUnborn, Name: branch} }

// DetachedHead returns a HeadStatus for a HEAD pointing directly at a commit.
func DetachedHead(commit string) HeadStatus { return HeadStatus{Kind: HeadDetached, Commit: commit} }

// BranchHead returns a HeadStatus for a symbolic HEAD that resolves to a commit.
func BranchHead(branch string) HeadStatus { return HeadStatus{Kind: HeadBranch, Name: branch} }

// OnBranch reports whether HEAD is symbolic and targets branch, born or not.
func (h HeadStatus) OnBranch(branch string) bool {
	return (h.Kind == HeadBranch || h.Kind == HeadUnborn) && h.Name == branch
}

// IsDetached reports whether HEAD is detached.
func (h HeadStatus) IsDetached() bool { return h.Kind == HeadDetached }

// IsUnborn reports whether HEAD targets a branch with no commits.
func (h HeadStatus) IsUnborn() bool { return h.Kind == HeadUnborn }

// String renders the head the way status tables show it.
func (h HeadStatus) String() string {
	switch h.Kind {
	case HeadUnborn:
		return h.Name + " (unborn)"
	case HeadDetached:
		short := h.Commit
		if len(short) > 7 {
			short = short[:7]
		}
		return "(detached " + short + ")"
	default:
		return h.Name
	}
}

// UpstreamKind enumerates the possible upstream tracking states.
type UpstreamKind string

const (
	UpstreamNone     UpstreamKind = "none"
	UpstreamTracking UpstreamKind = "tracking"
)

// UpstreamStatus represents the upstream tracking relationship for the current branch.
type UpstreamStatus struct {
	Kind UpstreamKind `json:"state" yaml:"state"`
	// Remote is the remote the upstream lives on.
	Remote string `json:"remote,omitempty" yaml:"remote,omitempty"`
	// Ref is the remote-tracking ref (for example, "refs/remotes/origin/main").
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
	// Ahead is the number of local commits not in the upstream.
	Ahead uint `json:"ahead" yaml:"ahead"`
	// Behind is the number of upstream commits not in the local branch.
	Behind uint `json:"behind" yaml:"behind"`
}

// NoUpstream is the UpstreamStatus for a branch without tracking configuration.
func NoUpstream() UpstreamStatus { return UpstreamStatus{Kind: UpstreamNone} }

// FileFlag is the change recorded for a path in the working tree.
type FileFlag string

const (
	FileNew        FileFlag = "new"
	FileModified   FileFlag = "modified"
	FileDeleted    FileFlag = "deleted"
	FileRenamed    FileFlag = "renamed"
	FileTypechange FileFlag = "typechange"
	FileConflicted FileFlag = "conflicted"
)

// FileStatus is one changed path.
type FileStatus struct {
	Path string   `json:"path" yaml:"path"`
	Flag FileFlag `json:"flag" yaml:"flag"`
}

// WorkingTreeStatus is a point-in-time diff of index/HEAD against the working directory.
type WorkingTreeStatus []FileStatus

// Clean reports whether nothing changed.
func (w WorkingTreeStatus) Clean() bool { return len(w) == 0 }

// Tracked returns the entries that touch tracked content (everything except new files).
func (w WorkingTreeStatus) Tracked() WorkingTreeStatus {
	var out WorkingTreeStatus
	for _, f := range w {
		if f.Flag != FileNew {
			out = append(out, f)
		}
	}
	return out
}

// RepositoryStatus is a snapshot of head, upstream and working tree.
// It is recomputed on every call and never cached.
type RepositoryStatus struct {
	Head          HeadStatus        `json:"head" yaml:"head"`
	Upstream      UpstreamStatus    `json:"upstream" yaml:"upstream"`
	WorkingTree   WorkingTreeStatus `json:"working_tree" yaml:"working_tree"`
	DefaultBranch *string           `json:"default_branch,omitempty" yaml:"default_branch,omitempty"`
}

// PullState enumerates pull outcomes.
type PullState string

const (
	PullUpToDate      PullState = "up_to_date"
	PullCreatedUnborn PullState = "created_unborn"
	PullFastForwarded PullState = "fast_forwarded"
)

// PullOutcome is the result of a successful pull.
type PullOutcome struct {
	State  PullState `json:"state" yaml:"state"`
	Branch string    `json:"branch" yaml:"branch"`
}

// ResolveResult is the outcome of a bidirectional resolve. OK is false only
// when local and remote histories diverged.
type ResolveResult struct {
	OK bool `json:"ok" yaml:"ok"`
}

// SyncResult is the outcome of a resolve against the persisted origin.
type SyncResult = ResolveResult

// Progress is one transfer update reported during fetch.
type Progress struct {
	// Stage is the server-reported phase (for example, "Receiving objects").
	Stage string
	// Current and Total count objects for the stage; Total may be zero when unknown.
	Current uint64
	Total   uint64
}

// ResolveRecord records the outcome of the last resolve operation.
type ResolveRecord struct {
	// OK is the result value; false means divergence was left unresolved.
	OK bool `json:"ok" yaml:"ok"`
	// At is the timestamp of the last resolve attempt.
	At time.Time `json:"at" yaml:"at"`
	// Error contains the resolve error message when the call failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RepoReport is the status row for one working copy.
type RepoReport struct {
	// RepoID is the normalized identity for the repository (usually derived from the origin URL).
	RepoID string `json:"repo_id" yaml:"repo_id"`
	// Path is the absolute local filesystem path to the repository.
	Path string `json:"path" yaml:"path"`
	// Bare indicates whether the repository has no working tree.
	Bare bool `json:"bare" yaml:"bare"`
	// Remotes contains all configured remotes.
	Remotes []Remote `json:"remotes" yaml:"remotes"`
	// PrimaryRemote is the remote used for pull/resolve.
	PrimaryRemote string `json:"primary_remote" yaml:"primary_remote"`
	// Status is the synthesized repository status. Nil when inspection failed.
	Status *RepositoryStatus `json:"status,omitempty" yaml:"status,omitempty"`
	// LastResolve is the latest resolve outcome when available.
	LastResolve *ResolveRecord `json:"last_resolve,omitempty" yaml:"last_resolve,omitempty"`
	// Error holds repository-specific inspect error text.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// ErrorClass is a coarse category for Error (for example, missing/auth/network).
	ErrorClass string `json:"error_class,omitempty" yaml:"error_class,omitempty"`
}

// StatusReport is the top-level output of the status command.
type StatusReport struct {
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Repos       []RepoReport `json:"repos" yaml:"repos"`
}
