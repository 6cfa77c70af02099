// SPDX-License-Identifier: MIT

// Package remotemismatch detects working copies whose live origin URL no
// longer matches the registry, and reconciles one side with the other.
package remotemismatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
)

// ReconcileMode controls how remote mismatch reconciliation is applied.
type ReconcileMode string

const (
	ReconcileNone     ReconcileMode = "none"
	ReconcileRegistry ReconcileMode = "registry"
	ReconcileGit      ReconcileMode = "git"
)

// Plan describes one remote mismatch reconcile action for a repo.
type Plan struct {
	RepoID        string
	Path          string
	PrimaryRemote string
	RepoRemoteURL string
	RegistryURL   string
	EntryIndex    int
	Action        string
}

// URLSetter rewrites the URL of a remote in the repository at path.
type URLSetter interface {
	SetRemoteURL(path, remote, url string) error
}

// GitURLSetter writes the remote URL into the repository config.
type GitURLSetter struct{}

// SetRemoteURL implements URLSetter. The persisted token is left untouched.
func (GitURLSetter) SetRemoteURL(path, remote, url string) error {
	repo, err := gitx.Open(path)
	if err != nil {
		return err
	}
	repo.Lock()
	defer repo.Unlock()
	_, err = repo.EnsureRemote(remote, url)
	return err
}

// ParseReconcileMode validates and parses a reconcile mode flag value.
func ParseReconcileMode(raw string) (ReconcileMode, error) {
	mode := ReconcileMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "", ReconcileNone:
		return ReconcileNone, nil
	case ReconcileRegistry, ReconcileGit:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported --reconcile-remote-mismatch value %q (expected none, registry, or git)", raw)
	}
}

// Mismatched reports whether the registry URL of entry names a different
// repository than report's live primary remote.
func Mismatched(report model.RepoReport, entry registry.Entry) bool {
	regRemote := strings.TrimSpace(entry.RemoteURL)
	if regRemote == "" || strings.TrimSpace(report.RepoID) == "" {
		return false
	}
	normalized := gitx.NormalizeURL(regRemote)
	if normalized == "" {
		normalized = regRemote
	}
	return normalized != report.RepoID
}

// BuildPlans computes reconcile plans from status data and registry state.
func BuildPlans(repos []model.RepoReport, reg *registry.Registry, mode ReconcileMode) []Plan {
	if reg == nil || mode == ReconcileNone {
		return nil
	}
	plans := make([]Plan, 0)
	for _, repo := range repos {
		entryIndex := FindEntryIndex(reg, repo)
		if entryIndex < 0 {
			continue
		}
		entry := reg.Entries[entryIndex]
		if !Mismatched(repo, entry) {
			continue
		}
		repoRemoteURL := primaryRemoteURL(repo)
		action := ""
		switch mode {
		case ReconcileRegistry:
			if repoRemoteURL == "" {
				continue
			}
			action = "set registry remote_url to live git remote"
		case ReconcileGit:
			if strings.TrimSpace(repo.PrimaryRemote) == "" {
				continue
			}
			action = "set git remote URL to registry remote_url"
		}
		plans = append(plans, Plan{
			RepoID:        repo.RepoID,
			Path:          repo.Path,
			PrimaryRemote: repo.PrimaryRemote,
			RepoRemoteURL: repoRemoteURL,
			RegistryURL:   strings.TrimSpace(entry.RemoteURL),
			EntryIndex:    entryIndex,
			Action:        action,
		})
	}
	return plans
}

// ApplyPlans applies plans to registry and/or git remotes based on mode.
func ApplyPlans(plans []Plan, reg *registry.Registry, mode ReconcileMode, setter URLSetter, now func() time.Time) error {
	if len(plans) == 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	switch mode {
	case ReconcileRegistry:
		for _, plan := range plans {
			if reg == nil {
				continue
			}
			if plan.EntryIndex < 0 || plan.EntryIndex >= len(reg.Entries) {
				continue
			}
			reg.Entries[plan.EntryIndex].RemoteURL = plan.RepoRemoteURL
			reg.Entries[plan.EntryIndex].LastSeen = now()
		}
	case ReconcileGit:
		if setter == nil {
			setter = GitURLSetter{}
		}
		for _, plan := range plans {
			if strings.TrimSpace(plan.PrimaryRemote) == "" {
				continue
			}
			if err := setter.SetRemoteURL(plan.Path, plan.PrimaryRemote, plan.RegistryURL); err != nil {
				return fmt.Errorf("set remote %q to %q (%q): %w", plan.PrimaryRemote, plan.RegistryURL, plan.Path, err)
			}
		}
	}
	return nil
}

// FindEntryIndex returns the registry index matching repo by id and path,
// then by id alone, or -1.
func FindEntryIndex(reg *registry.Registry, repo model.RepoReport) int {
	if reg == nil {
		return -1
	}
	for i := range reg.Entries {
		if reg.Entries[i].Path == repo.Path && (reg.Entries[i].RepoID == repo.RepoID || repo.RepoID == "") {
			return i
		}
	}
	for i := range reg.Entries {
		if repo.RepoID != "" && reg.Entries[i].RepoID == repo.RepoID {
			return i
		}
	}
	return -1
}

func primaryRemoteURL(repo model.RepoReport) string {
	for _, remote := range repo.Remotes {
		if remote.Name == repo.PrimaryRemote {
			return strings.TrimSpace(remote.URL)
		}
	}
	return ""
}
