// SPDX-License-Identifier: MIT

// Package sortutil holds the deterministic orderings shared by status
// reports, resolve runs and the registry.
package sortutil

import (
	"sort"

	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
)

// LessRepoIDPath provides deterministic ordering by repository identity first,
// then by path for multi-checkout scenarios.
func LessRepoIDPath(repoIDI, pathI, repoIDJ, pathJ string) bool {
	if repoIDI == repoIDJ {
		return pathI < pathJ
	}
	return repoIDI < repoIDJ
}

// SortRepoReports orders status rows by RepoID, then Path.
func SortRepoReports(reports []model.RepoReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		return LessRepoIDPath(reports[i].RepoID, reports[i].Path, reports[j].RepoID, reports[j].Path)
	})
}

// SortRegistryEntries orders registry entries by RepoID, then Path.
func SortRegistryEntries(entries []registry.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return LessRepoIDPath(entries[i].RepoID, entries[i].Path, entries[j].RepoID, entries[j].Path)
	})
}
