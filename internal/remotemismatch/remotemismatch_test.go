// SPDX-License-Identifier: MIT
package remotemismatch

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
)

type setterStub struct {
	calls []string
	err   error
}

func (s *setterStub) SetRemoteURL(path, remote, url string) error {
	s.calls = append(s.calls, path+":"+remote+":"+url)
	return s.err
}

var _ = Describe("remote mismatch", func() {
	var (
		reg   *registry.Registry
		repos []model.RepoReport
	)

	BeforeEach(func() {
		reg = &registry.Registry{
			Entries: []registry.Entry{
				{RepoID: "github.com/org/repo-a", Path: "/tmp/repo-a", RemoteURL: "git@github.com:other/repo-a.git"},
			},
		}
		repos = []model.RepoReport{{
			RepoID:        "github.com/org/repo-a",
			Path:          "/tmp/repo-a",
			PrimaryRemote: "origin",
			Remotes:       []model.Remote{{Name: "origin", URL: "git@github.com:org/repo-a.git"}},
		}}
	})

	It("parses reconcile modes", func() {
		mode, err := ParseReconcileMode("Registry")
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(ReconcileRegistry))
		mode, err = ParseReconcileMode("")
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(ReconcileNone))
		_, err = ParseReconcileMode("invalid")
		Expect(err).To(HaveOccurred())
	})

	It("ignores matching and unregistered repos", func() {
		reg.Entries[0].RemoteURL = "https://github.com/org/repo-a"
		Expect(BuildPlans(repos, reg, ReconcileRegistry)).To(BeEmpty())
		Expect(BuildPlans(repos, nil, ReconcileRegistry)).To(BeEmpty())
		Expect(BuildPlans(repos, reg, ReconcileNone)).To(BeEmpty())
	})

	It("updates the registry from the live remote", func() {
		plans := BuildPlans(repos, reg, ReconcileRegistry)
		Expect(plans).To(HaveLen(1))
		Expect(plans[0].Action).NotTo(BeEmpty())

		fixedNow := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		Expect(ApplyPlans(plans, reg, ReconcileRegistry, nil, func() time.Time { return fixedNow })).To(Succeed())
		Expect(reg.Entries[0].RemoteURL).To(Equal("git@github.com:org/repo-a.git"))
		Expect(reg.Entries[0].LastSeen).To(Equal(fixedNow))
	})

	It("rewrites the git remote through the setter", func() {
		plans := BuildPlans(repos, reg, ReconcileGit)
		Expect(plans).To(HaveLen(1))
		setter := &setterStub{}
		Expect(ApplyPlans(plans, reg, ReconcileGit, setter, nil)).To(Succeed())
		Expect(setter.calls).To(Equal([]string{"/tmp/repo-a:origin:git@github.com:other/repo-a.git"}))

		failing := &setterStub{err: errors.New("boom")}
		Expect(ApplyPlans(plans, reg, ReconcileGit, failing, nil)).To(MatchError(ContainSubstring("boom")))
	})

	It("writes the registry URL into the repository config", func() {
		path := filepath.Join(GinkgoT().TempDir(), "repo")
		repo, err := gitx.Init(path, "main")
		Expect(err).NotTo(HaveOccurred())
		token := "secret"
		Expect(repo.SetOrigin("origin", model.Origin{URL: "https://example.com/a.git", Token: &token})).To(Succeed())

		Expect(GitURLSetter{}.SetRemoteURL(path, "origin", "https://example.com/b.git")).To(Succeed())

		reopened, err := gitx.Open(path)
		Expect(err).NotTo(HaveOccurred())
		origin, err := reopened.GetOrigin("origin")
		Expect(err).NotTo(HaveOccurred())
		Expect(origin.URL).To(Equal("https://example.com/b.git"))
		Expect(origin.Token).NotTo(BeNil())
		Expect(*origin.Token).To(Equal("secret"))
	})
})
