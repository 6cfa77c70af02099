package discovery_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/discovery"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

var _ = Describe("Discovery", func() {
	It("matches exclude patterns", func() {
		Expect(discovery.MatchesExclude("C:/code/repo/.git", []string{"**/.git/**"})).To(BeTrue())
		Expect(discovery.MatchesExclude("C:/code/repo", []string{"**/node_modules/**"})).To(BeFalse())
	})

	It("scans for working copies and bare repositories", func() {
		root := GinkgoT().TempDir()
		work := filepath.Join(root, "repo1")
		_, err := gitx.Init(work, "main")
		Expect(err).NotTo(HaveOccurred())
		bare := filepath.Join(root, "mirror.git")
		_, err = gitx.InitBare(bare, "main")
		Expect(err).NotTo(HaveOccurred())

		results, err := discovery.Scan(context.Background(), discovery.Options{Roots: []string{root}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		byPath := map[string]discovery.Result{}
		for _, r := range results {
			byPath[r.Path] = r
		}
		Expect(byPath[work].Bare).To(BeFalse())
		Expect(byPath[bare].Bare).To(BeTrue())
	})

	It("picks the primary remote and normalizes its URL", func() {
		root := GinkgoT().TempDir()
		path := filepath.Join(root, "repo")
		repo, err := gitx.Init(path, "main")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.SetOrigin("upstream", model.Origin{URL: "git@github.com:Up/Repo.git"})).To(Succeed())
		Expect(repo.SetOrigin("origin", model.Origin{URL: "https://github.com/Org/Repo.git"})).To(Succeed())

		results, err := discovery.Scan(context.Background(), discovery.Options{Roots: []string{root}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].PrimaryRemote).To(Equal("origin"))
		Expect(results[0].RemoteURL).To(Equal("https://github.com/Org/Repo.git"))
		Expect(results[0].RepoID).To(Equal(gitx.NormalizeURL("https://github.com/Org/Repo.git")))
		Expect(results[0].Remotes).To(HaveLen(2))

		results, err = discovery.Scan(context.Background(), discovery.Options{Roots: []string{root}, PreferredRemote: "upstream"})
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].PrimaryRemote).To(Equal("upstream"))
	})

	It("respects exclude patterns during scan", func() {
		root := GinkgoT().TempDir()
		_, err := gitx.Init(filepath.Join(root, "vendor", "repo2"), "main")
		Expect(err).NotTo(HaveOccurred())

		results, err := discovery.Scan(context.Background(), discovery.Options{
			Roots:   []string{root},
			Exclude: []string{"**/vendor/**"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("detects linked .git directories", func() {
		root := GinkgoT().TempDir()
		repo := filepath.Join(root, "repo3")
		_, err := gitx.Init(repo, "main")
		Expect(err).NotTo(HaveOccurred())

		gitDir := filepath.Join(root, "repo3.gitdir")
		Expect(os.Rename(filepath.Join(repo, ".git"), gitDir)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(repo, ".git"), []byte("gitdir: "+gitDir), 0o644)).To(Succeed())

		results, err := discovery.Scan(context.Background(), discovery.Options{Roots: []string{root}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Path).To(Equal(repo))
	})

	It("stops when the context is cancelled", func() {
		root := GinkgoT().TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := discovery.Scan(ctx, discovery.Options{Roots: []string{root}})
		Expect(err).To(MatchError(context.Canceled))
	})
})
