//go:build integration

package engine_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
)

var _ = Describe("Engine interop with the git CLI", func() {
	var (
		ctx  context.Context
		eng  *engine.Engine
		base string
	)

	BeforeEach(func() {
		if _, err := exec.LookPath("git"); err != nil {
			Skip("git not installed")
		}
		ctx = context.Background()
		eng = newEngine(&registry.Registry{})
		base = GinkgoT().TempDir()
	})

	// cliRemote creates a bare remote with one commit on branch, pushed by git.
	cliRemote := func(branch string) string {
		remote := filepath.Join(base, "remote.git")
		work := filepath.Join(base, "cli")
		runGit("", "init", "--bare", "--initial-branch="+branch, remote)
		runGit("", "clone", remote, work)
		runGit(work, "config", "user.email", "test@example.com")
		runGit(work, "config", "user.name", "RepoSync Test")
		runGit(work, "checkout", "-B", branch)
		Expect(os.WriteFile(filepath.Join(work, "file.txt"), []byte("base\n"), 0o644)).To(Succeed())
		runGit(work, "add", "file.txt")
		runGit(work, "commit", "-m", "base")
		runGit(work, "push", "origin", branch)
		return remote
	}

	It("bootstraps from a remote written by git and leaves a clean tree", func() {
		remote := cliRemote("main")
		repo, err := eng.Init(filepath.Join(base, "work"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.SetOrigin("origin", origin(remote))).To(Succeed())

		out, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(model.PullCreatedUnborn))

		Expect(strings.TrimSpace(runGit(repo.Path(), "status", "--porcelain=v1"))).To(BeEmpty())
		Expect(strings.TrimSpace(runGit(repo.Path(), "rev-parse", "HEAD"))).
			To(Equal(strings.TrimSpace(runGit("", "--git-dir", remote, "rev-parse", "main"))))
		Expect(strings.TrimSpace(runGit(repo.Path(), "rev-parse", "--abbrev-ref", "@{upstream}"))).To(Equal("origin/main"))
	})

	It("follows a non-main remote HEAD", func() {
		remote := cliRemote("trunk")
		repo, err := eng.Clone(ctx, remote, filepath.Join(base, "work"), engine.CloneOptions{})
		Expect(err).NotTo(HaveOccurred())

		status, _, err := eng.Status(ctx, repo, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Head).To(Equal(model.BranchHead("trunk")))
		Expect(*status.DefaultBranch).To(Equal("trunk"))
	})

	It("pushes commits git can read back", func() {
		remote := cliRemote("main")
		repo, err := eng.Clone(ctx, remote, filepath.Join(base, "work"), engine.CloneOptions{})
		Expect(err).NotTo(HaveOccurred())
		h := commitFile(eng, repo, "more.txt", "more\n")

		res, err := eng.Sync(ctx, repo, engine.ResolveOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK).To(BeTrue())
		Expect(strings.TrimSpace(runGit("", "--git-dir", remote, "rev-parse", "main"))).To(Equal(h.String()))
		runGit("", "--git-dir", remote, "fsck", "--no-dangling")
	})

	It("leaves local modifications alone when there is nothing to pull", func() {
		remote := cliRemote("main")
		repo, err := eng.Clone(ctx, remote, filepath.Join(base, "work"), engine.CloneOptions{})
		Expect(err).NotTo(HaveOccurred())
		writeFile(repo, "file.txt", "dirty\n")

		res, err := eng.Sync(ctx, repo, engine.ResolveOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.OK).To(BeTrue())
		Expect(readFile(repo, "file.txt")).To(Equal("dirty\n"))
		Expect(runGit(repo.Path(), "status", "--porcelain=v1")).To(ContainSubstring("file.txt"))
	})

	It("prunes remote-tracking branches deleted upstream when asked", func() {
		remote := cliRemote("main")
		cli := filepath.Join(base, "cli")
		repo, err := eng.Clone(ctx, remote, filepath.Join(base, "work"), engine.CloneOptions{})
		Expect(err).NotTo(HaveOccurred())

		runGit(cli, "push", "origin", "main:feature")
		_, err = eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runGit(repo.Path(), "for-each-ref", "refs/remotes/origin/feature")).To(ContainSubstring("origin/feature"))

		runGit(cli, "push", "origin", "--delete", "feature")
		prune := true
		_, err = eng.Pull(ctx, repo, engine.PullOptions{Settings: model.Settings{Prune: &prune}})
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(runGit(repo.Path(), "for-each-ref", "refs/remotes/origin/feature"))).To(BeEmpty())
	})

	It("reads user.name written by git for commits", func() {
		repo, err := gitx.Init(filepath.Join(base, "ident"), "main")
		Expect(err).NotTo(HaveOccurred())
		runGit(repo.Path(), "config", "user.name", "Configured Person")
		runGit(repo.Path(), "config", "user.email", "person@example.com")
		commitFile(eng, repo, "a.txt", "a\n")

		Expect(strings.TrimSpace(runGit(repo.Path(), "log", "-1", "--format=%an <%ae>"))).
			To(Equal("Configured Person <person@example.com>"))
	})

	It("marks deleted repository paths as missing after re-scan", func() {
		repoPath := filepath.Join(base, "repo")
		runGit("", "init", repoPath)
		reg := &registry.Registry{}
		eng := newEngine(reg)

		_, err := eng.Scan(ctx, engine.ScanOptions{Roots: []string{base}})
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Entries).To(HaveLen(1))
		Expect(reg.Entries[0].Status).To(Equal(registry.StatusPresent))

		Expect(os.RemoveAll(repoPath)).To(Succeed())
		_, err = eng.Scan(ctx, engine.ScanOptions{Roots: []string{base}})
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Entries).To(HaveLen(1))
		Expect(reg.Entries[0].Status).To(Equal(registry.StatusMissing))
	})
})

func runGit(dir string, args ...string) string {
	GinkgoHelper()
	baseArgs := []string{"-c", "commit.gpgsign=false", "-c", "init.defaultBranch=main"}
	cmd := exec.Command("git", append(baseArgs, args...)...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		Fail("git " + strings.Join(args, " ") + " failed: " + stderr.String())
	}
	return stdout.String()
}
