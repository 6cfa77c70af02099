package engine_test

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

var _ = Describe("Pull", func() {
	var (
		ctx    context.Context
		eng    *engine.Engine
		remote string
	)

	BeforeEach(func() {
		ctx = context.Background()
		eng = newEngine(nil)
		remote = seeded(eng, "Hello, world!\n")
	})

	It("bootstraps an unborn repository from the remote tip", func() {
		repo, err := eng.Init(filepath.Join(GinkgoT().TempDir(), "unborn"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.SetOrigin("origin", origin(remote))).To(Succeed())

		out, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(model.PullOutcome{State: model.PullCreatedUnborn, Branch: "main"}))
		Expect(headCommit(repo)).To(Equal(remoteTip(remote, "main")))
		Expect(readFile(repo, "foo.txt")).To(Equal("Hello, world!\n"))

		status, _, err := eng.Status(ctx, repo, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Head).To(Equal(model.BranchHead("main")))
		Expect(status.Upstream.Kind).To(Equal(model.UpstreamTracking))
		Expect(status.WorkingTree.Clean()).To(BeTrue())
	})

	It("fast-forwards and is idempotent afterwards", func() {
		repo := cloneOf(eng, remote, "behind")
		other := cloneOf(eng, remote, "ahead")
		tip := publish(eng, other, remote, "bar.txt", "bar\n")

		out, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(model.PullFastForwarded))
		Expect(headCommit(repo)).To(Equal(tip))
		Expect(readFile(repo, "bar.txt")).To(Equal("bar\n"))

		out, err = eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(model.PullUpToDate))
		Expect(headCommit(repo)).To(Equal(tip))
	})

	It("reuses a status snapshot and its remote", func() {
		repo := cloneOf(eng, remote, "snapshot")
		status, rem, err := eng.Status(ctx, repo, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rem).NotTo(BeNil())

		out, err := eng.Pull(ctx, repo, engine.PullOptions{Status: &status, Remote: rem})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(model.PullOutcome{State: model.PullUpToDate, Branch: "main"}))
	})

	It("keeps local commits when the remote has nothing new", func() {
		repo := cloneOf(eng, remote, "local")
		local := commitFile(eng, repo, "local.txt", "mine\n")

		out, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(model.PullUpToDate))
		Expect(headCommit(repo)).To(Equal(local))
	})

	It("refuses diverged histories", func() {
		repo := cloneOf(eng, remote, "mine")
		other := cloneOf(eng, remote, "theirs")
		publish(eng, other, remote, "theirs.txt", "theirs\n")
		local := commitFile(eng, repo, "mine.txt", "mine\n")

		_, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(errors.Is(err, gitx.ErrCannotFastForward)).To(BeTrue())
		Expect(headCommit(repo)).To(Equal(local))
	})

	It("refuses to overwrite local modifications", func() {
		repo := cloneOf(eng, remote, "dirty")
		other := cloneOf(eng, remote, "clean")
		publish(eng, other, remote, "foo.txt", "Hello, world!\nfoobar!\n")
		before := headCommit(repo)
		writeFile(repo, "foo.txt", "edited\n")

		_, err := eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(errors.Is(err, gitx.ErrCheckoutConflict)).To(BeTrue())
		Expect(headCommit(repo)).To(Equal(before))
		Expect(readFile(repo, "foo.txt")).To(Equal("edited\n"))
	})

	Context("branch guard", func() {
		var repo *gitx.Repository

		BeforeEach(func() {
			repo = cloneOf(eng, remote, "guarded")
			branchOff(repo, "feature")
		})

		It("fails off the default branch", func() {
			_, err := eng.Pull(ctx, repo, engine.PullOptions{})
			Expect(errors.Is(err, gitx.ErrNotOnDefaultBranch)).To(BeTrue())
		})

		It("switches when asked", func() {
			out, err := eng.Pull(ctx, repo, engine.PullOptions{Switch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Branch).To(Equal("main"))
			head, err := repo.HeadStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(head).To(Equal(model.BranchHead("main")))
		})

		It("needs a fetched tip for the default branch", func() {
			before := headCommit(repo)
			_, err := eng.Pull(ctx, repo, engine.PullOptions{Settings: model.Settings{DefaultBranch: model.StringPtr("feature")}})
			Expect(errors.Is(err, gitx.ErrNoMergeTarget)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("refs/remotes/origin/feature"))
			Expect(headCommit(repo)).To(Equal(before))
		})

		It("cannot switch from a detached HEAD", func() {
			detach(repo)
			_, err := eng.Pull(ctx, repo, engine.PullOptions{Switch: true})
			Expect(errors.Is(err, gitx.ErrDetachedHead)).To(BeTrue())
		})
	})

	It("needs a default branch", func() {
		repo, err := eng.Init(filepath.Join(GinkgoT().TempDir(), "nothing"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.SetOrigin("origin", origin(newRemote()))).To(Succeed())

		_, err = eng.Pull(ctx, repo, engine.PullOptions{})
		Expect(errors.Is(err, gitx.ErrUnknownDefaultBranch)).To(BeTrue())
	})

	It("needs a remote", func() {
		repo, err := eng.Init(filepath.Join(GinkgoT().TempDir(), "lonely"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())

		_, err = eng.Pull(ctx, repo, engine.PullOptions{Settings: model.Settings{DefaultBranch: model.StringPtr("main")}})
		Expect(errors.Is(err, gitx.ErrNoRemote)).To(BeTrue())
	})

	It("stops on a cancelled context", func() {
		repo := cloneOf(eng, remote, "cancelled")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.Pull(cctx, repo, engine.PullOptions{Settings: model.Settings{DefaultBranch: model.StringPtr("main")}})
		Expect(errors.Is(err, gitx.ErrCancelled)).To(BeTrue())
		Expect(errors.Is(err, gitx.ErrFetchFailed)).To(BeTrue())
	})
})
