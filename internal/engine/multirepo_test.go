package engine_test

import (
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
)

func entryFor(id string, repo *gitx.Repository) registry.Entry {
	return registry.Entry{RepoID: id, Path: repo.Path(), Type: "checkout", Status: registry.StatusPresent}
}

func missingEntry(id string) registry.Entry {
	return registry.Entry{
		RepoID: id,
		Path:   filepath.Join(GinkgoT().TempDir(), "gone"),
		Status: registry.StatusMissing,
	}
}

var _ = Describe("Scan", func() {
	It("registers checkouts and bare repositories under the roots", func() {
		ctx := context.Background()
		reg := &registry.Registry{}
		eng := newEngine(reg)
		remote := seeded(eng, "Hello, world!\n")
		root := GinkgoT().TempDir()

		_, err := eng.Clone(ctx, remote, filepath.Join(root, "clone"), engine.CloneOptions{})
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.Init(filepath.Join(root, "local"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.Init(filepath.Join(root, "mirror.git"), true, model.Settings{})
		Expect(err).NotTo(HaveOccurred())

		reports, err := eng.Scan(ctx, engine.ScanOptions{Roots: []string{root}})
		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(3))
		Expect(reg.Entries).To(HaveLen(3))
		Expect(reg.UpdatedAt.IsZero()).To(BeFalse())

		byPath := map[string]model.RepoReport{}
		for _, r := range reports {
			byPath[filepath.Base(r.Path)] = r
		}
		Expect(byPath["mirror.git"].Bare).To(BeTrue())
		Expect(byPath["clone"].PrimaryRemote).To(Equal("origin"))
		Expect(strings.HasPrefix(byPath["local"].RepoID, "local:")).To(BeTrue())

		entry := reg.FindByPath(byPath["mirror.git"].Path)
		Expect(entry).NotTo(BeNil())
		Expect(entry.Type).To(Equal("bare"))
	})

	It("requires a root", func() {
		_, err := newEngine(nil).Scan(context.Background(), engine.ScanOptions{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("StatusAll", func() {
	var (
		ctx context.Context
		reg *registry.Registry
		eng *engine.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = &registry.Registry{}
		eng = newEngine(reg)
		remote := seeded(eng, "Hello, world!\n")
		clean := cloneOf(eng, remote, "clean")
		dirty := cloneOf(eng, remote, "dirty")
		writeFile(dirty, "scratch.txt", "x\n")
		reg.Entries = []registry.Entry{
			entryFor("b", clean),
			entryFor("a", dirty),
			missingEntry("c"),
		}
	})

	It("reports every entry, failures in-band", func() {
		report, err := eng.StatusAll(ctx, engine.StatusOptions{Concurrency: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Repos).To(HaveLen(3))
		Expect(report.GeneratedAt.IsZero()).To(BeFalse())

		var missing int
		for _, r := range report.Repos {
			if r.ErrorClass == "missing" {
				missing++
				Expect(r.Status).To(BeNil())
				continue
			}
			Expect(r.Error).To(BeEmpty())
			Expect(r.Status).NotTo(BeNil())
			Expect(*r.Status.DefaultBranch).To(Equal("main"))
		}
		Expect(missing).To(Equal(1))
	})

	It("filters the rows", func() {
		report, err := eng.StatusAll(ctx, engine.StatusOptions{Filter: engine.FilterDirty})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Repos).To(HaveLen(1))
		Expect(filepath.Base(report.Repos[0].Path)).To(Equal("dirty"))

		report, err = eng.StatusAll(ctx, engine.StatusOptions{Filter: engine.FilterMissing})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Repos).To(HaveLen(1))
		Expect(report.Repos[0].RepoID).To(Equal("c"))
	})

	It("needs a registry", func() {
		_, err := newEngine(nil).StatusAll(ctx, engine.StatusOptions{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ResolveAll", func() {
	var (
		ctx      context.Context
		reg      *registry.Registry
		eng      *engine.Engine
		remote   string
		behind   *gitx.Repository
		diverged *gitx.Repository
		lonely   *gitx.Repository
		tip      string
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = &registry.Registry{}
		eng = newEngine(reg)
		remote = seeded(eng, "Hello, world!\n")
		behind = cloneOf(eng, remote, "behind")
		diverged = cloneOf(eng, remote, "diverged")
		writer := cloneOf(eng, remote, "writer")
		tip = publish(eng, writer, remote, "bar.txt", "bar\n").String()
		commitFile(eng, diverged, "mine.txt", "mine\n")

		var err error
		lonely, err = eng.Init(filepath.Join(GinkgoT().TempDir(), "lonely"), false, model.Settings{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("runs every entry and records the outcomes", func() {
		reg.Entries = []registry.Entry{
			entryFor("a", behind),
			entryFor("b", diverged),
			entryFor("c", lonely),
			missingEntry("d"),
		}
		var streamed []engine.RunResult
		results, err := eng.ResolveAll(ctx, engine.ResolveAllOptions{
			ContinueOnError: true,
			Concurrency:     2,
			OnResult:        func(r engine.RunResult) { streamed = append(streamed, r) },
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(streamed).To(HaveLen(4))
		Expect(results).To(HaveLen(4))

		outcomes := map[string]engine.RunOutcome{}
		for _, r := range results {
			outcomes[r.RepoID] = r.Outcome
		}
		Expect(outcomes).To(Equal(map[string]engine.RunOutcome{
			"a": engine.OutcomeResolved,
			"b": engine.OutcomeDiverged,
			"c": engine.OutcomeSkippedRemote,
			"d": engine.OutcomeSkippedMissing,
		}))
		Expect(results[0].RepoID).To(Equal("a"))
		Expect(headCommit(behind).String()).To(Equal(tip))

		rec := reg.FindByPath(behind.Path()).LastResolve
		Expect(rec).NotTo(BeNil())
		Expect(rec.OK).To(BeTrue())
		Expect(rec.Error).To(BeEmpty())

		rec = reg.FindByPath(diverged.Path()).LastResolve
		Expect(rec).NotTo(BeNil())
		Expect(rec.OK).To(BeFalse())
		Expect(rec.Error).To(ContainSubstring("push failed"))
		Expect(reg.FindByPath(reg.Entries[3].Path).LastResolve).To(BeNil())
	})

	It("stops at the first failure without continue-on-error", func() {
		reg.Entries = []registry.Entry{
			entryFor("b", diverged),
			entryFor("a", behind),
		}
		results, err := eng.ResolveAll(ctx, engine.ResolveAllOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Outcome).To(Equal(engine.OutcomeDiverged))
		Expect(results[0].OK).To(BeFalse())
		Expect(headCommit(behind).String()).NotTo(Equal(tip))
	})
})
