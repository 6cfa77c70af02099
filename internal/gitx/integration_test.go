//go:build integration

package gitx_test

import (
	"context"
	"fmt"
	"net/http/cgi"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
)

var _ = Describe("Fetching over smart HTTP", func() {
	var (
		ctx    context.Context
		bare   *gitx.Repository
		source *gitx.Repository
		url    string
	)

	BeforeEach(func() {
		gitBin, err := exec.LookPath("git")
		if err != nil {
			Skip("git not installed")
		}
		ctx = context.Background()
		bare = initBare("served")
		source = initRepo("source")

		local, err := source.EnsureRemote("origin", bare.Path())
		Expect(err).NotTo(HaveOccurred())
		for i := range 20 {
			commitFile(source, fmt.Sprintf("file-%02d.txt", i), fmt.Sprintf("content %d\n", i))
		}
		Expect(source.Push(ctx, local, "main", model.Settings{})).To(Succeed())

		srv := httptest.NewServer(&cgi.Handler{
			Path: gitBin,
			Args: []string{"http-backend"},
			Env: []string{
				"GIT_PROJECT_ROOT=" + filepath.Dir(bare.Path()),
				"GIT_HTTP_EXPORT_ALL=1",
			},
		})
		DeferCleanup(srv.Close)
		url = srv.URL + "/" + filepath.Base(bare.Path())
	})

	It("reports server progress with counters that never go backwards", func() {
		clone := initRepo("clone")
		web, err := clone.EnsureRemote("origin", url)
		Expect(err).NotTo(HaveOccurred())

		var (
			mu      sync.Mutex
			updates []model.Progress
		)
		_, err = clone.Fetch(ctx, web, gitx.FetchOptions{Progress: func(p model.Progress) {
			mu.Lock()
			defer mu.Unlock()
			updates = append(updates, p)
		}})
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(updates).NotTo(BeEmpty())
		last := map[string]uint64{}
		for _, p := range updates {
			Expect(p.Stage).NotTo(BeEmpty())
			Expect(p.Current).To(BeNumerically(">=", last[p.Stage]), "stage %q", p.Stage)
			if p.Total > 0 {
				Expect(p.Current).To(BeNumerically("<=", p.Total), "stage %q", p.Stage)
			}
			last[p.Stage] = p.Current
		}

		_, tip, err := clone.MergeTarget("origin", "main", "main")
		Expect(err).NotTo(HaveOccurred())
		want, err := source.HeadCommit()
		Expect(err).NotTo(HaveOccurred())
		Expect(tip).To(Equal(want))
	})
})
