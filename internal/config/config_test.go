package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/config"
	"github.com/skaphos/reposync/internal/model"
)

var _ = Describe("Config", func() {
	It("resolves config path from override directory", func() {
		path, err := config.ConfigPath(filepath.Join("C:", "tmp", "reposync"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("reposync", "config.yaml")))
	})

	It("resolves config path from override file", func() {
		path, err := config.ConfigPath(filepath.Join("C:", "tmp", "config.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("tmp", "config.yaml")))
	})

	It("resolves config path from env", func() {
		Expect(os.Setenv(config.EnvConfig, filepath.Join("C:", "cfg", "config.yaml"))).To(Succeed())
		defer func() { _ = os.Unsetenv(config.EnvConfig) }()
		path, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("cfg", "config.yaml")))
	})

	It("resolves init path to local dotfile by default", func() {
		dir := GinkgoT().TempDir()
		path, err := config.InitConfigPath("", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, config.LocalConfigFilename)))
	})

	It("prefers local dotfile for runtime config resolution", func() {
		dir := GinkgoT().TempDir()
		localPath := filepath.Join(dir, config.LocalConfigFilename)
		Expect(os.WriteFile(localPath, []byte("exclude: []\n"), 0o644)).To(Succeed())

		path, err := config.ResolveConfigPath("", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(localPath))
	})

	It("resolves runtime config from nearest parent dotfile", func() {
		dir := GinkgoT().TempDir()
		parentPath := filepath.Join(dir, config.LocalConfigFilename)
		Expect(os.WriteFile(parentPath, []byte("exclude: []\n"), 0o644)).To(Succeed())

		nested := filepath.Join(dir, "a", "b", "c")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		path, err := config.ResolveConfigPath("", nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(parentPath))
	})

	It("prefers nearer dotfile over farther parent", func() {
		dir := GinkgoT().TempDir()
		parentPath := filepath.Join(dir, config.LocalConfigFilename)
		Expect(os.WriteFile(parentPath, []byte("exclude: []\n"), 0o644)).To(Succeed())

		childDir := filepath.Join(dir, "a", "b")
		Expect(os.MkdirAll(childDir, 0o755)).To(Succeed())
		childPath := filepath.Join(childDir, config.LocalConfigFilename)
		Expect(os.WriteFile(childPath, []byte("exclude: []\n"), 0o644)).To(Succeed())

		nested := filepath.Join(childDir, "c")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		path, err := config.ResolveConfigPath("", nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(childPath))
	})

	It("falls back to global runtime config when local dotfile is absent", func() {
		dir := GinkgoT().TempDir()
		path, err := config.ResolveConfigPath("", dir)
		Expect(err).NotTo(HaveOccurred())

		globalPath, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(globalPath))
	})

	It("saves and loads config with defaults", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.yaml")
		cfg := config.DefaultConfig()
		cfg.RegistryPath = "registry.yaml"
		cfg.Settings.DefaultRemote = model.StringPtr("upstream")

		Expect(config.Save(&cfg, path)).To(Succeed())
		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Kind).To(Equal(config.ConfigKind))
		Expect(model.Deref(loaded.Settings.DefaultRemote, "")).To(Equal("upstream"))
		Expect(config.ResolveRegistryPath(path, loaded.RegistryPath)).To(Equal(filepath.Join(dir, "registry.yaml")))
		Expect(loaded.Defaults.RemoteName).To(Equal("origin"))
		Expect(loaded.Defaults.Branch).To(Equal("main"))
	})

	It("fills missing defaults on load", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.yaml")
		data := "settings:\n  default-branch: trunk\n  ssh:\n    identity-file: /keys/id\ndefaults:\n  concurrency: 2\n"
		Expect(os.WriteFile(path, []byte(data), 0o644)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.APIVersion).To(Equal(config.ConfigAPIVersion))
		Expect(loaded.Defaults.Concurrency).To(Equal(2))
		Expect(loaded.Defaults.TimeoutSeconds).To(Equal(60))
		Expect(loaded.Defaults.AuthorName).To(Equal("reposync"))
		Expect(loaded.Settings.SSH.IdentityFile).To(Equal("/keys/id"))
		Expect(model.Deref(loaded.Settings.DefaultBranch, "")).To(Equal("trunk"))
	})

	It("layers call settings over the config block", func() {
		cfg := config.DefaultConfig()
		cfg.Settings.DefaultBranch = model.StringPtr("main")
		cfg.Settings.DefaultRemote = model.StringPtr("origin")

		got := cfg.ResolveSettings(model.Settings{DefaultBranch: model.StringPtr("dev")})
		Expect(model.Deref(got.DefaultBranch, "")).To(Equal("dev"))
		Expect(model.Deref(got.DefaultRemote, "")).To(Equal("origin"))

		var none *config.Config
		Expect(none.ResolveSettings(model.Settings{}).DefaultBranch).To(BeNil())
	})

	It("returns an RFC3339 timestamp for last updated", func() {
		ts := config.LastUpdated()
		_, err := time.Parse(time.RFC3339, ts)
		Expect(err).NotTo(HaveOccurred())
	})
})
