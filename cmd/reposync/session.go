// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/config"
	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/gitx"
	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/registry"
	"github.com/skaphos/reposync/internal/sortutil"
)

// session is the per-invocation state shared by commands.
type session struct {
	cwd     string
	cfgPath string
	// cfgExists is false when defaults stand in for a missing config file.
	cfgExists bool
	cfg       *config.Config
	reg       *registry.Registry
	eng       *engine.Engine
}

func loadSession(cmd *cobra.Command) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, err
	}
	exists := true
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		def := config.DefaultConfig()
		cfg = &def
		exists = false
		debugf(cmd, "no config at %s, using defaults", cfgPath)
	} else {
		debugf(cmd, "using config %s", cfgPath)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = &registry.Registry{}
	}
	return &session{
		cwd:       cwd,
		cfgPath:   cfgPath,
		cfgExists: exists,
		cfg:       cfg,
		reg:       reg,
		eng:       engine.New(cfg, reg, engine.WithLogger(newLogger(cmd))),
	}, nil
}

// settings overlays the command-line settings flags on the config.
func (s *session) settings(cmd *cobra.Command) model.Settings {
	return s.eng.Settings(settingsOverride(cmd))
}

// saveRegistry persists the registry next to, or inside, the config file.
func (s *session) saveRegistry() error {
	sortutil.SortRegistryEntries(s.reg.Entries)
	if s.cfg.RegistryPath != "" {
		return registry.Save(s.reg, config.ResolveRegistryPath(s.cfgPath, s.cfg.RegistryPath))
	}
	s.cfg.Registry = s.reg
	return config.Save(s.cfg, s.cfgPath)
}

// recordResolve stores rec on the registry entry for path when one exists.
// Untracked working copies are left out of the registry.
func (s *session) recordResolve(cmd *cobra.Command, path string, rec model.ResolveRecord) {
	if !s.cfgExists || !s.reg.RecordResolve(path, rec) {
		return
	}
	if err := s.saveRegistry(); err != nil {
		infof(cmd, "warning: could not save registry: %v", err)
	}
}

// repoPath returns the first positional argument at index, or the working directory.
func repoPath(args []string, index int) string {
	if len(args) > index && args[index] != "" {
		return args[index]
	}
	return "."
}

func openRepo(path string) (*gitx.Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return gitx.Open(abs)
}
