// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/cliio"
	"github.com/skaphos/reposync/internal/config"
	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/registry"
	"github.com/skaphos/reposync/internal/sortutil"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the reposync configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file and seed its registry",
	Long:  "Creates a reposync config file in the current directory by default, then scans the directory that holds it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfgPath, err := config.InitConfigPath(flagConfig, cwd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfgPath); err == nil {
			if !getBoolFlag(cmd, "force") {
				return fmt.Errorf("config already exists at %q (use --force to overwrite)", cfgPath)
			}
			if err := os.Remove(cfgPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove existing config %q: %w", cfgPath, err)
			}
		}

		cfg := config.DefaultConfig()
		cfg.Registry = &registry.Registry{}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		if !getBoolFlag(cmd, "no-scan") {
			eng := engine.New(&cfg, cfg.Registry, engine.WithLogger(newLogger(cmd)))
			if _, err := eng.Scan(cmd.Context(), engine.ScanOptions{Roots: []string{config.ConfigRoot(cfgPath)}}); err != nil {
				return err
			}
			sortutil.SortRegistryEntries(cfg.Registry.Entries)
			if err := config.Save(&cfg, cfgPath); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s (%d repos)\n", cfgPath, len(cfg.Registry.Entries))
		return err
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		if !s.cfgExists {
			infof(cmd, "no config at %s, showing defaults", s.cfgPath)
		}
		cfg := *s.cfg
		cfg.Settings = s.settings(cmd)
		if getStringFlag(cmd, "format") == string(outputKindJSON) {
			return cliio.WriteJSON(cmd.OutOrStdout(), cfg)
		}
		return cliio.WriteYAML(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configInitCmd.Flags().Bool("no-scan", false, "do not seed the registry from the config directory")
	configViewCmd.Flags().StringP("format", "o", "yaml", "output format: yaml or json")

	configCmd.AddCommand(configInitCmd, configViewCmd)
	rootCmd.AddCommand(configCmd)
}
