// SPDX-License-Identifier: MIT
package reposync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/engine"
	"github.com/skaphos/reposync/internal/model"
)

const redactedToken = "<redacted>"

var originCmd = &cobra.Command{
	Use:   "origin",
	Short: "Read or write the persisted origin of a remote",
}

var originGetCmd = &cobra.Command{
	Use:   "get [PATH]",
	Short: "Print the origin URL and token presence",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		kind, err := parseOutputKind(getStringFlag(cmd, "format"))
		if err != nil {
			return err
		}
		repo, err := openRepo(repoPath(args, 0))
		if err != nil {
			return err
		}
		repo.Lock()
		defer repo.Unlock()
		name := getStringFlag(cmd, "remote")
		if name == "" {
			remote, err := engine.DefaultRemote(repo, s.settings(cmd))
			if err != nil {
				return err
			}
			name = remote.Name
		}
		origin, err := repo.GetOrigin(name)
		if err != nil {
			return err
		}
		if origin.HasToken() && !getBoolFlag(cmd, "show-token") {
			origin.Token = model.StringPtr(redactedToken)
		}
		if handled, err := writeStructured(cmd, kind, origin); handled {
			return err
		}
		token := "-"
		if origin.Token != nil {
			token = *origin.Token
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\ttoken=%s\n", name, origin.URL, token)
		return err
	},
}

var originSetCmd = &cobra.Command{
	Use:   "set URL [PATH]",
	Short: "Persist the origin URL and token for a remote",
	Long:  "Writes URL into remote.<name>.url. A token is stored in remote.<name>.token; omitting --token clears it.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		repo, err := openRepo(repoPath(args, 1))
		if err != nil {
			return err
		}
		name := getStringFlag(cmd, "remote")
		if name == "" {
			name = model.Deref(s.settings(cmd).DefaultRemote, s.cfg.Defaults.RemoteName)
		}
		origin := model.Origin{URL: args[0], Token: model.StringPtr(getStringFlag(cmd, "token"))}
		repo.Lock()
		defer repo.Unlock()
		if err := repo.SetOrigin(name, origin); err != nil {
			return err
		}
		infof(cmd, "origin of %s set to %s", name, origin.URL)
		return nil
	},
}

func init() {
	originGetCmd.Flags().String("remote", "", "remote name (default: the default remote)")
	originGetCmd.Flags().Bool("show-token", false, "print the stored token instead of redacting it")
	addFormatFlag(originGetCmd, "output format: table, json or yaml")

	originSetCmd.Flags().String("remote", "", "remote name (default: default-remote setting, else origin)")
	originSetCmd.Flags().String("token", "", "access token for HTTPS remotes")

	originCmd.AddCommand(originGetCmd, originSetCmd)
	rootCmd.AddCommand(originCmd)
}
