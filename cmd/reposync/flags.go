package reposync

import (
	"github.com/spf13/cobra"

	"github.com/skaphos/reposync/internal/model"
	"github.com/skaphos/reposync/internal/strutil"
)

const (
	repoFilterUsage = "filter for --all: all, errors, dirty, clean, diverged, unborn, remote-mismatch, missing"
	noHeadersUsage  = "when using table format, do not print headers"
)

func addFormatFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("format", "o", "table", usage)
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, noHeadersUsage)
}

func addRepoFilterFlag(cmd *cobra.Command) {
	cmd.Flags().String("only", "all", repoFilterUsage)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "max concurrent repo operations (default from config)")
	cmd.Flags().Int("timeout", 0, "per-repo timeout in seconds (default from config)")
}

// addSettingsFlags registers the persistent flags that override the config
// settings block for one invocation.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("default-branch", "", "branch pull and resolve converge on (default: remote HEAD)")
	f.String("default-remote", "", "remote to talk to when several are configured")
	f.Bool("prune", false, "prune remote-tracking branches deleted on the remote")
	f.String("ignore", "", "comma-separated glob patterns excluded from working tree status")
	f.String("ssh-identity", "", "private key tried after the SSH agent")
	f.String("ssh-known-hosts", "", "known_hosts file used to verify SSH host keys")
}

func settingsOverride(cmd *cobra.Command) model.Settings {
	var s model.Settings
	s.DefaultBranch = model.StringPtr(getStringFlag(cmd, "default-branch"))
	s.DefaultRemote = model.StringPtr(getStringFlag(cmd, "default-remote"))
	if f := cmd.Flags().Lookup("prune"); f != nil && f.Changed {
		prune := getBoolFlag(cmd, "prune")
		s.Prune = &prune
	}
	s.Ignore = strutil.SplitCSV(getStringFlag(cmd, "ignore"))
	identity := getStringFlag(cmd, "ssh-identity")
	knownHosts := getStringFlag(cmd, "ssh-known-hosts")
	if identity != "" || knownHosts != "" {
		s.SSH = &model.SSHSettings{IdentityFile: identity, KnownHosts: knownHosts}
	}
	return s
}

func getStringFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func getIntFlag(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	return v
}

// progressPrinter reports transfer progress at -v.
func progressPrinter(cmd *cobra.Command) func(model.Progress) {
	if flagQuiet || flagVerbose <= 0 {
		return nil
	}
	return func(p model.Progress) {
		if p.Total > 0 {
			debugf(cmd, "%s: %d/%d", p.Stage, p.Current, p.Total)
			return
		}
		debugf(cmd, "%s: %d", p.Stage, p.Current)
	}
}
