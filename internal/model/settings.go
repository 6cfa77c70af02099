package model

// SSHSettings configures SSH authentication. The core treats it as opaque;
// only the credential negotiator reads it.
type SSHSettings struct {
	// IdentityFile is the private key tried after the agent.
	IdentityFile string `json:"identity-file,omitempty" yaml:"identity-file,omitempty"`
	Passphrase   string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	// Username overrides the user part of the remote URL.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	// KnownHosts is a known_hosts file used to verify host keys. Empty uses
	// the go-git default lookup.
	KnownHosts string `json:"known-hosts,omitempty" yaml:"known-hosts,omitempty"`
}

// Settings is the override layer applied on top of persisted repository
// configuration. Nil fields fall through to the repository or to defaults.
type Settings struct {
	DefaultBranch *string      `json:"default-branch,omitempty" yaml:"default-branch,omitempty"`
	DefaultRemote *string      `json:"default-remote,omitempty" yaml:"default-remote,omitempty"`
	SSH           *SSHSettings `json:"ssh,omitempty" yaml:"ssh,omitempty"`
	Editor        *string      `json:"editor,omitempty" yaml:"editor,omitempty"`
	Ignore        []string     `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Prune         *bool        `json:"prune,omitempty" yaml:"prune,omitempty"`
}

// Merge returns s with every nil field filled from fallback.
func (s Settings) Merge(fallback Settings) Settings {
	out := s
	if out.DefaultBranch == nil {
		out.DefaultBranch = fallback.DefaultBranch
	}
	if out.DefaultRemote == nil {
		out.DefaultRemote = fallback.DefaultRemote
	}
	if out.SSH == nil {
		out.SSH = fallback.SSH
	}
	if out.Editor == nil {
		out.Editor = fallback.Editor
	}
	if out.Ignore == nil {
		out.Ignore = fallback.Ignore
	}
	if out.Prune == nil {
		out.Prune = fallback.Prune
	}
	return out
}

// StringPtr returns a pointer to v, or nil when v is empty.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Deref returns *p or fallback when p is nil or empty.
func Deref(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
