// SPDX-License-Identifier: MIT

// Package credentials negotiates which authentication strategy to present to
// a remote. A State walks a fixed strategy list once; it never offers the
// same strategy twice, which bounds every negotiation to four attempts.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/skaphos/reposync/internal/model"
)

// ErrExhausted is returned once no untried compatible strategy remains.
var ErrExhausted = errors.New("credentials exhausted")

// ErrUnavailable marks a strategy that could not be materialized locally
// (no agent socket, unreadable key). Negotiate moves on to the next one.
var ErrUnavailable = errors.New("credential unavailable")

// AllowedTypes is the mask of credential kinds a remote accepts.
type AllowedTypes uint8

const (
	AllowUserPass AllowedTypes = 1 << iota
	AllowSSHKey
	AllowUsername
	AllowDefault
)

// Has reports whether every bit of t is set in a.
func (a AllowedTypes) Has(t AllowedTypes) bool { return a&t == t && t != 0 }

// Strategy identifies one authentication approach.
type Strategy int

const (
	SSHAgent Strategy = iota
	SSHKeyFile
	Username
	Default
)

// Strategies is the fixed negotiation order.
var Strategies = []Strategy{SSHAgent, SSHKeyFile, Username, Default}

func (s Strategy) String() string {
	switch s {
	case SSHAgent:
		return "ssh-agent"
	case SSHKeyFile:
		return "ssh-key-file"
	case Username:
		return "username"
	case Default:
		return "default"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Credential is the material for one attempt. Fields not relevant to
// Strategy are empty.
type Credential struct {
	Strategy   Strategy
	Username   string
	KeyFile    string
	Passphrase string
	// Token is the bearer token for HTTP(S) remotes, used by Default.
	Token string
}

// Source carries everything a negotiation depends on.
type Source struct {
	// URL is the remote endpoint. Its user part is the username hint.
	URL      string
	Settings model.Settings
	// ConfigUsername is credential.username from persisted configuration.
	ConfigUsername string
	// Token is the origin token, if any.
	Token string
}

// State is a per-negotiation cursor. It is not safe for concurrent use and
// should be discarded once the connection attempt finishes.
type State struct {
	src    Source
	cursor int
}

// New returns a State positioned before the first strategy.
func New(src Source) *State {
	return &State{src: src}
}

// Attempts returns how many strategies have been consumed so far.
func (s *State) Attempts() int { return s.cursor }

// Advance returns the next untried strategy compatible with allowed.
func (s *State) Advance(allowed AllowedTypes) (Credential, error) {
	for s.cursor < len(Strategies) {
		strategy := Strategies[s.cursor]
		s.cursor++
		if s.compatible(strategy, allowed) {
			return s.build(strategy), nil
		}
	}
	return Credential{}, ErrExhausted
}

func (s *State) compatible(strategy Strategy, allowed AllowedTypes) bool {
	switch strategy {
	case SSHAgent:
		return allowed.Has(AllowSSHKey)
	case SSHKeyFile:
		return allowed.Has(AllowSSHKey) && s.keyFile() != ""
	case Username:
		return allowed.Has(AllowUsername)
	case Default:
		return allowed.Has(AllowDefault) || allowed.Has(AllowUserPass)
	default:
		return false
	}
}

func (s *State) build(strategy Strategy) Credential {
	cred := Credential{Strategy: strategy, Username: s.username()}
	switch strategy {
	case SSHKeyFile:
		cred.KeyFile = s.keyFile()
		if s.src.Settings.SSH != nil {
			cred.Passphrase = s.src.Settings.SSH.Passphrase
		}
	case Default:
		cred.Token = s.src.Token
	}
	return cred
}

func (s *State) keyFile() string {
	if s.src.Settings.SSH == nil {
		return ""
	}
	return strings.TrimSpace(s.src.Settings.SSH.IdentityFile)
}

// username picks the URL hint, then the ssh settings, then persisted
// configuration, then "git".
func (s *State) username() string {
	if hint := UsernameHint(s.src.URL); hint != "" {
		return hint
	}
	if s.src.Settings.SSH != nil && s.src.Settings.SSH.Username != "" {
		return s.src.Settings.SSH.Username
	}
	if s.src.ConfigUsername != "" {
		return s.src.ConfigUsername
	}
	return "git"
}

// UsernameHint returns the user part of url, or "".
func UsernameHint(url string) string {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return ""
	}
	return ep.User
}

// AllowedFor derives the accepted credential kinds from the URL protocol.
func AllowedFor(url string) AllowedTypes {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return AllowDefault
	}
	switch ep.Protocol {
	case "ssh":
		return AllowSSHKey | AllowUsername
	case "http", "https":
		return AllowUserPass | AllowDefault
	default:
		return AllowDefault
	}
}

// Negotiate calls attempt with each credential State yields until attempt
// succeeds or fails with something other than an authentication error.
// When every strategy is rejected the returned error wraps ErrExhausted and
// the last rejection.
func Negotiate(state *State, allowed AllowedTypes, attempt func(Credential) error) (Credential, error) {
	var last error
	for {
		cred, err := state.Advance(allowed)
		if err != nil {
			if last != nil {
				return Credential{}, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, state.Attempts(), last)
			}
			return Credential{}, err
		}
		err = attempt(cred)
		if err == nil {
			return cred, nil
		}
		if !IsAuthError(err) {
			return cred, err
		}
		last = err
	}
}

// IsAuthError reports whether err means the remote rejected, or we could not
// present, a credential.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied (publickey") ||
		strings.Contains(msg, "no supported methods remain")
}
