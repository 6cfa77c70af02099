// SPDX-License-Identifier: MIT
package gitx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/skaphos/reposync/internal/credentials"
	"github.com/skaphos/reposync/internal/model"
)

// TokenAuth sends "Authorization: token <Token>" on every HTTP request.
type TokenAuth struct {
	Token string
}

var _ githttp.AuthMethod = (*TokenAuth)(nil)

// SetAuth implements githttp.AuthMethod.
func (a *TokenAuth) SetAuth(r *http.Request) {
	if a == nil || a.Token == "" {
		return
	}
	r.Header.Set("Authorization", "token "+a.Token)
}

// Name implements transport.AuthMethod.
func (a *TokenAuth) Name() string { return "http-token-header" }

func (a *TokenAuth) String() string { return fmt.Sprintf("%s - %s", a.Name(), "<redacted>") }

// negotiate runs fn once per credential the negotiator offers for remote.
func (r *Repository) negotiate(remote *Remote, settings model.Settings, fn func(transport.AuthMethod) error) error {
	username, err := r.ConfigValue("credential", "", "username")
	if err != nil {
		return err
	}
	src := credentials.Source{
		URL:            remote.URL,
		Settings:       settings,
		ConfigUsername: username,
		Token:          remote.Token,
	}
	proto := protocol(remote.URL)
	_, err = credentials.Negotiate(credentials.New(src), credentials.AllowedFor(remote.URL), func(c credentials.Credential) error {
		auth, err := authMethod(c, proto, settings.SSH)
		if err != nil {
			return err
		}
		return fn(auth)
	})
	if errors.Is(err, credentials.ErrExhausted) {
		return wrap(ErrAuthExhausted, err)
	}
	return err
}

// authMethod turns a negotiated credential into a go-git auth method. A nil
// method with a nil error means anonymous access.
func authMethod(c credentials.Credential, proto string, ssh *model.SSHSettings) (transport.AuthMethod, error) {
	switch c.Strategy {
	case credentials.SSHAgent:
		auth, err := gitssh.NewSSHAgentAuth(c.Username)
		if err != nil {
			return nil, wrap(credentials.ErrUnavailable, err)
		}
		return auth, applyHostKeys(&auth.HostKeyCallbackHelper, ssh)
	case credentials.SSHKeyFile:
		auth, err := gitssh.NewPublicKeysFromFile(c.Username, c.KeyFile, c.Passphrase)
		if err != nil {
			return nil, wrap(credentials.ErrUnavailable, err)
		}
		return auth, applyHostKeys(&auth.HostKeyCallbackHelper, ssh)
	case credentials.Username:
		if isHTTP(proto) {
			return &githttp.BasicAuth{Username: c.Username}, nil
		}
		auth := &gitssh.Password{User: c.Username}
		return auth, applyHostKeys(&auth.HostKeyCallbackHelper, ssh)
	case credentials.Default:
		if isHTTP(proto) && c.Token != "" {
			return &TokenAuth{Token: c.Token}, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported credential strategy %s", c.Strategy)
	}
}

func applyHostKeys(helper *gitssh.HostKeyCallbackHelper, ssh *model.SSHSettings) error {
	if ssh == nil || ssh.KnownHosts == "" {
		return nil
	}
	cb, err := knownhosts.New(ssh.KnownHosts)
	if err != nil {
		return wrap(credentials.ErrUnavailable, err)
	}
	helper.HostKeyCallback = gossh.HostKeyCallback(cb)
	return nil
}

func protocol(url string) string {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return ""
	}
	return ep.Protocol
}

func isHTTP(proto string) bool { return proto == "http" || proto == "https" }

// IsHTTPURL reports whether url is served over HTTP(S).
func IsHTTPURL(url string) bool { return isHTTP(protocol(url)) }
