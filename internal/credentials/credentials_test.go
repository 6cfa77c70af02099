// SPDX-License-Identifier: MIT
package credentials_test

import (
	"errors"

	"github.com/go-git/go-git/v5/plumbing/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/reposync/internal/credentials"
	"github.com/skaphos/reposync/internal/model"
)

var _ = Describe("State", func() {
	withKey := model.Settings{SSH: &model.SSHSettings{IdentityFile: "/home/me/.ssh/id_ed25519", Passphrase: "pw"}}

	It("walks every strategy once in order", func() {
		state := credentials.New(credentials.Source{URL: "ssh://git@example.com/repo.git", Settings: withKey})
		all := credentials.AllowSSHKey | credentials.AllowUsername | credentials.AllowDefault

		var seen []credentials.Strategy
		for {
			cred, err := state.Advance(all)
			if err != nil {
				Expect(err).To(MatchError(credentials.ErrExhausted))
				break
			}
			seen = append(seen, cred.Strategy)
		}
		Expect(seen).To(Equal([]credentials.Strategy{
			credentials.SSHAgent, credentials.SSHKeyFile, credentials.Username, credentials.Default,
		}))

		_, err := state.Advance(all)
		Expect(err).To(MatchError(credentials.ErrExhausted))
	})

	It("skips the key file strategy when none is configured", func() {
		state := credentials.New(credentials.Source{URL: "git@example.com:org/repo.git"})
		first, err := state.Advance(credentials.AllowSSHKey | credentials.AllowUsername)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Strategy).To(Equal(credentials.SSHAgent))

		second, err := state.Advance(credentials.AllowSSHKey | credentials.AllowUsername)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Strategy).To(Equal(credentials.Username))
	})

	It("carries key material and passphrase for the key file strategy", func() {
		state := credentials.New(credentials.Source{URL: "git@example.com:org/repo.git", Settings: withKey})
		_, _ = state.Advance(credentials.AllowSSHKey)
		cred, err := state.Advance(credentials.AllowSSHKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.KeyFile).To(Equal("/home/me/.ssh/id_ed25519"))
		Expect(cred.Passphrase).To(Equal("pw"))
		Expect(cred.Username).To(Equal("git"))
	})

	It("offers only Default for HTTP remotes and attaches the token", func() {
		state := credentials.New(credentials.Source{URL: "https://example.com/repo.git", Token: "t"})
		cred, err := state.Advance(credentials.AllowedFor("https://example.com/repo.git"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Strategy).To(Equal(credentials.Default))
		Expect(cred.Token).To(Equal("t"))

		_, err = state.Advance(credentials.AllowUserPass | credentials.AllowDefault)
		Expect(err).To(MatchError(credentials.ErrExhausted))
	})

	It("prefers the URL username over configured names", func() {
		src := credentials.Source{
			URL:            "ssh://deploy@example.com/repo.git",
			ConfigUsername: "config-user",
		}
		cred, err := credentials.New(src).Advance(credentials.AllowUsername)
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Username).To(Equal("deploy"))

		src.URL = "https://example.com/repo.git"
		cred, err = credentials.New(src).Advance(credentials.AllowUsername)
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Username).To(Equal("config-user"))
	})
})

var _ = Describe("AllowedFor", func() {
	DescribeTable("derives the mask from the protocol",
		func(url string, want credentials.AllowedTypes) {
			Expect(credentials.AllowedFor(url)).To(Equal(want))
		},
		Entry("scp-like", "git@github.com:org/repo.git", credentials.AllowSSHKey|credentials.AllowUsername),
		Entry("ssh", "ssh://git@github.com/org/repo.git", credentials.AllowSSHKey|credentials.AllowUsername),
		Entry("https", "https://github.com/org/repo.git", credentials.AllowUserPass|credentials.AllowDefault),
		Entry("local path", "/srv/git/repo.git", credentials.AllowDefault),
	)
})

var _ = Describe("Negotiate", func() {
	all := credentials.AllowSSHKey | credentials.AllowUsername | credentials.AllowDefault | credentials.AllowUserPass

	It("stops after at most four rejected attempts", func() {
		settings := model.Settings{SSH: &model.SSHSettings{IdentityFile: "/k"}}
		state := credentials.New(credentials.Source{URL: "ssh://git@example.com/r.git", Settings: settings})
		calls := 0
		_, err := credentials.Negotiate(state, all, func(credentials.Credential) error {
			calls++
			return transport.ErrAuthorizationFailed
		})
		Expect(calls).To(Equal(4))
		Expect(errors.Is(err, credentials.ErrExhausted)).To(BeTrue())
		Expect(errors.Is(err, transport.ErrAuthorizationFailed)).To(BeTrue())
	})

	It("returns the first accepted credential", func() {
		state := credentials.New(credentials.Source{URL: "ssh://git@example.com/r.git"})
		cred, err := credentials.Negotiate(state, all, func(c credentials.Credential) error {
			if c.Strategy == credentials.SSHAgent {
				return credentials.ErrUnavailable
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Strategy).To(Equal(credentials.Username))
		Expect(state.Attempts()).To(Equal(3))
	})

	It("stops immediately on non-auth failures", func() {
		state := credentials.New(credentials.Source{URL: "ssh://git@example.com/r.git"})
		boom := errors.New("connection reset")
		calls := 0
		_, err := credentials.Negotiate(state, all, func(credentials.Credential) error {
			calls++
			return boom
		})
		Expect(calls).To(Equal(1))
		Expect(err).To(MatchError(boom))
	})

	It("reports exhaustion when nothing is compatible", func() {
		state := credentials.New(credentials.Source{URL: "/tmp/repo"})
		_, err := credentials.Negotiate(state, credentials.AllowedTypes(0), func(credentials.Credential) error {
			Fail("attempt must not be called")
			return nil
		})
		Expect(err).To(MatchError(credentials.ErrExhausted))
	})
})
