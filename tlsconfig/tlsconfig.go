/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tlsconfig builds the shared, immutable-after-first-use TLS
// configuration both Client and Server wrap sessions around. Its one
// non-obvious job is the Gemini Trust-On-First-Use policy: a self-signed
// server certificate must not abort the handshake, but the fact that it
// was unverified must survive to the caller via VerificationFlags.
package tlsconfig

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/dimkr/gemlib/certinfo"
)

// Role distinguishes a client-side from a server-side configuration; the
// two apply different ClientAuth / certificate-verification policy.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Config is a shared, per-role TLS configuration. Build one with
// NewClientConfig or NewServerConfig and pass it by reference to every
// session.Wrap call; never mutate it after the first session exists, and
// never put per-connection state in it - that is exactly the bug this
// package exists to avoid (see session.Wrap, which keeps all
// per-connection state in the Session it returns).
type Config struct {
	Role      Role
	TLS       *tls.Config
	SessionID []byte // server role only
}

// NewClientConfig builds a client-role TLS configuration. If cert is
// non-nil, it is presented to servers requesting client authentication.
// Verification failures never abort the client handshake - the Gemini
// TOFU model defers the trust decision to the caller - but the failure
// is classified and exposed through the session's certificate info via
// ClassifyConnectionState, which session.Wrap calls once per handshake
// on that handshake's own ConnectionState. Nothing about the outcome is
// stored on Config itself, so N concurrent handshakes sharing one
// Config never see each other's results.
func NewClientConfig(cert *tls.Certificate) (*Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true, // TOFU: classify, never abort; see ClassifyConnectionState
	}

	if cert != nil {
		tlsCfg.Certificates = []tls.Certificate{*cert}
	}

	return &Config{Role: RoleClient, TLS: tlsCfg}, nil
}

// NewServerConfig builds a server-role TLS configuration from a
// certificate and key file. A client certificate is requested but never
// required (ClientAuth: RequestClientCert) - Gemini servers decide
// per-request whether a missing or unrecognized certificate matters. If
// sessionID is nil, a fresh 32-byte random one is generated.
func NewServerConfig(certFile, keyFile string, sessionID []byte) (*Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: failed to load server certificate: %w", err)
	}

	if sessionID == nil {
		sessionID = make([]byte, 32)
		if _, err := rand.Read(sessionID); err != nil {
			return nil, fmt.Errorf("tlsconfig: failed to generate session id: %w", err)
		}
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		Certificates:       []tls.Certificate{cert},
		ClientAuth:         tls.RequestClientCert,
		InsecureSkipVerify: true,
	}

	return &Config{Role: RoleServer, TLS: tlsCfg, SessionID: sessionID}, nil
}

// ClassifyConnectionState runs Go's standard chain verification against
// a completed handshake's ConnectionState and classifies the outcome
// into VerificationFlags: depth-0 "untrusted root" is reported as
// FlagNotTrusted and nothing else, exactly what a self-signed
// certificate produces. Any other failure (expiry, hostname mismatch,
// malformed chain) is FlagOtherDefect. It is a pure function of cs, so
// callers sharing one Config across concurrent handshakes each get
// their own independent result.
func ClassifyConnectionState(cs tls.ConnectionState) certinfo.VerificationFlags {
	if len(cs.PeerCertificates) == 0 {
		return 0
	}

	opts := x509.VerifyOptions{
		Roots:         nil, // system roots
		Intermediates: x509.NewCertPool(),
		DNSName:       cs.ServerName,
	}
	for _, c := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(c)
	}

	if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
		return certinfo.ClassifyVerifyError(err)
	}

	return 0
}

// DebugSessionID renders the server's TLS session id as base58 for
// compact, unambiguous display in logs and startup banners - the same
// rationale as base58-encoding key material, applied here to an opaque
// identifier rather than a key.
func (c *Config) DebugSessionID() string {
	if len(c.SessionID) == 0 {
		return ""
	}
	return base58.Encode(c.SessionID)
}
