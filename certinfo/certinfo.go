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

// Package certinfo wraps a peer's X.509 certificate with the
// verification-flag bookkeeping the Gemini Trust-On-First-Use model
// needs: a self-signed certificate is a normal, expected outcome here,
// not an error.
package certinfo

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"strings"
)

// VerificationFlags is a bitmask describing why chain verification of a
// peer certificate failed, modeled after the single bit the Gemini
// trust policy cares about: "the chain isn't rooted in a trust store"
// versus everything else (expired, wrong host, malformed).
type VerificationFlags uint32

const (
	// FlagNotTrusted is set when the only defect is that the
	// certificate's issuer isn't in a trust store - exactly the shape
	// of a self-signed certificate.
	FlagNotTrusted VerificationFlags = 1 << iota
	// FlagOtherDefect is set for any other verification failure
	// (expired, name mismatch, malformed chain, revoked).
	FlagOtherDefect
)

// ClassifyVerifyError maps a [crypto/tls] verification error into
// VerificationFlags, clearing nothing at depth 0 the way a CA decision
// would - it just records which single bit describes the failure: an
// untrusted root sets FlagNotTrusted, anything else sets FlagOtherDefect.
func ClassifyVerifyError(err error) VerificationFlags {
	if err == nil {
		return 0
	}

	var unknownAuthority x509.UnknownAuthorityError
	if ok := asUnknownAuthority(err, &unknownAuthority); ok {
		return FlagNotTrusted
	}

	return FlagOtherDefect
}

func asUnknownAuthority(err error, target *x509.UnknownAuthorityError) bool {
	for {
		if ua, ok := err.(x509.UnknownAuthorityError); ok {
			*target = ua
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
}

// Certificate is a peer certificate plus the verification flags recorded
// for it during the handshake.
type Certificate struct {
	Cert  *x509.Certificate
	Flags VerificationFlags
}

// HasCertificate reports whether a peer certificate was presented.
func (c *Certificate) HasCertificate() bool {
	return c != nil && c.Cert != nil
}

// IsVerified reports full chain validation succeeded: no flags set.
func (c *Certificate) IsVerified() bool {
	return c.HasCertificate() && c.Flags == 0
}

// IsSelfSigned reports that the only defect is an untrusted chain - the
// shape of a self-signed certificate under TOFU.
func (c *Certificate) IsSelfSigned() bool {
	return c.HasCertificate() && c.Flags == FlagNotTrusted
}

// CommonName returns the subject's CN, or "" if there is no certificate.
func (c *Certificate) CommonName() string {
	if !c.HasCertificate() {
		return ""
	}
	return c.Cert.Subject.CommonName
}

// Fingerprint returns the lowercase, colon-separated SHA-256 fingerprint
// of the certificate's raw DER encoding, e.g. "ab:cd:...".
func (c *Certificate) Fingerprint() string {
	if !c.HasCertificate() {
		return ""
	}
	sum := sha256.Sum256(c.Cert.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// Dump returns a human-readable summary of the certificate, for display
// in a TOFU prompt or a debug log line.
func (c *Certificate) Dump() string {
	if !c.HasCertificate() {
		return "<no certificate>"
	}
	return fmt.Sprintf(
		"subject=%s issuer=%s not-before=%s not-after=%s fingerprint=%s verified=%t self-signed=%t",
		c.Cert.Subject.String(),
		c.Cert.Issuer.String(),
		c.Cert.NotBefore.Format("2006-01-02"),
		c.Cert.NotAfter.Format("2006-01-02"),
		c.Fingerprint(),
		c.IsVerified(),
		c.IsSelfSigned(),
	)
}
