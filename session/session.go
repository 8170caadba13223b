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

// Package session wraps one TLS connection carrying exactly one Gemini
// transaction: a single request line out, a single status/meta header
// and (for status 20) a body, then close. Both package client and
// package gemini build on top of a Session rather than talking to
// *tls.Conn directly.
package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/gemerr"
	"github.com/dimkr/gemlib/slogru"
	"github.com/dimkr/gemlib/tlsconfig"
)

// Role mirrors tlsconfig.Role: which side of the handshake a Session
// performed.
type Role = tlsconfig.Role

const (
	RoleClient = tlsconfig.RoleClient
	RoleServer = tlsconfig.RoleServer
)

// requestLineLimit is the maximum size, including the trailing CRLF, of
// a Gemini request line (spec: 1024 bytes of URL plus CRLF). Send holds
// every line it writes to it; RecvLine takes its limit from the caller.
const requestLineLimit = 1026 // 1024-byte URL + CRLF

// headerBufferSize is the minimum buffered-read size package session
// guarantees, large enough to hold a full request line or a status
// line with a long <META>.
const headerBufferSize = 4096

// Session is one TLS connection wrapped for line-oriented Gemini I/O.
// It is not safe for concurrent use: a Gemini transaction is strictly
// sequential (one line out, one line and optional body in), so nothing
// about Session needs internal locking beyond Close's idempotence.
type Session struct {
	conn   *tls.Conn
	r      *bufio.Reader
	Role   Role
	Cert   certinfo.Certificate
	closed bool
	mu     sync.Mutex
}

// Wrap performs a TLS handshake over conn in the given role and returns
// a Session. sniHostname is sent as the SNI server name on the client
// side; it is ignored on the server side. Handshake failures are
// wrapped as gemerr.TlsHandshake. On success, the peer's certificate
// (if any) is classified via tlsconfig.ClassifyConnectionState into
// certinfo.VerificationFlags - independently for this handshake, even
// if config is shared with other concurrent Wrap calls.
func Wrap(ctx context.Context, config *tlsconfig.Config, conn net.Conn, sniHostname string) (*Session, error) {
	var tlsConn *tls.Conn

	switch config.Role {
	case tlsconfig.RoleClient:
		cfg := config.TLS
		if sniHostname != "" && cfg.ServerName != sniHostname {
			clone := cfg.Clone()
			clone.ServerName = sniHostname
			cfg = clone
		}
		tlsConn = tls.Client(conn, cfg)
	case tlsconfig.RoleServer:
		tlsConn = tls.Server(conn, config.TLS)
	default:
		return nil, gemerr.New(gemerr.ConfigurationError, fmt.Errorf("unknown tls role %v", config.Role))
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tlsConn.Close()
		return nil, gemerr.New(gemerr.TlsHandshake, err)
	}

	cs := tlsConn.ConnectionState()
	flags := tlsconfig.ClassifyConnectionState(cs)

	cert := certinfo.Certificate{Flags: flags}
	if len(cs.PeerCertificates) > 0 {
		cert.Cert = cs.PeerCertificates[0]
	}

	entry := slogru.WithFields(slogru.Fields{
		"role":         config.Role,
		"has_cert":     cert.HasCertificate(),
		"version":      cs.Version,
		"cipher_suite": tls.CipherSuiteName(cs.CipherSuite),
	})
	if cert.HasCertificate() {
		entry = entry.WithField("fingerprint", cert.Fingerprint())
	}
	if flags&certinfo.FlagNotTrusted != 0 {
		entry.Warn("session: handshake completed with an untrusted peer certificate")
	} else {
		entry.Info("session: handshake completed")
	}

	return &Session{
		conn: tlsConn,
		r:    bufio.NewReaderSize(tlsConn, headerBufferSize),
		Role: config.Role,
		Cert: cert,
	}, nil
}

// Send writes line followed by CRLF, rejecting a line longer than 1024
// bytes. It is used for the client's request line and for the server's
// fixed "59 ..." rejection lines; Request.Respond in package gemini
// writes its header with Write instead.
func (s *Session) Send(line string) error {
	if len(line)+2 > requestLineLimit {
		return gemerr.Newf(gemerr.InvalidURL, "line exceeds %d bytes", requestLineLimit-2)
	}
	if _, err := fmt.Fprintf(s.conn, "%s\r\n", line); err != nil {
		return gemerr.New(gemerr.TlsIo, err)
	}
	return nil
}

// RecvLine reads a single CRLF- or LF-terminated line, stripping the
// trailing CR if present, and enforces maxLen (including the
// terminator) on how much is read before giving up - the mechanism the
// caller uses to cap the Gemini request/status line at 1024 bytes plus
// terminator without first buffering unboundedly.
func (s *Session) RecvLine(maxLen int) (string, error) {
	var buf []byte
	for {
		chunk, err := s.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLen {
			return "", gemerr.Newf(gemerr.MalformedResponse, "line exceeds %d bytes", maxLen)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			break
		}
		return "", gemerr.New(gemerr.TlsIo, err)
	}

	line := buf
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// Write sends raw body bytes, used by the server side to stream a
// status-20 response body after the header line.
func (s *Session) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if err != nil {
		return n, gemerr.New(gemerr.TlsIo, err)
	}
	return n, nil
}

// Body returns a reader for the response body: everything left in the
// connection after the status line, terminated by TLS close_notify
// rather than any length prefix. Reading it to io.EOF and then calling
// Close is the idiomatic sequence; Close alone is also safe and
// discards whatever of the body was unread.
func (s *Session) Body() io.Reader {
	return s.r
}

// Close shuts down the underlying TLS connection. It is idempotent:
// calling it more than once (e.g. once from a deferred cleanup and once
// explicitly after reading the body) is not an error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// ConnectionState exposes the underlying TLS connection state, mainly
// for diagnostics (cipher suite, negotiated protocol version).
func (s *Session) ConnectionState() tls.ConnectionState {
	return s.conn.ConnectionState()
}
