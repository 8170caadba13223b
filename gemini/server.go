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

// Package gemini implements the server side of the Gemini protocol: an
// accept loop handing each connection, after a TLS handshake and one
// request line, to a user-supplied Handler. One transaction per
// connection; there is no keep-alive.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dimkr/gemlib/auditlog"
	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/gemerr"
	"github.com/dimkr/gemlib/gemurl"
	"github.com/dimkr/gemlib/logcontext"
	"github.com/dimkr/gemlib/session"
	"github.com/dimkr/gemlib/tlsconfig"
)

// requestLineLimit bounds the request line, including its CRLF
// terminator, to 1024 bytes of URL text per spec.md's strict-enforcement
// resolution (see DESIGN.md Open Questions).
const requestLineLimit = 1026

// requestTimeout bounds how long the server waits, end to end, for a
// single transaction - handshake, request line, and handler - the
// teacher's reqTimeout applied at the same granularity.
const requestTimeout = 30 * time.Second

// Request is a single parsed Gemini request, handed to a Handler after
// the TLS handshake and header read have both succeeded.
type Request struct {
	URL         *gemurl.URL
	Certificate certinfo.Certificate
	RemoteAddr  net.Addr

	sess       *session.Session
	lastStatus int
}

// Respond writes the response header and, for status 20, the body. meta
// must be at most 1024 bytes. Any write error leaves the connection
// considered lost; the server does not retry.
func (r *Request) Respond(code int, meta string, body []byte) error {
	if len(meta) > 1024 {
		return gemerr.Newf(gemerr.ConfigurationError, "meta exceeds 1024 bytes")
	}

	// The header goes through Write rather than Send: Send caps a line at
	// 1024 bytes, which a status, a space and a 1024-byte meta exceed.
	if _, err := r.sess.Write([]byte(fmt.Sprintf("%d %s\r\n", code, meta))); err != nil {
		return err
	}
	r.lastStatus = code

	if code == 20 && len(body) > 0 {
		if _, err := r.sess.Write(body); err != nil {
			return err
		}
	}

	return nil
}

// Handler processes one Request. Implementations must call
// Request.Respond exactly once (or not at all, to drop the connection
// silently).
type Handler interface {
	Handle(ctx context.Context, req *Request)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req *Request)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) { f(ctx, req) }

// Server accepts Gemini connections and dispatches each to Handler.
type Server struct {
	Addr      string
	TLSConfig *tlsconfig.Config
	Handler   Handler

	// AuditLog, if set, records one entry per completed transaction.
	AuditLog *auditlog.Log
}

// ListenAndServe binds Addr and runs the accept loop until ctx is
// canceled. Each accepted connection is handled on its own goroutine -
// the blocking/threaded concurrency discipline (see package
// cooperative for the alternative).
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("gemini: accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	reqCtx = logcontext.WithTransactionID(reqCtx)
	reqCtx = logcontext.Add(reqCtx, "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		select {
		case <-reqCtx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	sess, err := session.Wrap(reqCtx, s.TLSConfig, conn, "")
	if err != nil {
		slog.DebugContext(reqCtx, "gemini: handshake failed", "error", err)
		return
	}
	defer sess.Close()

	line, err := sess.RecvLine(requestLineLimit)
	if err != nil {
		if errors.Is(err, gemerr.MalformedResponse) {
			slog.DebugContext(reqCtx, "gemini: request line too long", "error", err)
			sess.Send("59 request line too long")
			return
		}
		slog.DebugContext(reqCtx, "gemini: failed to read request line", "error", err)
		return
	}
	if line == "" {
		return // empty line: close silently, per spec.md §4.5 step 2b
	}

	u, err := gemurl.Parse(line)
	if err != nil || !gemurl.ValidateGemini(u) {
		slog.DebugContext(reqCtx, "gemini: malformed request line", "line", line)
		sess.Send("59 malformed request")
		return
	}
	reqCtx = logcontext.Add(reqCtx, "url", u.String())

	req := &Request{
		URL:         u,
		Certificate: sess.Cert,
		RemoteAddr:  conn.RemoteAddr(),
		sess:        sess,
	}

	s.handle(reqCtx, req)

	if s.AuditLog != nil {
		s.AuditLog.Record(auditlog.Entry{
			RemoteAddr: req.RemoteAddr.String(),
			URL:        req.URL.String(),
			Status:     req.lastStatus,
		})
	}
}

func (s *Server) handle(ctx context.Context, req *Request) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "gemini: handler panicked", "panic", r, "url", req.URL.String())
			req.Respond(50, "INTERNAL SERVER ERROR", nil)
		}
	}()
	s.Handler.Handle(ctx, req)
}
