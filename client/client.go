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

// Package client implements the client side of a Gemini transaction:
// dial, handshake, send the request line, parse the response header,
// and follow redirects up to a configured bound.
package client

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/gemerr"
	"github.com/dimkr/gemlib/gemurl"
	"github.com/dimkr/gemlib/session"
	"github.com/dimkr/gemlib/status"
	"github.com/dimkr/gemlib/tlsconfig"
)

// DefaultMaxRedirects is used by Client when MaxRedirects is zero.
const DefaultMaxRedirects = 5

// Client drives Gemini transactions. The zero value is usable: it opens
// a fresh, unauthenticated connection per request, follows up to
// DefaultMaxRedirects redirects, and trusts no certificate by default
// (TOFU decisions belong to the caller, informed by Response.Certificate).
type Client struct {
	// MaxRedirects bounds the redirect chain. Zero means
	// DefaultMaxRedirects.
	MaxRedirects int

	// TLSConfig is the shared, immutable client TLS configuration. If
	// nil, a fresh one is built for every connection via
	// tlsconfig.NewClientConfig(nil).
	TLSConfig *tlsconfig.Config

	// Dialer is used to open the TCP connection; if nil, a
	// net.Dialer{} zero value is used.
	Dialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	}
}

// Response is the result of a Gemini transaction.
type Response struct {
	Status      status.Status
	Meta        string
	Certificate certinfo.Certificate
	URL         *gemurl.URL

	sess *session.Session
}

// Body returns a reader that streams the response body. It is only
// meaningful when Status == status.OK; for any other status the
// session was already closed during the transaction and Body returns
// an already-exhausted reader.
func (r *Response) Body() io.Reader {
	if r.sess == nil {
		return strings.NewReader("")
	}
	return r.sess.Body()
}

// Close releases the underlying session. Safe to call even if the
// session was already closed as part of following a redirect.
func (r *Response) Close() error {
	if r.sess == nil {
		return nil
	}
	return r.sess.Close()
}

func (c *Client) maxRedirects() int {
	if c.MaxRedirects > 0 {
		return c.MaxRedirects
	}
	return DefaultMaxRedirects
}

func (c *Client) tlsConfig() (*tlsconfig.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	return tlsconfig.NewClientConfig(nil)
}

func (c *Client) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if c.Dialer != nil {
		return c.Dialer.DialContext(ctx, network, addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// Request performs a Gemini transaction against rawURL, following
// redirects per spec.md §4.4. The caller must call Response.Close (and,
// for status.OK, drain or discard Response.Body) when done.
func (c *Client) Request(ctx context.Context, rawURL string) (*Response, error) {
	u, err := gemurl.Parse(rawURL)
	if err != nil {
		return nil, gemerr.New(gemerr.InvalidURL, err)
	}
	return c.do(ctx, u, rawURL, c.maxRedirects())
}

// do performs one hop. requestLine is sent verbatim: spec.md §4.4 step 4
// requires the original caller-supplied URL go out unnormalized on the
// first hop; redirect hops send the freshly combined URL instead, since
// there is no original caller text for those.
func (c *Client) do(ctx context.Context, u *gemurl.URL, requestLine string, redirectsLeft int) (*Response, error) {
	if u.Scheme != "gemini" {
		return nil, gemerr.Newf(gemerr.UnsupportedScheme, "unsupported scheme %q", u.Scheme)
	}

	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return nil, gemerr.New(gemerr.ConfigurationError, err)
	}

	addr := net.JoinHostPort(u.HostForDial(), strconv.Itoa(gemurl.EffectivePort(u)))

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, gemerr.New(gemerr.Network, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	sess, err := session.Wrap(ctx, tlsCfg, conn, u.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := sess.Send(requestLine); err != nil {
		sess.Close()
		return nil, err
	}

	line, err := sess.RecvLine(1029) // 2-digit status + SP + 1024-byte meta + CRLF
	if err != nil {
		sess.Close()
		return nil, err
	}

	st, meta, err := parseStatusLine(line)
	if err != nil {
		sess.Close()
		return nil, err
	}

	resp := &Response{
		Status:      st,
		Meta:        meta,
		Certificate: sess.Cert,
		URL:         u,
		sess:        sess,
	}

	if !st.HasBody() {
		sess.Close()
		resp.sess = nil
	}

	if st.IsRedirect() {
		return c.followRedirect(ctx, u, meta, redirectsLeft)
	}

	return resp, nil
}

func (c *Client) followRedirect(ctx context.Context, from *gemurl.URL, meta string, redirectsLeft int) (*Response, error) {
	if redirectsLeft <= 0 {
		return nil, gemerr.Newf(gemerr.TooManyRedirects, "exceeded redirect bound following %s", from.String())
	}

	target, err := gemurl.ParseReference(meta)
	if err != nil {
		return nil, gemerr.New(gemerr.InvalidURL, err)
	}

	next := gemurl.Combine(from, target)
	if next.Scheme != "gemini" {
		return nil, gemerr.Newf(gemerr.UnsupportedScheme, "redirect target has unsupported scheme %q", next.Scheme)
	}

	return c.do(ctx, next, next.String(), redirectsLeft-1)
}

// parseStatusLine validates the "DD SP meta" shape spec.md §4.4 step 5
// requires: at least 3 bytes, a space at index 2, two leading ASCII
// digits.
func parseStatusLine(line string) (status.Status, string, error) {
	if len(line) < 3 || line[2] != ' ' {
		return 0, "", gemerr.Newf(gemerr.MalformedResponse, "malformed status line %q", line)
	}
	if !isDigit(line[0]) || !isDigit(line[1]) {
		return 0, "", gemerr.Newf(gemerr.MalformedResponse, "malformed status line %q", line)
	}

	code, err := strconv.Atoi(line[:2])
	if err != nil {
		return 0, "", gemerr.Newf(gemerr.MalformedResponse, "malformed status line %q", line)
	}

	var meta string
	if len(line) > 3 {
		meta = line[3:]
	}

	return status.Parse(code), meta, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
