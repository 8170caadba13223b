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

package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/dimkr/gemlib/gemini"
	"github.com/dimkr/gemlib/tlsconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSignedKeyPair generates a throwaway EC key pair, self-signs
// it, and writes both PEM files to dir, returning their paths - the
// same shape newTestServer builds, factored out here so an actual
// gemini.Server (not a hand-rolled responder) can be driven end to end.
func writeSelfSignedKeyPair(t *testing.T, dir, cn string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, cn+"-cert.pem")
	keyPath = filepath.Join(dir, cn+"-key.pem")

	certFile, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certFile.Close())

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyFile, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyFile, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}))
	require.NoError(t, keyFile.Close())

	return certPath, keyPath
}

func startGeminiServer(t *testing.T, handler gemini.Handler) string {
	t.Helper()
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedKeyPair(t, dir, "server")

	tlsCfg, err := tlsconfig.NewServerConfig(certPath, keyPath, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := &gemini.Server{Addr: addr, TLSConfig: tlsCfg, Handler: handler}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		close(started)
		srv.ListenAndServe(ctx)
	}()
	<-started
	t.Cleanup(cancel)

	// ListenAndServe's net.Listen races this goroutine's startup; retry
	// the dial briefly rather than sleeping a fixed guess.
	for i := 0; i < 50; i++ {
		if conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return addr
}

// TestEndToEndHappyPath is scenario 1 from spec.md §8, driven against a
// real gemini.Server instead of client_test.go's hand-rolled responder.
func TestEndToEndHappyPath(t *testing.T) {
	addr := startGeminiServer(t, gemini.HandlerFunc(func(_ context.Context, req *gemini.Request) {
		req.Respond(20, "text/gemini", []byte("# Hello world\n"))
	}))

	c := &Client{}
	resp, err := c.Request(context.Background(), "gemini://"+addr+"/")
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, 20, resp.Status.Code())
	assert.Equal(t, "text/gemini", resp.Meta)
	body, err := io.ReadAll(resp.Body())
	require.NoError(t, err)
	assert.Equal(t, "# Hello world\n", string(body))
}

// TestEndToEndClientCertificateRequired is scenario 4: a handler that
// gates on whether the peer presented a certificate at all.
func TestEndToEndClientCertificateRequired(t *testing.T) {
	addr := startGeminiServer(t, gemini.HandlerFunc(func(_ context.Context, req *gemini.Request) {
		if !req.Certificate.HasCertificate() {
			req.Respond(60, "Certificate required", nil)
			return
		}
		req.Respond(20, "text/gemini", []byte("hi"))
	}))

	anonymous := &Client{}
	resp, err := anonymous.Request(context.Background(), "gemini://"+addr+"/auth")
	require.NoError(t, err)
	assert.Equal(t, 60, resp.Status.Code())
	resp.Close()

	dir := t.TempDir()
	clientCertPath, clientKeyPath := writeSelfSignedKeyPair(t, dir, "client")
	cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	require.NoError(t, err)

	tlsCfg, err := tlsconfig.NewClientConfig(&cert)
	require.NoError(t, err)

	withIdentity := &Client{TLSConfig: tlsCfg}
	resp, err = withIdentity.Request(context.Background(), "gemini://"+addr+"/auth")
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, 20, resp.Status.Code())
	body, err := io.ReadAll(resp.Body())
	require.NoError(t, err)
	assert.Equal(t, "hi", string(body))
}

// TestEndToEndSelfSignedServerFingerprint is scenario 5: the client
// records a self-signed server's certificate as unverified but not
// erroring, with a fingerprint in the documented colon-hex form.
func TestEndToEndSelfSignedServerFingerprint(t *testing.T) {
	addr := startGeminiServer(t, gemini.HandlerFunc(func(_ context.Context, req *gemini.Request) {
		req.Respond(20, "text/gemini", []byte("ok"))
	}))

	c := &Client{}
	resp, err := c.Request(context.Background(), "gemini://"+addr+"/")
	require.NoError(t, err)
	defer resp.Close()

	require.True(t, resp.Certificate.HasCertificate())
	assert.False(t, resp.Certificate.IsVerified())
	assert.True(t, resp.Certificate.IsSelfSigned())

	fingerprintPattern := regexp.MustCompile(`^([0-9a-f]{2}:){31}[0-9a-f]{2}$`)
	assert.Regexp(t, fingerprintPattern, resp.Certificate.Fingerprint())
}
