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

package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/tlsconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedServerCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	dir := t.TempDir()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"

	writePEM(t, certFile, "CERTIFICATE", der)

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyBytes)

	return certFile, keyFile
}

func writePEM(t *testing.T, path, kind string, der []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, &pem.Block{Type: kind, Bytes: der}))
}

func loopback(t *testing.T) (clientConn, serverConn net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ch := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		ch <- c
	}()

	clientConn, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	serverConn = <-ch
	require.NotNil(t, serverConn)
	return clientConn, serverConn
}

func TestWrapHandshakeAndTransaction(t *testing.T) {
	certFile, keyFile := selfSignedServerCert(t)

	serverCfg, err := tlsconfig.NewServerConfig(certFile, keyFile, nil)
	require.NoError(t, err)
	clientCfg, err := tlsconfig.NewClientConfig(nil)
	require.NoError(t, err)

	clientConn, serverConn := loopback(t)

	serverSessCh := make(chan *Session, 1)
	go func() {
		s, err := Wrap(context.Background(), serverCfg, serverConn, "")
		require.NoError(t, err)
		serverSessCh <- s
	}()

	clientSess, err := Wrap(context.Background(), clientCfg, clientConn, "localhost")
	require.NoError(t, err)
	defer clientSess.Close()

	serverSess := <-serverSessCh
	defer serverSess.Close()

	assert.True(t, clientSess.Cert.IsSelfSigned())
	assert.Equal(t, certinfo.FlagNotTrusted, clientSess.Cert.Flags)

	require.NoError(t, clientSess.Send("gemini://localhost/"))
	line, err := serverSess.RecvLine(1026)
	require.NoError(t, err)
	assert.Equal(t, "gemini://localhost/", line)

	require.NoError(t, serverSess.Send("20 text/gemini"))
	_, err = serverSess.conn.Write([]byte("# hello\r\n"))
	require.NoError(t, err)
	require.NoError(t, serverSess.Close())

	status, err := clientSess.RecvLine(1026)
	require.NoError(t, err)
	assert.Equal(t, "20 text/gemini", status)

	body, err := io.ReadAll(clientSess.Body())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "# hello"))
}

func TestCloseIsIdempotent(t *testing.T) {
	certFile, keyFile := selfSignedServerCert(t)
	serverCfg, err := tlsconfig.NewServerConfig(certFile, keyFile, nil)
	require.NoError(t, err)
	clientCfg, err := tlsconfig.NewClientConfig(nil)
	require.NoError(t, err)

	clientConn, serverConn := loopback(t)
	go func() {
		s, err := Wrap(context.Background(), serverCfg, serverConn, "")
		if err == nil {
			defer s.Close()
		}
	}()

	clientSess, err := Wrap(context.Background(), clientCfg, clientConn, "localhost")
	require.NoError(t, err)

	assert.NoError(t, clientSess.Close())
	assert.NoError(t, clientSess.Close())
}

func TestSendRejectsOverlongLine(t *testing.T) {
	certFile, keyFile := selfSignedServerCert(t)
	serverCfg, err := tlsconfig.NewServerConfig(certFile, keyFile, nil)
	require.NoError(t, err)
	clientCfg, err := tlsconfig.NewClientConfig(nil)
	require.NoError(t, err)

	clientConn, serverConn := loopback(t)
	go func() {
		s, err := Wrap(context.Background(), serverCfg, serverConn, "")
		if err == nil {
			defer s.Close()
		}
	}()

	clientSess, err := Wrap(context.Background(), clientCfg, clientConn, "localhost")
	require.NoError(t, err)
	defer clientSess.Close()

	huge := strings.Repeat("a", 2000)
	err = clientSess.Send(huge)
	assert.Error(t, err)
}
