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

// Command gemfetch performs one Gemini request and prints the response.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/client"
	"github.com/dimkr/gemlib/tlsconfig"
	"github.com/dimkr/gemlib/tofu"
)

var (
	timeout       = flag.Duration("timeout", 30*time.Second, "Request timeout, including redirects")
	maxRedirects  = flag.Int("maxredirects", client.DefaultMaxRedirects, "Maximum number of redirects to follow")
	clientCert    = flag.String("cert", "", "Client TLS certificate, for capability URLs that require one")
	clientKey     = flag.String("key", "", "Client TLS key")
	tofuPath      = flag.String("tofudb", "", "sqlite database recording known host fingerprints; empty disables TOFU tracking")
	insecureTrust = flag.Bool("insecure", false, "Skip TOFU fingerprint tracking even when -tofudb is set")
	logLevel      = flag.Int("loglevel", int(slog.LevelWarn), "Logging verbosity")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flag]... gemini://host/path\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(*logLevel)})))

	var cert *tls.Certificate
	if *clientCert != "" {
		loaded, err := tls.LoadX509KeyPair(*clientCert, *clientKey)
		if err != nil {
			slog.Error("Failed to load client certificate", "error", err)
			os.Exit(1)
		}
		cert = &loaded
	}

	tlsCfg, err := tlsconfig.NewClientConfig(cert)
	if err != nil {
		slog.Error("Failed to build TLS configuration", "error", err)
		os.Exit(1)
	}

	var store *tofu.Store
	if *tofuPath != "" && !*insecureTrust {
		ctx := context.Background()
		store, err = tofu.Open(ctx, *tofuPath)
		if err != nil {
			slog.Error("Failed to open TOFU database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	c := client.Client{
		MaxRedirects: *maxRedirects,
		TLSConfig:    tlsCfg,
	}

	resp, err := c.Request(ctx, flag.Arg(0))
	if err != nil {
		slog.Error("Request failed", "error", err)
		os.Exit(1)
	}
	defer resp.Close()

	if store != nil && resp.Certificate.HasCertificate() {
		if err := store.Verify(ctx, resp.URL.Authority(), resp.Certificate.Fingerprint()); err != nil {
			slog.Warn("TOFU fingerprint mismatch", "host", resp.URL.Authority(), "error", err)
		}
	}

	fmt.Fprintf(os.Stderr, "%d %s\n", resp.Status.Code(), resp.Meta)
	if resp.Certificate.Flags&certinfo.FlagNotTrusted != 0 {
		fmt.Fprintf(os.Stderr, "# warning: server certificate is not chain-trusted (self-signed or unknown CA)\n")
	}

	if resp.Status.HasBody() {
		if _, err := io.Copy(os.Stdout, resp.Body()); err != nil {
			slog.Error("Failed to read response body", "error", err)
			os.Exit(1)
		}
	}
}
