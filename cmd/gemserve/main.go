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

// Command gemserve serves a directory of .gmi files over Gemini.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/dimkr/gemlib/auditlog"
	"github.com/dimkr/gemlib/gemini"
	"github.com/dimkr/gemlib/logcontext"
	"github.com/dimkr/gemlib/tlsconfig"
)

var (
	addr      = flag.String("addr", ":1965", "Gemini listening address")
	certPath  = flag.String("cert", "cert.pem", "TLS certificate")
	keyPath   = flag.String("key", "key.pem", "TLS key")
	root      = flag.String("root", ".", "Directory of .gmi files to serve")
	auditPath = flag.String("auditlog", "", "Append canonical-JSON transaction log to this file; empty disables it")
	logLevel  = flag.Int("loglevel", int(slog.LevelInfo), "Logging verbosity")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flag]...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(*logLevel)})
	slog.SetDefault(slog.New(logcontext.NewHandler(jsonHandler)))

	var audit *auditlog.Log
	if *auditPath != "" {
		f, err := os.OpenFile(*auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("Failed to open audit log", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		audit = auditlog.New(f)
	}

	handler := &dirHandler{root: *root}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("gemserve: received termination signal")
		cancel()
	}()

	tlsCfg, err := tlsconfig.NewServerConfig(*certPath, *keyPath, nil)
	if err != nil {
		slog.Error("Failed to build TLS configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("gemserve: starting", "addr", *addr, "root", *root, "session_id", tlsCfg.DebugSessionID())

	var wg sync.WaitGroup
	reload := make(chan *tlsconfig.Config, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tlsconfig.WatchServerConfig(ctx, *certPath, *keyPath, func(cfg *tlsconfig.Config) {
			reload <- cfg
		}); err != nil {
			slog.Warn("gemserve: certificate watcher stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runServer(ctx, *addr, tlsCfg, handler, audit, reload)
	}()

	wg.Wait()
	slog.Info("gemserve: stopped")
}

// runServer runs successive generations of gemini.Server against addr,
// swapping in a new TLS configuration whenever one arrives on reload.
// Each generation owns its own listener and per-connection goroutines.
// A reload cancels the previous generation's context, which closes its
// listener and also its connections still in flight, and waits for its
// ListenAndServe to return before the next generation starts listening.
func runServer(ctx context.Context, addr string, cfg *tlsconfig.Config, handler gemini.Handler, audit *auditlog.Log, reload <-chan *tlsconfig.Config) {
	for {
		genCtx, cancelGen := context.WithCancel(ctx)
		srv := &gemini.Server{
			Addr:      addr,
			TLSConfig: cfg,
			Handler:   handler,
			AuditLog:  audit,
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.ListenAndServe(genCtx); err != nil {
				slog.Error("gemserve: listener failed", "error", err)
			}
		}()

		select {
		case <-ctx.Done():
			cancelGen()
			<-done
			return

		case newCfg := <-reload:
			slog.Info("gemserve: reloading certificate", "session_id", newCfg.DebugSessionID())
			cancelGen()
			<-done
			cfg = newCfg
		}
	}
}

// dirHandler serves files named by a request path beneath root, adding a
// .gmi extension when the path has none, the way the teacher's front
// handlers resolve a request into a single rendered page.
type dirHandler struct {
	root string
}

func (h *dirHandler) Handle(ctx context.Context, req *gemini.Request) {
	p := req.URL.Path
	if p == "" || p == "/" {
		p = "/index.gmi"
	}
	if filepath.Ext(p) == "" {
		p += ".gmi"
	}

	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		req.Respond(59, "malformed request", nil)
		return
	}

	full := filepath.Join(h.root, clean)
	body, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			req.Respond(51, "not found", nil)
			return
		}
		slog.ErrorContext(ctx, "gemserve: failed to read file", "path", full, "error", err)
		req.Respond(40, "temporary failure", nil)
		return
	}

	req.Respond(20, "text/gemini", body)
}
