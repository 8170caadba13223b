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

package tlsconfig

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces a burst of writes from a certbot-style
// cert/key replacement into a single reload.
const reloadDelay = 5 * time.Second

// WatchServerConfig watches certFile and keyFile for changes and, after
// each change settles for reloadDelay, builds a brand new *Config via
// NewServerConfig and passes it to onReload. It never mutates an
// existing Config in place: sessions already wrapped around the old
// Config keep running against it unaffected, and only sessions accepted
// after onReload returns see the new certificate. It returns when ctx
// is canceled or the watcher fails to start.
func WatchServerConfig(ctx context.Context, certFile, keyFile string, onReload func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	certDir := filepath.Dir(certFile)
	keyDir := filepath.Dir(keyFile)

	if err := w.Add(certDir); err != nil {
		return err
	}
	if keyDir != certDir {
		if err := w.Add(keyDir); err != nil {
			return err
		}
	}

	certAbsPath := filepath.Join(certDir, filepath.Base(certFile))
	keyAbsPath := filepath.Join(keyDir, filepath.Base(keyFile))

	timer := time.NewTimer(math.MaxInt64)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) &&
				(event.Name == certAbsPath || event.Name == keyAbsPath) {
				slog.Info("tlsconfig: certificate file changed, scheduling reload", "name", event.Name)
				timer.Reset(reloadDelay)
			}

		case <-timer.C:
			cfg, err := NewServerConfig(certFile, keyFile, nil)
			if err != nil {
				slog.Warn("tlsconfig: failed to reload certificate", "error", err)
				continue
			}
			slog.Info("tlsconfig: reloaded certificate", "session_id", cfg.DebugSessionID())
			onReload(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("tlsconfig: watcher error", "error", err)
		}
	}
}
