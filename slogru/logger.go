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

// Package slogru gives [log/slog] a logrus-shaped fluent API
// (WithField/WithFields/WithError) for call sites that build up a log
// entry across several steps - session.Wrap attaches fields as a
// handshake completes (role, certificate presence, TLS version, cipher
// suite, fingerprint) and only decides at the end whether the line is
// Info or Warn.
package slogru

import (
	"fmt"
	"log/slog"
)

// Fields is a set of structured fields to attach to a log entry.
type Fields map[string]any

// Logger wraps a [slog.Logger] and implements [Entry].
type Logger struct {
	*slog.Logger
}

func (l *Logger) WithField(k string, v any) Entry {
	return &Logger{l.With(k, v)}
}

func (l *Logger) WithFields(fields Fields) Entry {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{l.With(args...)}
}

func (l *Logger) WithError(err error) Entry {
	return &Logger{l.With("error", err)}
}

func (l *Logger) Fatal(err error) {
	l.WithError(err).Error("Fatal")
	panic(err)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}
