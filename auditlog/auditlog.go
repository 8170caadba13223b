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

// Package auditlog records one canonical-JSON, hash-chained entry per
// Gemini transaction. It is an ambient operational concern, not part of
// the protocol core: a Server runs fine with AuditLog unset.
package auditlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"

	"github.com/gowebpki/jcs"
)

// Entry is one recorded transaction. Fields are deliberately flat and
// few: the audit log is a tamper-evident record of "who asked for
// what", not a general telemetry sink (see package logcontext for
// per-transaction structured logging instead).
type Entry struct {
	RemoteAddr string `json:"remote_addr"`
	URL        string `json:"url"`
	Status     int    `json:"status,omitempty"`
}

// record is Entry plus the chaining fields written to the log, kept
// unexported so callers construct Entry values only.
type record struct {
	Entry
	PrevHash string `json:"prev_hash"`
}

// Log writes hash-chained entries to an underlying writer. Each
// entry's canonical JSON (RFC 8785, via jcs.Transform) commits to the
// previous entry's SHA-256 hash, the way package proof chains
// ActivityPub integrity proofs in the teacher codebase - applied here
// to a linear append-only log instead of a signed document.
type Log struct {
	w        io.Writer
	mu       sync.Mutex
	lastHash string
}

// New creates a Log appending canonical-JSON lines to w.
func New(w io.Writer) *Log {
	return &Log{w: w}
}

// Record appends entry to the log, chained to the previous entry's
// hash. A failure to marshal or canonicalize is logged nowhere by
// design - auditlog.Record must never be allowed to disrupt a
// transaction in progress, so it reports nothing back to the caller.
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := record{Entry: e, PrevHash: l.lastHash}

	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return
	}

	sum := sha256.Sum256(canonical)
	l.lastHash = hex.EncodeToString(sum[:])

	l.w.Write(canonical)
	l.w.Write([]byte("\n"))
}
