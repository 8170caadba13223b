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

package auditlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWritesOneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Record(Entry{RemoteAddr: "192.0.2.1:1965", URL: "gemini://example.com/", Status: 20})
	log.Record(Entry{RemoteAddr: "192.0.2.2:1965", URL: "gemini://example.com/other", Status: 51})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	for _, line := range lines {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	}
}

func TestRecordChainsHashAcrossEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Record(Entry{RemoteAddr: "a", URL: "gemini://a/", Status: 20})
	log.Record(Entry{RemoteAddr: "b", URL: "gemini://b/", Status: 20})

	scanner := bufio.NewScanner(&buf)
	var records []record
	for scanner.Scan() {
		var r record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)

	assert.Empty(t, records[0].PrevHash, "first entry chains to nothing")
	assert.NotEmpty(t, records[1].PrevHash, "second entry chains to the first")
}

func TestRecordOutputIsCanonicalFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Record(Entry{RemoteAddr: "192.0.2.1:1965", URL: "gemini://example.com/", Status: 20})

	line := strings.TrimRight(buf.String(), "\n")

	// RFC 8785 canonicalization sorts object keys lexicographically;
	// "prev_hash" sorts before "remote_addr", "status" and "url".
	prevHashIdx := strings.Index(line, `"prev_hash"`)
	remoteAddrIdx := strings.Index(line, `"remote_addr"`)
	require.GreaterOrEqual(t, prevHashIdx, 0)
	require.GreaterOrEqual(t, remoteAddrIdx, 0)
	assert.Less(t, prevHashIdx, remoteAddrIdx)
}

func TestRecordOmitsZeroStatus(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Record(Entry{RemoteAddr: "192.0.2.1:1965", URL: "gemini://example.com/"})

	assert.NotContains(t, buf.String(), `"status"`)
}

func TestRecordConcurrentSafe(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			log.Record(Entry{RemoteAddr: "concurrent", URL: "gemini://example.com/", Status: 20})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 8)
}
