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

package tofu

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tofu.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVerifyTrustsFirstSighting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Verify(ctx, "example.com", "abc123")
	require.NoError(t, err)
}

func TestVerifyAcceptsRepeatedMatchingFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Verify(ctx, "example.com", "abc123"))
	require.NoError(t, s.Verify(ctx, "example.com", "abc123"))
}

func TestVerifyRejectsChangedFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Verify(ctx, "example.com", "abc123"))

	err := s.Verify(ctx, "example.com", "def456")
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestRememberOverwritesFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Verify(ctx, "example.com", "abc123"))
	require.ErrorIs(t, s.Verify(ctx, "example.com", "def456"), ErrMismatch)
	assert.ErrorIs(t, s.Verify(ctx, "example.com", "def456"), ErrMismatch)

	require.NoError(t, s.Remember(ctx, "example.com", "def456"))
	assert.NoError(t, s.Verify(ctx, "example.com", "def456"))
}

func TestForgetRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Verify(ctx, "example.com", "abc123"))
	require.NoError(t, s.Forget(ctx, "example.com"))

	// a forgotten host is trusted again on next sighting, regardless of
	// fingerprint.
	assert.NoError(t, s.Verify(ctx, "example.com", "def456"))
}

func TestVerifyTracksHostsIndependently(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Verify(ctx, "a.example", "fp-a"))
	require.NoError(t, s.Verify(ctx, "b.example", "fp-b"))

	assert.NoError(t, s.Verify(ctx, "a.example", "fp-a"))
	assert.NoError(t, s.Verify(ctx, "b.example", "fp-b"))
	assert.ErrorIs(t, s.Verify(ctx, "a.example", "fp-b"), ErrMismatch)
}
