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

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKnown(t *testing.T) {
	assert.Equal(t, OK, Parse(20))
	assert.Equal(t, RedirectTemporary, Parse(30))
	assert.Equal(t, ClientCertificateRequired, Parse(60))
}

func TestParseUnknownMapsToGenericError(t *testing.T) {
	for _, code := range []int{0, 9, 100, -1, 45} {
		got := Parse(code)
		if code == 45 {
			assert.Equal(t, ClassTemporaryFailure, got.Class())
		} else {
			assert.Equal(t, GenericError, got)
		}
	}
}

func TestCodePreservesWireValue(t *testing.T) {
	s := Parse(45)
	assert.Equal(t, 45, s.Code())
	assert.Equal(t, ClassTemporaryFailure, s.Class())
}

func TestClassification(t *testing.T) {
	cases := []struct {
		s Status
		c Class
	}{
		{Input, ClassInput},
		{SensitiveInput, ClassInput},
		{OK, ClassSuccess},
		{RedirectTemporary, ClassRedirect},
		{RedirectPermanent, ClassRedirect},
		{TemporaryFailure, ClassTemporaryFailure},
		{SlowDown, ClassTemporaryFailure},
		{PermanentFailure, ClassPermanentFailure},
		{NotFound, ClassPermanentFailure},
		{ClientCertificateRequired, ClassClientCertificate},
	}
	for _, c := range cases {
		assert.Equalf(t, c.c, c.s.Class(), "status %d", c.s)
	}
}

func TestHasBodyOnlyOnSuccess(t *testing.T) {
	assert.True(t, OK.HasBody())
	assert.False(t, RedirectTemporary.HasBody())
	assert.False(t, NotFound.HasBody())
	assert.False(t, Input.HasBody())
}

func TestIsRedirect(t *testing.T) {
	assert.True(t, RedirectTemporary.IsRedirect())
	assert.True(t, RedirectPermanent.IsRedirect())
	assert.False(t, OK.IsRedirect())
}
