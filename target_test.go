/*
 *
 * Copyright 2017 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   Target
	}{
		{
			name:   "full scheme authority endpoint",
			target: "dns://8.8.8.8/example.com:443",
			want:   Target{Scheme: "dns", Authority: "8.8.8.8", Endpoint: "example.com:443"},
		},
		{
			name:   "empty authority",
			target: "dns:///example.com:443",
			want:   Target{Scheme: "dns", Authority: "", Endpoint: "example.com:443"},
		},
		{
			name:   "no scheme falls back to bare endpoint",
			target: "example.com:443",
			want:   Target{Endpoint: "example.com:443"},
		},
		{
			name:   "scheme without a following slash falls back to bare endpoint",
			target: "dns://example.com:443",
			want:   Target{Endpoint: "dns://example.com:443"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTarget(tt.target))
		})
	}
}

func TestSplit2(t *testing.T) {
	a, b, ok := split2("scheme://rest", "://")
	assert.True(t, ok)
	assert.Equal(t, "scheme", a)
	assert.Equal(t, "rest", b)

	_, _, ok = split2("no-separator-here", "://")
	assert.False(t, ok)
}
