/*
 *
 * Copyright 2018 gRPC authors.
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

package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chalvern/grpc-core/codes"
)

func TestPolicyIsNonFatal(t *testing.T) {
	p := &Policy{NonFatalCodes: map[codes.Code]bool{codes.Unavailable: true}}
	assert.True(t, p.IsNonFatal(codes.Unavailable))
	assert.False(t, p.IsNonFatal(codes.Internal))

	var nilPolicy *Policy
	assert.False(t, nilPolicy.IsNonFatal(codes.Unavailable))
}

func TestRetryPolicyBackoff(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{
			name: "first attempt uses initial backoff",
			policy: RetryPolicy{
				InitialBackoff: 100 * time.Millisecond,
				MaxBackoff:     time.Second,
				Multiplier:     2,
			},
			attempt: 1,
			want:    100 * time.Millisecond,
		},
		{
			name: "second attempt applies the multiplier once",
			policy: RetryPolicy{
				InitialBackoff: 100 * time.Millisecond,
				MaxBackoff:     time.Second,
				Multiplier:     2,
			},
			attempt: 2,
			want:    200 * time.Millisecond,
		},
		{
			name: "capped at max backoff",
			policy: RetryPolicy{
				InitialBackoff: 100 * time.Millisecond,
				MaxBackoff:     300 * time.Millisecond,
				Multiplier:     2,
			},
			attempt: 4,
			want:    300 * time.Millisecond,
		},
		{
			name: "initial already exceeds max",
			policy: RetryPolicy{
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     300 * time.Millisecond,
				Multiplier:     2,
			},
			attempt: 1,
			want:    300 * time.Millisecond,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.Backoff(tc.attempt))
		})
	}
}

func TestParsePushback(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   Pushback
	}{
		{name: "absent", raw: "", wantOK: false},
		{name: "positive delay", raw: "1000", wantOK: true, want: Pushback{Delay: time.Second}},
		{name: "negative stops retrying", raw: "-1", wantOK: true, want: Pushback{StopRetrying: true}},
		{name: "garbage is treated as absent", raw: "soon", wantOK: false},
		{name: "zero is a valid delay", raw: "0", wantOK: true, want: Pushback{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParsePushback(tc.raw)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
