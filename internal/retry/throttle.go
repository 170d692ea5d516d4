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
	"sync"

	"go.uber.org/atomic"
)

// Throttle is the process-local, per-destination rate limiter of spec
// §4.2/§4.7: a token-like counter shared across every attempt of every
// call to the same destination, preventing retry/hedging amplification
// from overwhelming a failing backend.
//
// Token accounting needs both a compare against maxTokens and an
// update to stay atomic together (recordSuccess caps at maxTokens), so
// this is guarded by a mutex rather than expressed as a lock-free
// counter; maxTokens and tokenRatio are fixed at construction and read
// without locking.
type Throttle struct {
	maxTokens  float64
	tokenRatio float64

	mu     sync.Mutex
	tokens float64

	// totalFailures is exposed only for diagnostics/tests; it does not
	// gate behaviour.
	totalFailures atomic.Int64
}

// NewThrottle constructs a Throttle starting with a full bucket of
// maxTokens, per real gRPC's RetryThrottlingPolicy semantics.
func NewThrottle(maxTokens, tokenRatio float64) *Throttle {
	return &Throttle{maxTokens: maxTokens, tokenRatio: tokenRatio, tokens: maxTokens}
}

// RecordSuccess adds tokenRatio tokens, capped at maxTokens (spec
// §4.2: "recordSuccess() adds tokenRatio tokens (capped)").
func (t *Throttle) RecordSuccess() {
	t.mu.Lock()
	t.tokens += t.tokenRatio
	if t.tokens > t.maxTokens {
		t.tokens = t.maxTokens
	}
	t.mu.Unlock()
}

// RecordFailure subtracts one token (spec §4.2: "recordFailure()
// subtracts 1"); the counter is allowed to go negative.
func (t *Throttle) RecordFailure() {
	t.mu.Lock()
	t.tokens--
	t.mu.Unlock()
	t.totalFailures.Inc()
}

// IsRetryPermitted reports whether tokens > maxTokens/2 (spec §4.2).
func (t *Throttle) IsRetryPermitted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens > t.maxTokens/2
}

// Tokens returns the current token count, for tests and diagnostics.
func (t *Throttle) Tokens() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens
}
