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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottleStartsFull(t *testing.T) {
	th := NewThrottle(10, 1)
	assert.Equal(t, 10.0, th.Tokens())
	assert.True(t, th.IsRetryPermitted())
}

func TestThrottleRecordFailureGatesAtHalf(t *testing.T) {
	th := NewThrottle(10, 1)
	for i := 0; i < 5; i++ {
		th.RecordFailure()
	}
	// tokens == maxTokens/2 exactly: not permitted, strictly greater required.
	assert.Equal(t, 5.0, th.Tokens())
	assert.False(t, th.IsRetryPermitted())
}

func TestThrottleRecordSuccessCapsAtMax(t *testing.T) {
	th := NewThrottle(10, 4)
	th.RecordFailure()
	th.RecordFailure()
	th.RecordSuccess()
	th.RecordSuccess()
	th.RecordSuccess()
	assert.Equal(t, 10.0, th.Tokens())
}

func TestThrottleConcurrentAccess(t *testing.T) {
	th := NewThrottle(100, 1)
	// Start from 50 so no interleaving of the concurrent operations can
	// reach the cap (at most 50+50) and the end result is exactly 50.
	for i := 0; i < 50; i++ {
		th.RecordFailure()
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			th.RecordFailure()
		}()
		go func() {
			defer wg.Done()
			th.RecordSuccess()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, th.Tokens())
}
