/*
 *
 * Copyright 2015 gRPC authors.
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

package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalvern/grpc-core/internal/opbatch"
)

func TestRegisterThenSignalDeliversCompletion(t *testing.T) {
	d := New()
	defer d.Shutdown()

	done := make(chan struct{})
	var gotSuccess bool
	b := opbatch.New(opbatch.NewAllocator(), nil, func(success bool, ops []opbatch.Operation, err error) {
		gotSuccess = success
		close(done)
	})
	require.NoError(t, d.Register(b))
	d.Signal(b.Tag, true, nil)

	select {
	case <-done:
		assert.True(t, gotSuccess)
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestRetractPreventsLateSignalFromDelivering(t *testing.T) {
	d := New()
	defer d.Shutdown()

	var fired bool
	b := opbatch.New(opbatch.NewAllocator(), nil, func(success bool, ops []opbatch.Operation, err error) {
		fired = true
	})
	require.NoError(t, d.Register(b))
	d.Retract(b.Tag)
	d.Signal(b.Tag, true, nil)

	// There's no registered batch for this tag anymore; give the worker
	// a moment to process the (now orphaned) event and confirm nothing
	// fires.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired)
}

func TestRegisterAfterShutdownIsRefused(t *testing.T) {
	d := New()
	d.Shutdown()

	b := opbatch.New(opbatch.NewAllocator(), nil, nil)
	err := d.Register(b)
	assert.Error(t, err)
	assert.Equal(t, Shutdown, d.State())
}

func TestShutdownCompletesStillPendingBatchesWithCancelled(t *testing.T) {
	d := New()

	var gotErr error
	var gotSuccess bool
	done := make(chan struct{})
	b := opbatch.New(opbatch.NewAllocator(), nil, func(success bool, ops []opbatch.Operation, err error) {
		gotSuccess, gotErr = success, err
		close(done)
	})
	require.NoError(t, d.Register(b))

	d.Shutdown()

	select {
	case <-done:
		assert.False(t, gotSuccess)
		assert.Equal(t, ErrCancelled, gotErr)
	case <-time.After(time.Second):
		t.Fatal("pending batch was never completed on shutdown")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	d := New()
	d.Shutdown()
	assert.NotPanics(t, func() { d.Shutdown() })
	assert.Equal(t, Shutdown, d.State())
}
