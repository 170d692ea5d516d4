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

// Package balancer defines the minimal seam the retry/hedging executor
// uses to obtain a transport for an attempt: Picker and SubConn.
//
// The teacher's balancer.go also defined a full Balancer/Builder
// registry, connectivity-state aggregation, and resolver-address
// plumbing (HandleResolvedAddrs, HandleSubConnStateChange, dial
// credentials for LB servers). Per spec §1, name resolution/load
// balancing policy selection and connection management are external
// collaborators outside the core's scope — only the Pick seam the
// stream executor calls on every attempt belongs here. The
// Balancer/Builder registry, BuildOptions (with its DialCreds/Dialer
// fields for talking to a remote LB), and the connectivity.State
// aggregation were dropped; see DESIGN.md.
package balancer

import (
	"context"
	"errors"
)

// SubConn is an opaque handle to a single logical destination a Picker
// selected. It carries no fields of its own here: the concrete
// transport a SubConn resolves to is supplied by the caller's own
// Picker implementation (e.g. wrapping a fixed transport.ClientTransport
// for the in-memory pipe transport used in tests).
type SubConn interface {
	// Transport returns the client transport this SubConn is bound to.
	Transport() interface{}
}

// PickOptions carries additional information for a Pick call. Empty
// for now; kept as a struct so new fields can be added without
// breaking the Picker signature.
type PickOptions struct{}

// DoneInfo carries the outcome of one attempt back to the Picker that
// selected its SubConn, so pickers that track per-destination health
// (e.g. to feed a RetryThrottle) can update their state.
type DoneInfo struct {
	Err           error
	BytesSent     bool
	BytesReceived bool
}

var (
	// ErrNoSubConnAvailable indicates no SubConn is available for Pick
	// right now, but progress is being made; the caller should wait and
	// retry Pick rather than fail the RPC outright.
	ErrNoSubConnAvailable = errors.New("balancer: no SubConn is available")
	// ErrTransientFailure indicates every SubConn is currently failing;
	// wait-for-ready RPCs should block, others should fail unavailable.
	ErrTransientFailure = errors.New("balancer: all SubConns are in transient failure")
)

// Picker selects the SubConn used to send one attempt. The
// stream/retry/hedging executors call Pick once per attempt (spec
// §4.6/§4.7: "data flow ... retry/hedging executor -> stream executor
// (per attempt) -> ... -> transport stream").
type Picker interface {
	// Pick returns the SubConn for the next attempt. done, if non-nil,
	// is invoked exactly once when that attempt finishes.
	Pick(ctx context.Context, opts PickOptions) (conn SubConn, done func(DoneInfo), err error)
}
