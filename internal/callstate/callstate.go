/*
 *
 * Copyright 2014 gRPC authors.
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

// Package callstate implements the call state machine of spec §4.4:
// legal orderings of send and receive operations on a single RPC, plus
// cancellation. It mirrors the field-level invariants the teacher
// enforces ad hoc in clientStream/csAttempt/serverStream (sentLast,
// finished, the mu-guarded single finish) as an explicit, testable FSM.
package callstate

import (
	"sync"

	"github.com/chalvern/grpc-core/status"
	"github.com/chalvern/grpc-core/codes"
)

// SendState is the send-side state machine (spec §4.4).
type SendState int

const (
	SendIdle SendState = iota
	Sending
	SendClosing
	SendClosed
)

// RecvState is the receive-side state machine (spec §4.4).
type RecvState int

const (
	AwaitingHeaders RecvState = iota
	Streaming
	TrailersReceived
	RecvClosed
)

// ErrProtocolViolation wraps an illegal transition; such a transition
// MUST NOT be sent to the peer (spec §4.4).
type ErrProtocolViolation struct {
	Msg string
}

func (e *ErrProtocolViolation) Error() string { return "protocol violation: " + e.Msg }

// ToStatusErr converts a protocol violation into the Internal status
// the caller observes (spec §7).
func (e *ErrProtocolViolation) ToStatusErr() error {
	return status.Error(codes.Internal, e.Error())
}

func violation(format string) error {
	return &ErrProtocolViolation{Msg: format}
}

// Machine tracks one call's send and receive state. All transitions
// are serialized through mu, matching §5's "per-call state transitions
// are serialised through the call's owning task" (here expressed as a
// mutex rather than a single-goroutine requirement, since callers may
// invoke SendMessage/ReceiveMessage from different goroutines per the
// Stream interface's documented concurrency contract).
type Machine struct {
	mu   sync.Mutex
	send SendState
	recv RecvState

	cancelled bool
}

// New returns a fresh Machine in the initial idle/awaiting-headers
// state.
func New() *Machine {
	return &Machine{send: SendIdle, recv: AwaitingHeaders}
}

// SendState returns the current send-side state.
func (m *Machine) SendState() SendState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send
}

// RecvState returns the current receive-side state.
func (m *Machine) RecvState() RecvState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recv
}

// SendInitialMetadata transitions Idle -> Sending. A second call is a
// protocol violation (spec §4.4: "second initial metadata").
func (m *Machine) SendInitialMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.send != SendIdle {
		return violation("sendInitialMetadata called outside Idle state")
	}
	m.send = Sending
	return nil
}

// SendMessage transitions (Idle|Sending) -> Sending. Per spec §9(a),
// THIS SPEC prescribes auto-inserting initial metadata when called from
// Idle, rather than failing.
func (m *Machine) SendMessage() (autoInsertedInitialMetadata bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.send {
	case SendIdle:
		m.send = Sending
		return true, nil
	case Sending:
		return false, nil
	default:
		return false, violation("sendMessage called after the send side has closed")
	}
}

// SendClose transitions (Idle|Sending) -> Closing. Represents the
// client's sendCloseFromClient or the server's sendStatusFromServer
// (spec §4.4 table treats both as "final send").
func (m *Machine) SendClose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.send {
	case SendIdle, Sending:
		m.send = SendClosing
		return nil
	case SendClosing, SendClosed:
		return violation("send side already closing or closed")
	}
	return nil
}

// SendBatchComplete transitions Closing -> Closed once the final send
// batch's completion fires.
func (m *Machine) SendBatchComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.send == SendClosing {
		m.send = SendClosed
	}
}

// ReceiveInitialMetadata transitions AwaitingHeaders -> Streaming.
func (m *Machine) ReceiveInitialMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recv != AwaitingHeaders {
		return violation("receiveInitialMetadata called outside AwaitingHeaders state")
	}
	m.recv = Streaming
	return nil
}

// ReceiveMessage is legal only in Streaming, staying in Streaming
// (spec §4.4: "deliver to caller").
func (m *Machine) ReceiveMessage() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.recv {
	case AwaitingHeaders:
		// Trailers-only responses (e.g. an immediate error) may arrive
		// without ever explicitly receiving initial metadata; treat
		// this as an implicit transition rather than a violation,
		// matching real gRPC's trailers-only behaviour.
		m.recv = Streaming
		return nil
	case Streaming:
		return nil
	default:
		return violation("receiveMessage called after the receive side has closed")
	}
}

// ReceiveStatus transitions Streaming -> TrailersReceived -> Closed;
// it is the one terminator of the receive side (spec §3: "Exactly one
// receiveStatusOnClient terminates the receive side").
func (m *Machine) ReceiveStatus() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.recv {
	case AwaitingHeaders, Streaming:
		m.recv = RecvClosed
		return nil
	default:
		return violation("receiveStatusOnClient called more than once")
	}
}

// Cancel moves both sides to Closed unconditionally. Idempotent (spec
// §4.4: "Cancellation is idempotent").
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.send = SendClosed
	m.recv = RecvClosed
}

// Cancelled reports whether Cancel has been called.
func (m *Machine) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Done reports whether both the send and receive sides have reached
// their terminal state.
func (m *Machine) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send == SendClosed && m.recv == RecvClosed
}
