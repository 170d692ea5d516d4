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

// stream_executor.go implements the single-attempt executor of spec
// §4.6: encodes outbound messages, frames and sends them, receives and
// decodes inbound frames, enforcing the message-size and compression
// policy, driving exactly one attempt's Call. Grounded on the
// teacher's csAttempt.sendMsg/recvMsg (stream.go), which inlined this
// same encode-frame-send / recv-inflate-decode sequence directly
// against a *transport.Stream; this core separates that sequence out
// so retry_executor.go/hedging_executor.go can run several attempts'
// executors concurrently or sequentially without duplicating it.
package grpc

import (
	"bytes"
	"context"
	"strconv"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/encoding"
	"github.com/chalvern/grpc-core/internal/callstate"
	"github.com/chalvern/grpc-core/internal/codec"
	"github.com/chalvern/grpc-core/metadata"
	"github.com/chalvern/grpc-core/status"
)

// StreamExecutor is the single-attempt engine of spec §4.6: it owns a
// Call and the codec/compressor/size-limit configuration for one
// attempt.
type StreamExecutor struct {
	call *Call

	codec    encoding.Codec
	sendComp encoding.Compressor
	recvComp encoding.Compressor

	maxSendBytes int
	maxRecvBytes int
	decompLimit  int64

	previousAttempts int

	// onDone, if set, is invoked exactly once when the attempt reaches a
	// terminal outcome (ReceiveStatus returning, or Cancel), so a
	// balancer.Picker can be told the attempt finished (spec: Picker's
	// done callback).
	onDone func(err error)
	doneFired bool
}

// NewStreamExecutor builds the executor for one attempt. previousAttempts
// is attempt-1 (0 for the first attempt), carried in the
// grpc-previous-rpc-attempts header for every later attempt (spec
// §4.7.3).
func NewStreamExecutor(call *Call, c encoding.Codec, sendComp, recvComp encoding.Compressor, maxSendBytes, maxRecvBytes int, decompLimit int64, previousAttempts int) *StreamExecutor {
	return &StreamExecutor{
		call:             call,
		codec:            c,
		sendComp:         sendComp,
		recvComp:         recvComp,
		maxSendBytes:     maxSendBytes,
		maxRecvBytes:     maxRecvBytes,
		decompLimit:      decompLimit,
		previousAttempts: previousAttempts,
	}
}

// attemptHeaders builds the initial metadata to send for this attempt,
// folding in grpc-previous-rpc-attempts when this isn't the first
// attempt (spec §4.7.3).
func (e *StreamExecutor) attemptHeaders(md metadata.MD) metadata.MD {
	if e.previousAttempts <= 0 {
		return md
	}
	out := md.Copy()
	out.Append("grpc-previous-rpc-attempts", strconv.Itoa(e.previousAttempts))
	return out
}

// SendInitialMetadata pushes md (with grpc-previous-rpc-attempts
// folded in for attempts after the first) to the peer.
func (e *StreamExecutor) SendInitialMetadata(md metadata.MD) error {
	return e.call.SendInitialMetadata(e.attemptHeaders(md))
}

// SendMessage marshals v with the executor's codec, frames it
// (compressing through sendComp unless it is identity), and writes it
// to the attempt's Call, enforcing maxSendMessageBytes on the
// uncompressed size (spec §4.1).
func (e *StreamExecutor) SendMessage(v interface{}, last bool) error {
	payload, err := e.codec.Marshal(v)
	if err != nil {
		return status.Errorf(codes.Internal, "grpc: error marshaling request: %v", err)
	}
	if e.maxSendBytes > 0 && len(payload) > e.maxSendBytes {
		return status.Errorf(codes.ResourceExhausted, "grpc: message of size %d exceeds maxRequestMessageBytes %d", len(payload), e.maxSendBytes)
	}
	frame, err := codec.Frame(payload, e.sendComp != nil, e.sendComp)
	if err != nil {
		return err
	}
	// A later attempt sends its own initial metadata first, so the
	// grpc-previous-rpc-attempts header is not lost to the Call's
	// auto-inserted empty metadata.
	if e.previousAttempts > 0 && e.call.state.SendState() == callstate.SendIdle {
		if err := e.SendInitialMetadata(metadata.MD{}); err != nil {
			return err
		}
	}
	return e.call.SendMessage(frame, last)
}

// ReceiveMessage blocks for the next inbound message, decodes it
// through recvComp and the executor's codec, and stores the result in
// v. Returns a non-nil error (not necessarily a Status) once no
// further message will arrive.
func (e *StreamExecutor) ReceiveMessage(v interface{}) error {
	frame, err := e.call.ReceiveMessage()
	if err != nil {
		return err
	}
	payload, err := codec.Decode(bytes.NewReader(frame), e.recvComp, e.maxRecvBytes, e.decompLimit)
	if err != nil {
		return err
	}
	return e.codec.Unmarshal(payload, v)
}

// CloseSend finalizes the send side of the attempt.
func (e *StreamExecutor) CloseSend() error {
	return e.call.SendClose()
}

// SendStatus is the server-side terminal send (spec §4.4:
// sendStatusFromServer).
func (e *StreamExecutor) SendStatus(code codes.Code, msg string, trailer metadata.MD) error {
	return e.call.SendStatus(code, msg, trailer)
}

// Header blocks for the attempt's initial metadata.
func (e *StreamExecutor) Header() (metadata.MD, error) {
	return e.call.ReceiveInitialMetadata()
}

// ReceiveStatus blocks for the attempt's terminal status and trailing
// metadata.
func (e *StreamExecutor) ReceiveStatus(ctx context.Context) (*status.Status, metadata.MD, error) {
	st, trailer, err := e.call.ReceiveStatus(ctx)
	e.fireDone(err)
	return st, trailer, err
}

// Cancel tears the attempt down.
func (e *StreamExecutor) Cancel(err error) {
	e.call.Cancel(err)
	e.fireDone(err)
}

func (e *StreamExecutor) fireDone(err error) {
	if e.onDone == nil || e.doneFired {
		return
	}
	e.doneFired = true
	e.onDone(err)
}

