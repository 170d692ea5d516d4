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

// call.go binds one attempt's transport.Stream to the operation-batch
// and completion-dispatcher model of spec §4.3/§4.5. The teacher's
// call.go instead held the old pre-retry clientStream.SendMsg/RecvMsg
// loop directly against csAttempt.s (the transport stream) with the
// explicit "TODO: implement retries in clientStream" this spec
// resolves via stream_executor.go/retry_executor.go/hedging_executor.go.
package grpc

import (
	"context"
	"sync"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/internal/callstate"
	"github.com/chalvern/grpc-core/internal/dispatcher"
	"github.com/chalvern/grpc-core/internal/opbatch"
	"github.com/chalvern/grpc-core/internal/transport"
	"github.com/chalvern/grpc-core/metadata"
	"github.com/chalvern/grpc-core/status"
)

// Call is one attempt's binding of a transport stream to the
// operation-batch/completion-dispatcher model. Every Call owns exactly
// one callstate.Machine and submits every operation it performs as a
// one-op opbatch.Batch through a shared Dispatcher, so completions
// always flow back through the single completion-queue path spec §4.5
// describes, never as direct goroutine-to-goroutine handoffs.
type Call struct {
	stream transport.Stream
	disp   *dispatcher.Dispatcher
	alloc  *opbatch.Allocator
	state  *callstate.Machine

	mu          sync.Mutex
	gotHeaders  bool
	headers     metadata.MD
	headersErr  error
}

// NewCall wraps stream with the operation-batch/completion-dispatcher
// model. disp and alloc are typically shared across every attempt of a
// single RPC so that their tags and draining behaviour are uniform
// process-wide (spec §3: "monotonically increasing 64-bit tag unique
// process-wide").
func NewCall(stream transport.Stream, disp *dispatcher.Dispatcher, alloc *opbatch.Allocator) *Call {
	return &Call{stream: stream, disp: disp, alloc: alloc, state: callstate.New()}
}

// submit registers a single-operation batch, performs do in a new
// goroutine (the batch's one suspension point, spec §5), and blocks
// the caller until the batch's completion callback fires exactly once.
func (c *Call) submit(op opbatch.Operation, do func() error) error {
	done := make(chan error, 1)
	b := opbatch.New(c.alloc, []opbatch.Operation{op}, func(success bool, ops []opbatch.Operation, err error) {
		done <- err
	})
	if err := c.disp.Register(b); err != nil {
		return err
	}
	go func() {
		err := do()
		c.disp.Signal(b.Tag, err == nil, err)
	}()
	return <-done
}

// protoErr converts a callstate protocol violation into the Internal
// status this core surfaces to callers (spec §7).
func protoErr(err error) error {
	if pv, ok := err.(*callstate.ErrProtocolViolation); ok {
		return pv.ToStatusErr()
	}
	return err
}

// SendInitialMetadata pushes md to the peer. Called by the server side
// of a pipe, or explicitly by a client that wants headers visible
// before the first message (otherwise SendMessage auto-inserts them,
// spec §9(a)).
func (c *Call) SendInitialMetadata(md metadata.MD) error {
	if err := c.state.SendInitialMetadata(); err != nil {
		return protoErr(err)
	}
	return c.submit(opbatch.Operation{Kind: opbatch.SendInitialMetadata, Metadata: md}, func() error {
		if sh, ok := c.stream.(interface{ SendHeader(metadata.MD) }); ok {
			sh.SendHeader(md)
		}
		return nil
	})
}

// SendMessage writes one already-framed wire message. If the send
// side is still Idle, initial metadata is auto-inserted first (spec
// §9(a): THIS SPEC prescribes auto-insert rather than failing).
func (c *Call) SendMessage(frame []byte, last bool) error {
	autoInsert, err := c.state.SendMessage()
	if err != nil {
		return protoErr(err)
	}
	if autoInsert {
		if sh, ok := c.stream.(interface{ SendHeader(metadata.MD) }); ok {
			sh.SendHeader(metadata.MD{})
		}
	}
	return c.submit(opbatch.Operation{Kind: opbatch.SendMessage, Message: frame}, func() error {
		return c.stream.Write(frame, &transport.Options{Last: last})
	})
}

// SendClose finalizes the send side (client: sendCloseFromClient;
// server: handled instead by SendStatus, spec §4.4 treats both as the
// one terminal send operation).
func (c *Call) SendClose() error {
	if err := c.state.SendClose(); err != nil {
		return protoErr(err)
	}
	err := c.submit(opbatch.Operation{Kind: opbatch.SendCloseFromClient}, func() error { return nil })
	c.state.SendBatchComplete()
	return err
}

// ReceiveInitialMetadata blocks until the peer's initial metadata
// arrives. Safe to call at most once per Call; repeated calls after
// the first return the same cached result.
func (c *Call) ReceiveInitialMetadata() (metadata.MD, error) {
	c.mu.Lock()
	if c.gotHeaders {
		md, err := c.headers, c.headersErr
		c.mu.Unlock()
		return md, err
	}
	c.mu.Unlock()

	if err := c.state.ReceiveInitialMetadata(); err != nil {
		return metadata.MD{}, protoErr(err)
	}
	var md metadata.MD
	err := c.submit(opbatch.Operation{Kind: opbatch.ReceiveInitialMetadata}, func() error {
		h, err := c.stream.Header()
		md = h
		return err
	})
	c.mu.Lock()
	c.gotHeaders = true
	c.headers, c.headersErr = md, err
	c.mu.Unlock()
	return md, err
}

// ReceiveMessage blocks for the next inbound wire frame, or returns an
// error (including a clean end-of-stream indication via the returned
// error being non-nil) once no further message will arrive.
func (c *Call) ReceiveMessage() ([]byte, error) {
	if err := c.state.ReceiveMessage(); err != nil {
		return nil, protoErr(err)
	}
	var frame []byte
	err := c.submit(opbatch.Operation{Kind: opbatch.ReceiveMessage}, func() error {
		f, err := c.stream.Read()
		frame = f
		return err
	})
	return frame, err
}

// ReceiveStatus blocks for the terminal status and trailing metadata
// (spec §3: "Exactly one receiveStatusOnClient terminates the receive
// side").
func (c *Call) ReceiveStatus(ctx context.Context) (*status.Status, metadata.MD, error) {
	if err := c.state.ReceiveStatus(); err != nil {
		return nil, metadata.MD{}, protoErr(err)
	}
	var st *status.Status
	err := c.submit(opbatch.Operation{Kind: opbatch.ReceiveStatusOnClient}, func() error {
		// Drain remaining messages so the transport's Status() reflects
		// the final outcome rather than an in-flight one.
		for {
			if _, err := c.stream.Read(); err != nil {
				break
			}
		}
		sr := c.stream.Status()
		if sr == nil {
			if cerr := status.FromContextError(ctx.Err()); cerr != nil {
				st = status.Convert(cerr)
				return cerr
			}
			st = status.New(codes.OK, "")
			return nil
		}
		st = status.New(codes.Code(sr.Code), sr.Message)
		if sr.Code != 0 {
			return st.Err()
		}
		return nil
	})
	trailer := c.stream.Trailer()
	if err != nil && st == nil {
		st = status.Convert(err)
	}
	return st, trailer, nil
}

// statusSetter is implemented by server-side transport streams that
// can deliver a terminal status to the peer (transport.pipeStream in
// the reference transport).
type statusSetter interface {
	SetStatus(*transport.StatusResult)
}

// SendStatus is the server-side terminal send operation (spec §4.4's
// sendStatusFromServer): it finalizes the send side and delivers code,
// msg, and trailer to the peer.
func (c *Call) SendStatus(code codes.Code, msg string, trailer metadata.MD) error {
	if err := c.state.SendClose(); err != nil {
		return protoErr(err)
	}
	err := c.submit(opbatch.Operation{Kind: opbatch.SendStatusFromServer, StatusCode: uint32(code), StatusMsg: msg}, func() error {
		ss, ok := c.stream.(statusSetter)
		if !ok {
			return status.Error(codes.Internal, "grpc: transport stream cannot deliver a terminal status")
		}
		ss.SetStatus(&transport.StatusResult{Code: uint32(code), Message: msg, Trailer: trailer})
		return nil
	})
	c.state.SendBatchComplete()
	return err
}

// Cancel tears down the call's state machine and the underlying
// stream. Idempotent (spec §4.4: "Cancellation is idempotent").
func (c *Call) Cancel(err error) {
	c.state.Cancel()
	c.stream.Close(err)
}
