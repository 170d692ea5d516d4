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

// serverstream.go is the server-side counterpart of clientstream.go:
// it binds one accepted call's StreamExecutor to the handler-facing
// API a MethodHandler drives (spec §4.4's server side of the send/
// receive state machine). Grounded on the teacher's serverStream
// (stream.go, deleted), rebuilt against StreamExecutor/Call instead of
// directly against transport.ServerStream.
package grpc

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/chalvern/grpc-core/metadata"
)

// ServerStream is passed to every MethodHandler. Handlers call RecvMsg
// to read client messages and SendMsg to write responses; the first
// SendMsg (or an explicit SendHeader) flushes initial metadata.
type ServerStream struct {
	ctx  context.Context
	exec *StreamExecutor

	headerSent atomic.Bool
	header     metadata.MD

	mu      sync.Mutex
	trailer metadata.MD
}

// Context returns the call's context, cancelled when the client
// cancels or the deadline (if any) expires.
func (ss *ServerStream) Context() context.Context { return ss.ctx }

// SetHeader adds to the metadata that will be sent with the initial
// metadata. Must be called before the first SendMsg or SendHeader.
func (ss *ServerStream) SetHeader(md metadata.MD) error {
	if ss.headerSent.Load() {
		return errAlreadySentHeader
	}
	ss.header = metadata.Join(ss.header, md)
	return nil
}

// SendHeader flushes the initial metadata (ss.header merged with md)
// to the client. A no-op if headers were already sent.
func (ss *ServerStream) SendHeader(md metadata.MD) error {
	if !ss.headerSent.CompareAndSwap(false, true) {
		return nil
	}
	return ss.exec.SendInitialMetadata(metadata.Join(ss.header, md))
}

// SetTrailer adds to the metadata that will be sent with the terminal
// status once the handler returns.
func (ss *ServerStream) SetTrailer(md metadata.MD) {
	ss.mu.Lock()
	ss.trailer = metadata.Join(ss.trailer, md)
	ss.mu.Unlock()
}

func (ss *ServerStream) currentTrailer() metadata.MD {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.trailer
}

// SendMsg sends one response message, auto-flushing initial metadata
// first if the handler never called SendHeader explicitly (spec
// §9(a)'s auto-insert rule applies symmetrically on the server side).
func (ss *ServerStream) SendMsg(m interface{}) error {
	if ss.headerSent.CompareAndSwap(false, true) {
		if err := ss.exec.SendInitialMetadata(ss.header); err != nil {
			return err
		}
	}
	return ss.exec.SendMessage(m, false)
}

// RecvMsg blocks for the next client message.
func (ss *ServerStream) RecvMsg(m interface{}) error {
	return ss.exec.ReceiveMessage(m)
}

var errAlreadySentHeader = &headerAlreadySentError{}

type headerAlreadySentError struct{}

func (*headerAlreadySentError) Error() string {
	return "grpc: SetHeader called after headers were already sent"
}
