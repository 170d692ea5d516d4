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

// Package transport defines the abstract "stream" this core consumes
// (spec §1: "the core consumes an abstract stream that carries typed
// frames in both directions"). HTTP/2 framing, HPACK, and connection
// pooling are explicitly out of scope; this package only names the
// contract a concrete HTTP/2 transport would satisfy, plus (in pipe.go)
// an in-memory implementation used by this core's own tests.
package transport

import (
	"context"
	"time"

	"github.com/chalvern/grpc-core/credentials"
	"github.com/chalvern/grpc-core/keepalive"
	"github.com/chalvern/grpc-core/metadata"
)

// CallHdr carries the request-line-equivalent information needed to
// open a new stream for one RPC attempt.
type CallHdr struct {
	// Host is the value used for ":authority".
	Host string
	// Method is the full method name, "/service/method".
	Method string
	// SendCompress is the grpc-encoding used for outbound messages, or
	// "" / encoding.Identity for none.
	SendCompress string
	// Creds, if non-nil, is applied as per-call transport credentials.
	Creds credentials.PerRPCCredentials
	// Flush requests that the transport flush headers immediately
	// rather than coalescing them with the first message (teacher's
	// comment: client-streaming RPCs may not send a request soon).
	Flush bool
	// PreviousAttempts is the number of attempts that preceded this
	// one; when > 0, callers set a "grpc-previous-rpc-attempts" header
	// (spec §4.7.3).
	PreviousAttempts int
}

// Options carries per-Write options.
type Options struct {
	// Last indicates this is the last message the client or server
	// will send.
	Last bool
}

// Stream is the abstract bidirectional byte/metadata pipe this core
// frames messages over. One Stream backs one RPC attempt.
type Stream interface {
	// Context returns the stream's context, cancelled when the stream
	// ends for any reason.
	Context() context.Context
	// Method returns the full method name this stream was opened for.
	Method() string

	// Header blocks until the peer's initial metadata (or an error) is
	// available.
	Header() (metadata.MD, error)
	// Trailer returns the peer's trailing metadata. Only valid after
	// the stream has fully terminated.
	Trailer() metadata.MD

	// Write sends one already-framed message. opts.Last indicates the
	// sender will send nothing further.
	Write(frame []byte, opts *Options) error
	// Read reads the next raw frame bytes from the peer, or io.EOF once
	// the peer has sent its last message.
	Read() ([]byte, error)

	// Status returns the terminal RPC status, valid once Read has
	// returned io.EOF (client side) or the handler has returned
	// (server side).
	Status() *StatusResult

	// Close ends the stream. err, if non-nil, is surfaced to the peer
	// as a Cancelled or transport-error status where the concrete
	// transport is able to do so.
	Close(err error) error
}

// StatusResult packages the terminal code/message/trailer triple spec
// §3's CallResult aggregates.
type StatusResult struct {
	Code    uint32
	Message string
	Trailer metadata.MD
}

// ClientTransport is the client-side factory for new attempt streams.
type ClientTransport interface {
	// NewStream opens a new Stream for one RPC attempt.
	NewStream(ctx context.Context, hdr *CallHdr) (Stream, error)
	// Close tears down the transport and fails every open stream.
	Close(err error) error
}

// ServerTransport is the server-side source of incoming streams.
type ServerTransport interface {
	// HandleStreams blocks, invoking handle for every new incoming
	// stream, until the transport is closed.
	HandleStreams(handle func(Stream))
	// Close tears down the transport.
	Close(err error) error
}

// ConnectOptions groups the dial-time configuration a concrete
// transport implementation would consume; this core only threads the
// values through, since socket/TLS bootstrap is out of scope (spec §1).
type ConnectOptions struct {
	TransportCredentials credentials.TransportCredentials
	KeepaliveParams      keepalive.ClientParameters
	Timeout              time.Duration
}

// ServerConfig groups the listen-time configuration for a concrete
// server transport implementation.
type ServerConfig struct {
	TransportCredentials credentials.TransportCredentials
	KeepaliveParams      keepalive.ServerParameters
	KeepalivePolicy      keepalive.EnforcementPolicy
}
