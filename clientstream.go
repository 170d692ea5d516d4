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

// clientstream.go is the public client-side surface: ClientConn binds
// a Picker and service config to a destination, and ClientStream wires
// together the options record, the execution policy (none/retry/
// hedging), and the per-attempt StreamExecutor. Grounded on the
// teacher's ClientConn/newClientStream/clientStream in stream.go,
// generalized so a stream's attempts run through stream_executor.go
// directly or through retry_executor.go/hedging_executor.go.
package grpc

import (
	"context"
	"sync"

	"github.com/chalvern/grpc-core/balancer"
	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/encoding"
	"github.com/chalvern/grpc-core/internal/dispatcher"
	"github.com/chalvern/grpc-core/internal/grpclog"
	"github.com/chalvern/grpc-core/internal/opbatch"
	"github.com/chalvern/grpc-core/internal/retry"
	"github.com/chalvern/grpc-core/internal/transport"
	"github.com/chalvern/grpc-core/metadata"
	"github.com/chalvern/grpc-core/status"
)

const defaultDecompressionLimit = 64 * 1024 * 1024

// ClientConn is the minimal client-side connection handle this core
// needs: a Picker to obtain a transport per attempt, a shared
// completion dispatcher and tag allocator (process-local singletons
// per spec §3's DESIGN NOTES, injected here rather than ambient
// statics), an optional service config, and a RetryThrottle shared
// across every call to this destination (spec §4.2: "process-local,
// shared across attempts of the same destination").
//
// Name resolution, the full Balancer/Builder registry, and connection
// management are external collaborators outside this core's scope
// (spec §1); callers supply a ready-made Picker.
type ClientConn struct {
	picker balancer.Picker
	target Target

	defaultCallOptions []CallOption
	serviceConfig      *ServiceConfig

	mu           sync.Mutex
	interceptors []scopedClientInterceptor

	dispatcher *dispatcher.Dispatcher
	allocator  *opbatch.Allocator
	throttle   *retry.Throttle
}

// NewClientConn binds picker to target. throttle may be nil to disable
// retry/hedging throttling for this destination.
func NewClientConn(target string, picker balancer.Picker, throttle *retry.Throttle, opts ...CallOption) *ClientConn {
	return &ClientConn{
		picker:             picker,
		target:             parseTarget(target),
		defaultCallOptions: opts,
		dispatcher:         dispatcher.New(),
		allocator:          opbatch.NewAllocator(),
		throttle:           throttle,
	}
}

// Target returns the endpoint part of the dial target this ClientConn
// was constructed with (the whole string when it has no
// scheme://authority/ prefix).
func (cc *ClientConn) Target() string { return cc.target.Endpoint }

// SetServiceConfig installs the method defaults used by every
// subsequent call; pass nil to clear.
func (cc *ClientConn) SetServiceConfig(sc *ServiceConfig) { cc.serviceConfig = sc }

// UseInterceptor appends a client interceptor scoped to scope,
// mirroring Server.UseInterceptor on the caller's side (spec §4.9).
func (cc *ClientConn) UseInterceptor(scope InterceptorScope, i UnaryClientInterceptor) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.interceptors = append(cc.interceptors, scopedClientInterceptor{scope: scope, fn: i})
}

// Close shuts down the ClientConn's completion dispatcher, failing any
// still-registered batch (spec §4.5: "On shutdown() ... all
// still-registered batches complete with Cancelled").
func (cc *ClientConn) Close() error {
	cc.dispatcher.Shutdown()
	return nil
}

func (cc *ClientConn) methodConfig(method string) MethodConfig {
	if cc.serviceConfig == nil {
		return MethodConfig{}
	}
	if mc, ok := cc.serviceConfig.Methods[method]; ok {
		return mc
	}
	// Fall back to the service-level default, "/service/" (spec: method
	// config lookup falls back to the service's default entry).
	if idx := lastSlash(method); idx > 0 {
		if mc, ok := cc.serviceConfig.Methods[method[:idx+1]]; ok {
			return mc
		}
	}
	return MethodConfig{}
}

// interceptorChain resolves the composed client interceptor for
// method, or nil if no registered interceptor's scope matches it.
func (cc *ClientConn) interceptorChain(method string) UnaryClientInterceptor {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return chainUnaryClient(cc.interceptors, method)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// resolveCallOptions merges defaults, method config, and explicit
// per-call options into one record (spec §4.2's options record).
func (cc *ClientConn) resolveCallOptions(method string, opts ...CallOption) callOptions {
	o := defaultCallOptions()
	mc := cc.methodConfig(method)
	if mc.MaxRequestMessageBytes != nil {
		o.maxSendMessageBytes = *mc.MaxRequestMessageBytes
	}
	if mc.MaxResponseMessageBytes != nil {
		o.maxRecvMessageBytes = *mc.MaxResponseMessageBytes
	}
	if mc.WaitForReady != nil {
		o.waitForReady, o.hasWFR = *mc.WaitForReady, true
	}
	if mc.Timeout != nil {
		o.timeout, o.hasTimeout = *mc.Timeout, true
	}
	if mc.RetryPolicy != nil {
		o.executionPolicy, o.retryPolicy, o.throttle = ExecutionRetry, mc.RetryPolicy, cc.throttle
	} else if mc.HedgingPolicy != nil {
		o.executionPolicy, o.hedgingPolicy, o.throttle = ExecutionHedging, mc.HedgingPolicy, cc.throttle
	}
	for _, opt := range combine(cc.defaultCallOptions, opts) {
		opt.apply(&o)
	}
	return o
}

// StreamDesc describes one of the four canonical RPC shapes (spec
// §4.2: "unary, client-streaming, server-streaming, bidirectional-
// streaming").
type StreamDesc struct {
	StreamName    string
	ClientStreams bool
	ServerStreams bool
}

// ClientStream is the public handle a caller drives: SendMsg/RecvMsg/
// CloseSend/Header/Trailer, backed by whichever execution policy the
// resolved call options selected.
type ClientStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	cc     *ClientConn
	method string
	desc   *StreamDesc
	opts   callOptions

	mu           sync.Mutex
	exec         *StreamExecutor
	reqsBuf      *retry.BroadcastBuffer[sentFrame]
	closed       bool
	finalSt      *status.Status
	finalTrailer metadata.MD
}

// NewClientStream opens a ClientStream for method, resolving call
// options from cc's defaults/service config/opts. Under
// ExecutionNone/ExecutionRetry the first attempt starts immediately,
// matching the teacher's eager-dial shape; retry attempts beyond the
// first are started lazily as RecvMsg drives the call forward.
//
// Under ExecutionHedging, no attempt is opened here: spec §4.7.1
// requires every hedge, including the first, to be started and raced
// by the same concurrent supervisor (HedgingExecutor.Run), so starting
// one sequentially up front would both double-send attempt #1 and let
// it block RecvMsg before any hedge ever got a chance to start.
// SendMsg/CloseSend just record the outbound stream into reqsBuf until
// the first RecvMsg call kicks the race off.
func NewClientStream(ctx context.Context, desc *StreamDesc, cc *ClientConn, method string, opts ...CallOption) (*ClientStream, error) {
	o := cc.resolveCallOptions(method, opts...)
	var cancel context.CancelFunc
	if o.hasTimeout {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	cs := &ClientStream{ctx: ctx, cancel: cancel, cc: cc, method: method, desc: desc, opts: o, reqsBuf: retry.NewBroadcastBuffer[sentFrame](0)}

	if o.executionPolicy == ExecutionHedging {
		return cs, nil
	}

	exec, err := cs.newAttempt(ctx, 0)
	if err != nil {
		cancel()
		return nil, err
	}
	cs.exec = exec
	return cs, nil
}

func (cs *ClientStream) newAttempt(ctx context.Context, previousAttempts int) (*StreamExecutor, error) {
	conn, done, err := cs.cc.picker.Pick(ctx, balancer.PickOptions{})
	if err != nil {
		if err == balancer.ErrNoSubConnAvailable || err == balancer.ErrTransientFailure {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, err
	}
	ct, ok := conn.Transport().(transport.ClientTransport)
	if !ok {
		return nil, status.Error(codes.Internal, "grpc: SubConn's Transport() is not a transport.ClientTransport")
	}
	hdr := &transport.CallHdr{
		Method:           cs.method,
		SendCompress:     cs.opts.compressorName,
		PreviousAttempts: previousAttempts,
	}
	stream, err := ct.NewStream(ctx, hdr)
	if err != nil {
		if done != nil {
			done(balancer.DoneInfo{Err: err})
		}
		return nil, err
	}

	call := NewCall(stream, cs.cc.dispatcher, cs.cc.allocator)
	var comp encoding.Compressor
	if cs.opts.compressorName != "" {
		comp = encoding.GetCompressor(cs.opts.compressorName)
		if comp == nil {
			grpclog.Warningf("grpc: no compressor registered for %q; sending uncompressed", cs.opts.compressorName)
		}
	}
	c := cs.opts.codec.codec
	if c == nil {
		c = encoding.GetCodec("proto")
	}
	exec := NewStreamExecutor(call, c, comp, comp, cs.opts.maxSendMessageBytes, cs.opts.maxRecvMessageBytes, defaultDecompressionLimit, previousAttempts)
	if done != nil {
		exec.onDone = func(err error) { done(balancer.DoneInfo{Err: err}) }
	}
	return exec, nil
}

// SendMsg marshals and sends m as the next outbound message, and
// produces it into reqsBuf (spec §4.7: "a producer task that plays the
// request's outbound message stream once into a BroadcastBuffer") so
// any retry/hedging attempt, including one started after this point,
// replays the identical stream.
func (cs *ClientStream) SendMsg(m interface{}) error {
	cs.mu.Lock()
	exec := cs.exec
	cs.mu.Unlock()
	frame := sentFrame{msg: m, last: !cs.desc.ClientStreams}
	if err := cs.reqsBuf.Produce(frame); err != nil {
		return status.Errorf(codes.Internal, "grpc: %v", err)
	}
	if exec == nil {
		// Hedging: nothing to send yet, no attempt has started.
		return nil
	}
	return exec.SendMessage(frame.msg, frame.last)
}

// CloseSend finalizes the send side.
func (cs *ClientStream) CloseSend() error {
	cs.mu.Lock()
	exec := cs.exec
	cs.mu.Unlock()
	cs.reqsBuf.Finish(nil)
	if exec == nil {
		return nil
	}
	return exec.CloseSend()
}

// RecvMsg blocks for the next inbound message (unary/client-streaming
// calls: the single response). Under ExecutionNone/ExecutionRetry,
// cs.exec already has an attempt in flight (started by NewClientStream
// or a prior RecvMsg) and this reads it directly, falling back to the
// execution policy only once it fails. Under ExecutionHedging with no
// attempt started yet, it skips straight to the concurrent supervisor,
// which starts attempt #1 itself (spec §4.7.1).
func (cs *ClientStream) RecvMsg(m interface{}) error {
	cs.mu.Lock()
	exec := cs.exec
	cs.mu.Unlock()

	var first *AttemptOutcome
	if exec != nil {
		if err := exec.ReceiveMessage(m); err == nil {
			return nil
		}

		st, trailer, _ := exec.ReceiveStatus(cs.ctx)
		if st != nil && st.Code() == codes.OK {
			cs.mu.Lock()
			cs.finalSt, cs.finalTrailer = st, trailer
			cs.mu.Unlock()
			return nil
		}
		first = &AttemptOutcome{Exec: exec, Status: st, Trailer: trailer}
	}

	outcome, err := cs.runExecutionPolicy(first)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.exec = outcome.Exec
	cs.finalSt = outcome.Status
	cs.finalTrailer = outcome.Trailer
	cs.mu.Unlock()
	if outcome.Status != nil && outcome.Status.Code() != codes.OK {
		return outcome.Status.Err()
	}
	return outcome.Exec.ReceiveMessage(m)
}

// runExecutionPolicy dispatches to the configured retry or hedging
// executor, or returns first's outcome unchanged under ExecutionNone.
// first is nil only under ExecutionHedging when no attempt has started
// yet; every other policy always has a live first attempt by the time
// this is called.
func (cs *ClientStream) runExecutionPolicy(first *AttemptOutcome) (*AttemptOutcome, error) {
	switch cs.opts.executionPolicy {
	case ExecutionRetry:
		if !cs.opts.retryPolicy.IsNonFatal(first.Status.Code()) {
			return first, nil
		}
		r := NewRetryExecutor(cs.opts.retryPolicy, cs.opts.throttle, cs.newAttempt)
		return r.Run(cs.ctx, cs.reqsBuf)
	case ExecutionHedging:
		// Every hedge, including the first, is started and raced by Run
		// itself (spec §4.7.1: "the first attempt starts immediately;
		// subsequent attempts are scheduled hedgingDelay after the
		// previous attempt started ... all in-flight attempts race").
		h := NewHedgingExecutor(cs.opts.hedgingPolicy, cs.opts.throttle, cs.newAttempt)
		return h.Run(cs.ctx, cs.reqsBuf)
	default:
		return first, nil
	}
}

// Header blocks for the current attempt's initial metadata. Under
// ExecutionHedging, no attempt exists until the first RecvMsg starts
// the race, so calling Header beforehand reports Internal rather than
// blocking on a nonexistent attempt.
func (cs *ClientStream) Header() (metadata.MD, error) {
	cs.mu.Lock()
	exec := cs.exec
	cs.mu.Unlock()
	if exec == nil {
		return metadata.MD{}, status.Error(codes.Internal, "grpc: Header called before any attempt started")
	}
	return exec.Header()
}

// Trailer returns the final attempt's trailing metadata; only valid
// after RecvMsg has returned a terminal error or io.EOF.
func (cs *ClientStream) Trailer() metadata.MD {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.finalTrailer
}

// Context returns the stream's context.
func (cs *ClientStream) Context() context.Context { return cs.ctx }
