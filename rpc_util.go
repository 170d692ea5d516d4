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

package grpc

import (
	"time"

	"github.com/chalvern/grpc-core/encoding"
	_ "github.com/chalvern/grpc-core/encoding/proto" // installs the default "proto" codec
	"github.com/chalvern/grpc-core/internal/retry"
)

// ExecutionPolicy selects how a call's attempts are scheduled (spec
// §4.2 programmatic surface: "executionPolicy (retry | hedging |
// none)").
type ExecutionPolicy int

const (
	// ExecutionNone runs a single attempt with no retry or hedging.
	ExecutionNone ExecutionPolicy = iota
	// ExecutionRetry runs sequential retry attempts per RetryPolicy.
	ExecutionRetry
	// ExecutionHedging runs concurrent hedged attempts per HedgingPolicy.
	ExecutionHedging
)

// callOptions is the options record threaded through every RPC shape
// (spec §4.2): "Every call accepts an options record with keys:
// timeout, waitForReady, maxRequestMessageBytes, maxResponseMessageBytes,
// compression, executionPolicy." Grounded on the teacher's callInfo
// struct in stream.go, generalized to this spec's option set.
type callOptions struct {
	timeout      time.Duration
	hasTimeout   bool
	waitForReady bool
	hasWFR       bool

	maxSendMessageBytes int
	maxRecvMessageBytes int

	compressorName string

	executionPolicy ExecutionPolicy
	retryPolicy     *retry.RetryPolicy
	hedgingPolicy   *retry.HedgingPolicy
	throttle        *retry.Throttle

	codec codecRef
}

// codecRef names the message codec to use; kept as a thin indirection
// so callOptions doesn't need to import the concrete codec package
// directly (mirrors the teacher's dopts.codec field).
type codecRef struct {
	name string
	codec encoding.Codec
}

// CallOption configures an individual RPC invocation. Options compose:
// later options in a call override earlier ones with the same field.
type CallOption interface {
	apply(*callOptions)
}

type callOptionFunc func(*callOptions)

func (f callOptionFunc) apply(o *callOptions) { f(o) }

// WithTimeout sets the per-call timeout (spec §4.2: "timeout (duration
// or none)").
func WithTimeout(d time.Duration) CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.timeout = d
		o.hasTimeout = true
	})
}

// WithWaitForReady records the waitForReady preference in the call's
// options record (spec §4.2: "waitForReady (bool or none)"). Attempt
// setup does not consult it: a Pick that finds no ready connection
// fails the attempt with Unavailable either way.
func WithWaitForReady(wait bool) CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.waitForReady = wait
		o.hasWFR = true
	})
}

// WithMaxRequestMessageBytes bounds the size of any single outbound
// message, enforced on the uncompressed size (spec §4.1).
func WithMaxRequestMessageBytes(n int) CallOption {
	return callOptionFunc(func(o *callOptions) { o.maxSendMessageBytes = n })
}

// WithMaxResponseMessageBytes bounds the size of any single inbound
// message, enforced on the uncompressed size (spec §4.1).
func WithMaxResponseMessageBytes(n int) CallOption {
	return callOptionFunc(func(o *callOptions) { o.maxRecvMessageBytes = n })
}

// WithCompressor selects the compression algorithm applied to
// outbound messages by name (e.g. "gzip", "deflate"); an empty name
// means identity (spec §4.2: "compression (algorithm or none)").
func WithCompressor(name string) CallOption {
	return callOptionFunc(func(o *callOptions) { o.compressorName = name })
}

// WithCodec overrides the message codec used to marshal/unmarshal
// call payloads.
func WithCodec(name string, c encoding.Codec) CallOption {
	return callOptionFunc(func(o *callOptions) { o.codec = codecRef{name: name, codec: c} })
}

// WithNoExecutionPolicy forces a single attempt, overriding any retry
// or hedging policy configured on the ClientConn or method config.
func WithNoExecutionPolicy() CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.executionPolicy = ExecutionNone
		o.retryPolicy = nil
		o.hedgingPolicy = nil
	})
}

// WithRetryPolicy selects sequential retry mode with the given policy
// and shared throttle (spec §4.7.2).
func WithRetryPolicy(p *retry.RetryPolicy, throttle *retry.Throttle) CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.executionPolicy = ExecutionRetry
		o.retryPolicy = p
		o.throttle = throttle
	})
}

// WithHedgingPolicy selects concurrent hedging mode with the given
// policy and shared throttle (spec §4.7.1).
func WithHedgingPolicy(p *retry.HedgingPolicy, throttle *retry.Throttle) CallOption {
	return callOptionFunc(func(o *callOptions) {
		o.executionPolicy = ExecutionHedging
		o.hedgingPolicy = p
		o.throttle = throttle
	})
}

// defaultCallOptions mirrors the teacher's defaultCallInfo, sized per
// the codec's historical 4 MiB default (ClientConn.resolveCallOptions
// overrides these from the method config when configured).
func defaultCallOptions() callOptions {
	return callOptions{
		maxSendMessageBytes: defaultMaxSendMessageBytes,
		maxRecvMessageBytes: defaultMaxRecvMessageBytes,
	}
}

const (
	defaultMaxSendMessageBytes = 4 * 1024 * 1024
	defaultMaxRecvMessageBytes = 4 * 1024 * 1024
)

func combine(o1, o2 []CallOption) []CallOption {
	// Avoid append so that o1's spare capacity is never silently
	// overwritten, which would otherwise let two concurrent calls
	// race on a shared backing array.
	if len(o1) == 0 {
		return o2
	} else if len(o2) == 0 {
		return o1
	}
	ret := make([]CallOption, len(o1)+len(o2))
	copy(ret, o1)
	copy(ret[len(o1):], o2)
	return ret
}
