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

import "context"

// unaryStreamDesc describes the unary shape: a single request, a
// single response, no client or server streaming.
var unaryStreamDesc = &StreamDesc{ServerStreams: false, ClientStreams: false}

// Invoke performs a unary RPC: open a stream, send the one request,
// receive the one response. This is typically called by generated
// code; the retry/hedging policy resolved for method governs how many
// attempts run underneath, entirely transparent to this function
// (spec §4.7 replaces the teacher's bespoke "TODO: implement retries
// in clientStream" loop in call.go with the executors SendMsg/RecvMsg
// now drive internally). Runs through cc's client interceptor chain
// (spec §4.9), if any is registered for method.
func Invoke(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, opts ...CallOption) error {
	if chain := cc.interceptorChain(method); chain != nil {
		return chain(ctx, method, req, reply, cc, invokeUnary, opts...)
	}
	return invokeUnary(ctx, method, req, reply, cc, opts...)
}

// invokeUnary is the innermost UnaryInvoker: the real stream plumbing,
// with no interceptor involved.
func invokeUnary(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, opts ...CallOption) error {
	cs, err := NewClientStream(ctx, unaryStreamDesc, cc, method, opts...)
	if err != nil {
		return err
	}
	if err := cs.SendMsg(req); err != nil {
		return err
	}
	if err := cs.CloseSend(); err != nil {
		return err
	}
	return cs.RecvMsg(reply)
}
