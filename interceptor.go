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

// interceptor.go implements spec §4.9's onion-model interceptor
// pipeline: intercept(request, context, next) -> response, scoped to
// all calls, a named set of services, or a named set of methods.
// Grounded on the teacher's UnaryServerInterceptor/UnaryClientInterceptor
// shape (interceptor.go), generalized with the scope selector the
// teacher never had (the teacher always applied its single configured
// interceptor to every call).
package grpc

import "context"

// UnaryServerInfo carries per-call metadata available to a unary
// server interceptor.
type UnaryServerInfo struct {
	Server     interface{}
	FullMethod string
}

// UnaryHandler is the innermost link of a server interceptor chain:
// the actual method handler, or the next interceptor in the chain.
type UnaryHandler func(ctx context.Context, req interface{}) (interface{}, error)

// UnaryServerInterceptor wraps a unary call: it may inspect/replace
// req, change ctx, decide not to call handler at all, and inspect or
// replace the response and error handler returns.
type UnaryServerInterceptor func(ctx context.Context, req interface{}, info *UnaryServerInfo, handler UnaryHandler) (interface{}, error)

// UnaryClientInfo carries per-call metadata available to a unary
// client interceptor.
type UnaryClientInfo struct {
	FullMethod string
}

// UnaryInvoker performs the actual RPC, or delegates to the next
// interceptor in the chain.
type UnaryInvoker func(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, opts ...CallOption) error

// UnaryClientInterceptor wraps a unary client call, mirroring
// UnaryServerInterceptor on the caller's side.
type UnaryClientInterceptor func(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, invoker UnaryInvoker, opts ...CallOption) error

// InterceptorScope selects which calls an interceptor applies to (spec
// §4.9: "all, services(S), or methods(M)").
type InterceptorScope struct {
	services map[string]bool
	methods  map[string]bool
}

// ScopeAll returns a scope matching every call.
func ScopeAll() InterceptorScope { return InterceptorScope{} }

// ScopeServices returns a scope matching only the named services.
func ScopeServices(services ...string) InterceptorScope {
	set := make(map[string]bool, len(services))
	for _, s := range services {
		set[s] = true
	}
	return InterceptorScope{services: set}
}

// ScopeMethods returns a scope matching only the named full methods
// ("/service/method").
func ScopeMethods(methods ...string) InterceptorScope {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[m] = true
	}
	return InterceptorScope{methods: set}
}

// matches reports whether fullMethod ("/service/method") falls inside
// the scope.
func (sc InterceptorScope) matches(fullMethod string) bool {
	if sc.services == nil && sc.methods == nil {
		return true
	}
	service, _, ok := parseMethodPath(fullMethod)
	if sc.services != nil && ok && sc.services[service] {
		return true
	}
	if sc.methods != nil && sc.methods[fullMethod] {
		return true
	}
	return false
}

// scopedServerInterceptor pairs an interceptor with the scope it
// applies to.
type scopedServerInterceptor struct {
	scope InterceptorScope
	fn    UnaryServerInterceptor
}

// chainUnaryServer composes interceptors whose scope matches
// fullMethod into a single UnaryServerInterceptor, outermost first:
// the first matching entry runs first and its next() call reaches the
// second, and so on down to the real handler (spec §4.9: "innermost
// link is the actual transport invocation").
func chainUnaryServer(interceptors []scopedServerInterceptor, fullMethod string) UnaryServerInterceptor {
	active := make([]UnaryServerInterceptor, 0, len(interceptors))
	for _, si := range interceptors {
		if si.scope.matches(fullMethod) {
			active = append(active, si.fn)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(ctx context.Context, req interface{}, info *UnaryServerInfo, handler UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(active) - 1; i >= 0; i-- {
			inner := chained
			interceptor := active[i]
			chained = func(ctx context.Context, req interface{}) (interface{}, error) {
				return interceptor(ctx, req, info, inner)
			}
		}
		return chained(ctx, req)
	}
}

// scopedClientInterceptor pairs a client interceptor with the scope it
// applies to.
type scopedClientInterceptor struct {
	scope InterceptorScope
	fn    UnaryClientInterceptor
}

// chainUnaryClient composes interceptors whose scope matches fullMethod
// into a single UnaryClientInterceptor, outermost first, mirroring
// chainUnaryServer on the caller's side (spec §4.9: the onion pipeline
// is "constructed at client/server init"). Returns nil if no
// interceptor's scope matches, so the caller can invoke directly.
func chainUnaryClient(interceptors []scopedClientInterceptor, fullMethod string) UnaryClientInterceptor {
	active := make([]UnaryClientInterceptor, 0, len(interceptors))
	for _, si := range interceptors {
		if si.scope.matches(fullMethod) {
			active = append(active, si.fn)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, invoker UnaryInvoker, opts ...CallOption) error {
		chained := invoker
		for i := len(active) - 1; i >= 0; i-- {
			inner := chained
			interceptor := active[i]
			chained = func(ctx context.Context, method string, req, reply interface{}, cc *ClientConn, opts ...CallOption) error {
				return interceptor(ctx, method, req, reply, cc, inner, opts...)
			}
		}
		return chained(ctx, method, req, reply, cc, opts...)
	}
}
