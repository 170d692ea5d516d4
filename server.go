/*
 *
 * Copyright 2015 gRPC authors.
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

// server.go implements spec §4.8's request pump: accept streams as
// fast as the transport delivers them, parse "/<service>/<method>",
// dispatch to a registered handler on its own task, and cancel a
// handler that overruns its deadline. Grounded on the teacher's
// serverStream (stream.go) for the mirrored send/receive state machine
// on the server side, generalized into an explicit registry/dispatch
// loop the teacher's snapshot never carried (it only had the
// ServerStream type, no dispatcher).
package grpc

import (
	"context"
	"strings"
	"sync"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/encoding"
	"github.com/chalvern/grpc-core/internal/dispatcher"
	"github.com/chalvern/grpc-core/internal/grpclog"
	"github.com/chalvern/grpc-core/internal/opbatch"
	"github.com/chalvern/grpc-core/internal/transport"
	"github.com/chalvern/grpc-core/status"
)

// MethodHandler is invoked once per accepted call. It receives a
// ServerStream bound to the call's Call/StreamExecutor pair and
// returns the application-level error, if any, converted to a Status
// before being sent as the call's trailing status.
type MethodHandler func(srv interface{}, stream *ServerStream) error

// MethodDesc binds a method name under a service to its handler.
type MethodDesc struct {
	MethodName string
	Handler    MethodHandler
}

// ServiceDesc is a registry entry for one service: its name, the
// implementation instance handlers are invoked against, and its
// methods, matched by substring per spec §4.8 ("dispatches by method
// (substring match)").
type ServiceDesc struct {
	ServiceName string
	HandlerType interface{}
	Methods     []MethodDesc
	Impl        interface{}

	// Codec names the message codec this service's handlers expect,
	// looked up via encoding.GetCodec. Empty means "proto" (spec §4.1's
	// default codec).
	Codec string
}

// Server is the request pump of spec §4.8.
type Server struct {
	mu       sync.Mutex
	services map[string]*ServiceDesc

	dispatcher *dispatcher.Dispatcher
	allocator  *opbatch.Allocator

	interceptors []scopedServerInterceptor
}

// NewServer constructs an empty Server; RegisterService must be called
// before Serve.
func NewServer() *Server {
	return &Server{
		services:   make(map[string]*ServiceDesc),
		dispatcher: dispatcher.New(),
		allocator:  opbatch.NewAllocator(),
	}
}

// RegisterService adds sd to the registry, keyed by service name
// (spec §4.8: "a registry keyed by <service> (string match)").
func (s *Server) RegisterService(sd *ServiceDesc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[sd.ServiceName] = sd
}

// UseInterceptor appends an interceptor scoped to scope (spec §4.9:
// "all, services(S), or methods(M)"), applied outermost-first in
// registration order among the interceptors whose scope matches a
// given call.
func (s *Server) UseInterceptor(scope InterceptorScope, i UnaryServerInterceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interceptors = append(s.interceptors, scopedServerInterceptor{scope: scope, fn: i})
}

// Serve runs the request pump against st: it accepts streams as fast
// as the transport delivers them, dispatching each onto its own
// goroutine (spec §4.8: "the pump accepts new streams as fast as the
// transport delivers them and dispatches each handler onto a task").
// Serve blocks until st.HandleStreams returns (the transport closed).
func (s *Server) Serve(st transport.ServerTransport) error {
	st.HandleStreams(func(stream transport.Stream) {
		go s.handleStream(stream)
	})
	return nil
}

// parseMethodPath splits "/<service>/<method>" into its two
// components, rejecting anything else (spec §4.8: "reject on missing
// components").
func parseMethodPath(path string) (service, method string, ok bool) {
	if len(path) == 0 || path[0] != '/' {
		return "", "", false
	}
	path = path[1:]
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return "", "", false
	}
	service, method = path[:i], path[i+1:]
	if service == "" || method == "" {
		return "", "", false
	}
	return service, method, true
}

// lookupHandler resolves service/method against the registry. Method
// matching is substring-based per spec §4.8 ("dispatches by method
// (substring match)"), so a registered MethodName need only appear
// within the requested method rather than equal it exactly.
func (s *Server) lookupHandler(service, method string) (*ServiceDesc, *MethodDesc) {
	s.mu.Lock()
	sd, ok := s.services[service]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	for i := range sd.Methods {
		if strings.Contains(method, sd.Methods[i].MethodName) {
			return sd, &sd.Methods[i]
		}
	}
	return sd, nil
}

func (s *Server) handleStream(stream transport.Stream) {
	service, method, ok := parseMethodPath(stream.Method())
	if !ok {
		s.failStream(stream, codes.Unimplemented, "grpc: malformed method name %q", stream.Method())
		return
	}
	sd, md := s.lookupHandler(service, method)
	if sd == nil || md == nil {
		s.failStream(stream, codes.Unimplemented, "grpc: unknown service or method %q", stream.Method())
		return
	}

	call := NewCall(stream, s.dispatcher, s.allocator)
	codecName := sd.Codec
	if codecName == "" {
		codecName = "proto"
	}
	codec := encoding.GetCodec(codecName)
	exec := NewStreamExecutor(call, codec, nil, nil, defaultMaxSendMessageBytes, defaultMaxRecvMessageBytes, defaultDecompressionLimit, 0)
	ctx := stream.Context()

	ss := &ServerStream{ctx: ctx, exec: exec}

	deadlineExceeded := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				close(deadlineExceeded)
			}
		case <-done:
		}
	}()

	fullMethod := stream.Method()
	run := func(context.Context, interface{}) (interface{}, error) {
		return nil, md.Handler(sd.Impl, ss)
	}
	s.mu.Lock()
	interceptor := chainUnaryServer(s.interceptors, fullMethod)
	s.mu.Unlock()
	if interceptor != nil {
		run = func(ctx context.Context, req interface{}) (interface{}, error) {
			return interceptor(ctx, req, &UnaryServerInfo{Server: sd.Impl, FullMethod: fullMethod}, func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, md.Handler(sd.Impl, ss)
			})
		}
	}

	_, err := run(ctx, nil)
	close(done)

	select {
	case <-deadlineExceeded:
		exec.SendStatus(codes.DeadlineExceeded, "grpc: deadline exceeded", ss.currentTrailer())
		return
	default:
	}

	st := status.Convert(err)
	exec.SendStatus(st.Code(), st.Message(), ss.currentTrailer())
}

func (s *Server) failStream(stream transport.Stream, code codes.Code, format string, args ...interface{}) {
	st := status.Newf(code, format, args...)
	grpclog.Warningf("%s", st.Message())
	if ssm, ok := stream.(interface {
		SetStatus(*transport.StatusResult)
	}); ok {
		ssm.SetStatus(&transport.StatusResult{Code: uint32(st.Code()), Message: st.Message()})
	}
}
