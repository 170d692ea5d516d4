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

// Package status implements the status/error model from spec §7: every
// terminal call outcome is either OK or a Status carrying a code and a
// message. Trailing metadata is not part of a Status; the call APIs
// return it separately.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/chalvern/grpc-core/codes"
)

// Status represents an RPC status composed of a code and a message.
type Status struct {
	code codes.Code
	msg  string
}

// New returns a Status representing code and msg.
func New(code codes.Code, msg string) *Status {
	return &Status{code: code, msg: msg}
}

// Newf returns New(code, fmt.Sprintf(format, a...)).
func Newf(code codes.Code, format string, a ...interface{}) *Status {
	return New(code, fmt.Sprintf(format, a...))
}

// Code returns the status code contained in s, or codes.OK if s is nil.
func (s *Status) Code() codes.Code {
	if s == nil {
		return codes.OK
	}
	return s.code
}

// Message returns the message contained in s, or "" if s is nil.
func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.msg
}

// Err returns an immutable error representing s; nil if s.Code() is OK.
func (s *Status) Err() error {
	if s.Code() == codes.OK {
		return nil
	}
	return (*statusError)(s)
}

// statusError implements error on top of Status, so the *Status value
// itself doubles as the concrete error type gRPC cares about.
type statusError Status

func (se *statusError) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", se.code, se.msg)
}

func (se *statusError) status() *Status {
	return (*Status)(se)
}

// Error returns an error representing code and msg. If code is OK, returns nil.
func Error(code codes.Code, msg string) error {
	return New(code, msg).Err()
}

// Errorf returns Error(code, fmt.Sprintf(format, a...)).
func Errorf(code codes.Code, format string, a ...interface{}) error {
	return Error(code, fmt.Sprintf(format, a...))
}

// FromError returns a Status representing err if it was produced by this
// package (directly or through its cause chain, so wrapping with
// github.com/pkg/errors.Wrap still round-trips); otherwise it returns
// a Status with code Unknown and ok=false.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return nil, true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status(), true
	}
	return New(codes.Unknown, err.Error()), false
}

// Convert is a convenience function which removes the need to handle the
// boolean return value from FromError.
func Convert(err error) *Status {
	s, _ := FromError(err)
	return s
}

// Code returns the codes.Code of the error if it is a Status error or if
// it wraps a Status error. If that is not the case, it returns codes.OK
// if err is nil, or codes.Unknown otherwise.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return Convert(err).Code()
}

// FromContextError converts a context.Context error (context.Canceled,
// context.DeadlineExceeded) into the matching Status error (spec §7:
// deadline expiry surfaces as DeadlineExceeded; cancellation as
// Cancelled). Any other error, including nil, passes through
// unchanged.
func FromContextError(err error) error {
	switch err {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return Error(codes.DeadlineExceeded, err.Error())
	case context.Canceled:
		return Error(codes.Canceled, err.Error())
	default:
		return err
	}
}
