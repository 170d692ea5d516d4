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

// Package codes defines the canonical error codes used by this RPC core.
// These values mirror the gRPC status code space exactly (0-16) so that
// a "grpc-status" trailer round-trips without translation.
package codes

import "strconv"

// Code is a status code as defined by the gRPC wire protocol.
type Code uint32

const (
	// OK means the RPC completed successfully.
	OK Code = 0
	// Canceled means the RPC was cancelled, typically by the caller.
	Canceled Code = 1
	// Unknown covers errors raised by a peer that don't map onto this enum.
	Unknown Code = 2
	// InvalidArgument means the client specified an invalid argument.
	InvalidArgument Code = 3
	// DeadlineExceeded means the deadline expired before the RPC completed.
	DeadlineExceeded Code = 4
	// NotFound means a requested entity was not found.
	NotFound Code = 5
	// AlreadyExists means an entity the caller tried to create already exists.
	AlreadyExists Code = 6
	// PermissionDenied means the caller lacks permission for the operation.
	PermissionDenied Code = 7
	// ResourceExhausted means a resource has been exhausted, e.g. a quota, a
	// send-queue cap, or a decompression bound.
	ResourceExhausted Code = 8
	// FailedPrecondition means the operation was rejected because the system
	// is not in a state required for it.
	FailedPrecondition Code = 9
	// Aborted means the operation was aborted, typically due to a concurrency
	// conflict.
	Aborted Code = 10
	// OutOfRange means the operation was attempted past the valid range.
	OutOfRange Code = 11
	// Unimplemented means the operation is not implemented or not supported.
	Unimplemented Code = 12
	// Internal means an internal invariant was violated.
	Internal Code = 13
	// Unavailable means the service is currently unavailable; retryable.
	Unavailable Code = 14
	// DataLoss means unrecoverable data loss or corruption occurred.
	DataLoss Code = 15
	// Unauthenticated means the request lacks valid authentication.
	Unauthenticated Code = 16
)

var strs = [...]string{
	OK:                 "OK",
	Canceled:           "Canceled",
	Unknown:            "Unknown",
	InvalidArgument:    "InvalidArgument",
	DeadlineExceeded:   "DeadlineExceeded",
	NotFound:           "NotFound",
	AlreadyExists:      "AlreadyExists",
	PermissionDenied:   "PermissionDenied",
	ResourceExhausted:  "ResourceExhausted",
	FailedPrecondition: "FailedPrecondition",
	Aborted:            "Aborted",
	OutOfRange:         "OutOfRange",
	Unimplemented:      "Unimplemented",
	Internal:           "Internal",
	Unavailable:        "Unavailable",
	DataLoss:           "DataLoss",
	Unauthenticated:    "Unauthenticated",
}

// String returns the name of the code, or a numeric fallback for an
// out-of-range value (a peer is free to send anything in "grpc-status").
func (c Code) String() string {
	if int(c) < len(strs) {
		return strs[c]
	}
	return "Code(" + strconv.FormatUint(uint64(c), 10) + ")"
}
