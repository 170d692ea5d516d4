/*
 *
 * Copyright 2018 gRPC authors.
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

// Package retry implements the data model of spec §4.7's retry/hedging
// executor: RetryPolicy/HedgingPolicy, RetryThrottle, and the generic
// BroadcastBuffer the producer task fans out through. This package
// holds no scheduling logic of its own; the root package's
// retry_executor.go/hedging_executor.go drive these types.
package retry

import (
	"time"

	"github.com/chalvern/grpc-core/codes"
)

// Policy is the configuration common to retry and hedging: maximum
// attempts and the set of status codes that permit another attempt
// (spec §4.2 glossary, §4.7).
type Policy struct {
	// MaxAttempts bounds the number of attempts started, hedging or
	// retry (>= 1).
	MaxAttempts int

	// NonFatalCodes is the set of status codes that permit another
	// attempt; any other code is fatal and the response is delivered
	// as-is.
	NonFatalCodes map[codes.Code]bool
}

// IsNonFatal reports whether c permits another attempt under p.
func (p *Policy) IsNonFatal(c codes.Code) bool {
	if p == nil || p.NonFatalCodes == nil {
		return false
	}
	return p.NonFatalCodes[c]
}

// RetryPolicy additionally carries the backoff schedule for sequential
// retry mode (spec §4.7.2).
type RetryPolicy struct {
	Policy

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff returns the unjittered backoff duration for the given 1-based
// attempt number, per spec §4.7.2:
// min(maxBackoff, initialBackoff * multiplier^(attempt-1)).
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		if p.InitialBackoff > p.MaxBackoff && p.MaxBackoff > 0 {
			return p.MaxBackoff
		}
		return p.InitialBackoff
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// HedgingPolicy additionally carries the stagger delay for concurrent
// hedging mode (spec §4.7.1).
type HedgingPolicy struct {
	Policy

	HedgingDelay time.Duration
}

// Pushback is the parsed value of a grpc-retry-pushback-ms trailer
// (spec §4.7.1/§4.7.2).
type Pushback struct {
	// StopRetrying is set when the server sent a negative pushback
	// value. A non-numeric value is not parsed as a pushback at all.
	StopRetrying bool

	// Delay is the server-dictated delay before the next attempt,
	// meaningful only when !StopRetrying.
	Delay time.Duration
}

// ParsePushback parses the grpc-retry-pushback-ms trailer value. An
// absent header is represented by callers simply not calling this
// function; a malformed value is treated as "no pushback" by the
// caller per common gRPC client behaviour (it is not itself a fatal
// error).
func ParsePushback(raw string) (Pushback, bool) {
	if raw == "" {
		return Pushback{}, false
	}
	ms, err := parseInt(raw)
	if err != nil {
		return Pushback{}, false
	}
	if ms < 0 {
		return Pushback{StopRetrying: true}, true
	}
	return Pushback{Delay: time.Duration(ms) * time.Millisecond}, true
}

func parseInt(s string) (int64, error) {
	var neg bool
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, errNotANumber
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotANumber
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

var errNotANumber = errInvalidPushback{}

type errInvalidPushback struct{}

func (errInvalidPushback) Error() string { return "retry: invalid grpc-retry-pushback-ms value" }
