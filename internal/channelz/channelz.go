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

// Package channelz keeps the call/message counters the teacher's
// stream.go guards with "if channelz.IsOn()" at every send/recv/finish
// site. Counting is on by default (cheap int64 atomics); SetOn(false)
// switches it off, which IsOn then reports.
package channelz

import "go.uber.org/atomic"

var on = atomic.NewBool(true)

// IsOn reports whether channelz counting is enabled.
func IsOn() bool { return on.Load() }

// SetOn enables or disables counting; intended for benchmarks that want
// to shave the atomic increments off the hot path.
func SetOn(v bool) { on.Store(v) }

// Counters aggregates the lifetime counts for one ClientConn- or
// Server-scoped entity.
type Counters struct {
	CallsStarted   atomic.Int64
	CallsSucceeded atomic.Int64
	CallsFailed    atomic.Int64
	MsgSent        atomic.Int64
	MsgRecv        atomic.Int64
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters { return &Counters{} }

func (c *Counters) IncrCallsStarted() {
	if IsOn() {
		c.CallsStarted.Inc()
	}
}

func (c *Counters) IncrCallsSucceeded() {
	if IsOn() {
		c.CallsSucceeded.Inc()
	}
}

func (c *Counters) IncrCallsFailed() {
	if IsOn() {
		c.CallsFailed.Inc()
	}
}

func (c *Counters) IncrMsgSent() {
	if IsOn() {
		c.MsgSent.Inc()
	}
}

func (c *Counters) IncrMsgRecv() {
	if IsOn() {
		c.MsgRecv.Inc()
	}
}

// Snapshot is a point-in-time copy of Counters, safe to hand to a
// Prometheus collector or log line without racing further increments.
type Snapshot struct {
	CallsStarted, CallsSucceeded, CallsFailed int64
	MsgSent, MsgRecv                          int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		CallsStarted:   c.CallsStarted.Load(),
		CallsSucceeded: c.CallsSucceeded.Load(),
		CallsFailed:    c.CallsFailed.Load(),
		MsgSent:        c.MsgSent.Load(),
		MsgRecv:        c.MsgRecv.Load(),
	}
}
