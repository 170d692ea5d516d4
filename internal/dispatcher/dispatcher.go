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

// Package dispatcher implements the completion queue of spec §4.5: a
// FIFO of (tag, outcome) events, associating completion tags with
// waiting callers, driving callbacks from a single background worker.
//
// DESIGN NOTES' "cyclic ownership" note (Call <-> CompletionDispatcher)
// is resolved the way it prescribes: the dispatcher holds the batch by
// tag only (a plain map entry, not a back-reference cycle through the
// Call), and entries are removed from the table before the owning
// batch/call is released.
package dispatcher

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/chalvern/grpc-core/internal/opbatch"
)

// State is the dispatcher's lifecycle state (spec §4.5).
type State int

const (
	Running State = iota
	Draining
	Shutdown
)

// event is one (tag, outcome) pair pulled off the internal queue.
type event struct {
	tag     uint64
	success bool
	err     error
}

// Dispatcher is the completion queue / dispatcher of spec §4.5. It
// must not drop events: every registered batch eventually gets exactly
// one Complete call, even across Shutdown.
type Dispatcher struct {
	mu      sync.Mutex
	state   State
	pending map[uint64]*opbatch.Batch

	events chan event
	done   chan struct{}
}

// New starts a Dispatcher with its background worker goroutine
// running.
func New() *Dispatcher {
	d := &Dispatcher{
		pending: make(map[uint64]*opbatch.Batch),
		events:  make(chan event, 64),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Register records batch under its tag so a later Signal/Fail can find
// it. Registration MUST happen before the corresponding transport
// submission (spec §4.3: "so that a completion cannot observe an
// unknown tag"). Returns an error once Shutdown has begun (Draining or
// Shutdown).
func (d *Dispatcher) Register(b *opbatch.Batch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Running {
		return errors.New("dispatcher: shut down, registration refused")
	}
	d.pending[b.Tag] = b
	return nil
}

// Retract removes a registered batch without completing it, used when
// transport submission itself fails synchronously (spec §4.3: "On
// submission failure the batch is retracted from the dispatcher").
func (d *Dispatcher) Retract(tag uint64) {
	d.mu.Lock()
	delete(d.pending, tag)
	d.mu.Unlock()
}

// Signal enqueues a successful (or failed, if err != nil) completion
// event for tag. Safe to call from any goroutine, including the
// transport's own read loop.
func (d *Dispatcher) Signal(tag uint64, success bool, err error) {
	select {
	case d.events <- event{tag: tag, success: success, err: err}:
	case <-d.done:
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.done:
			d.drainRemaining()
			return
		}
	}
}

func (d *Dispatcher) deliver(ev event) {
	d.mu.Lock()
	b, ok := d.pending[ev.tag]
	if ok {
		delete(d.pending, ev.tag)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	b.Complete(ev.success, ev.err)
}

// drainRemaining completes every still-registered batch with Cancelled
// (spec §4.5: "On shutdown() ... all still-registered batches complete
// with Cancelled").
func (d *Dispatcher) drainRemaining() {
	d.mu.Lock()
	remaining := d.pending
	d.pending = make(map[uint64]*opbatch.Batch)
	d.mu.Unlock()
	for _, b := range remaining {
		b.Complete(false, ErrCancelled)
	}
	// Drain anything still queued in the channel buffer so no event is
	// silently dropped.
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		default:
			return
		}
	}
}

// ErrCancelled is the error batches complete with when the dispatcher
// shuts down while they are still registered.
var ErrCancelled = errors.New("dispatcher: shut down before completion")

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Shutdown transitions the dispatcher through Draining to Shutdown: no
// further Register calls succeed, and every still-registered batch is
// completed with ErrCancelled. Idempotent.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.state == Shutdown {
		d.mu.Unlock()
		return
	}
	d.state = Draining
	d.mu.Unlock()

	close(d.done)

	d.mu.Lock()
	d.state = Shutdown
	d.mu.Unlock()
}
