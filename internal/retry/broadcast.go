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

package retry

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// BroadcastBuffer is the bounded, multi-consumer replay buffer of spec
// §4.7: the producer task plays the outbound message stream once, and
// every attempt's own consumer sees every item produced, starting from
// the first, including items produced before a late-joining attempt
// started (spec: "This guarantees that every attempt,
// including attempts started after some messages have already
// flowed, sees the same byte sequence"). Grounded on the teacher's
// channel-per-consumer idiom in stream.go's recvBufferQueue, extended
// to multiple independent readers over one retained item slice.
type BroadcastBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	bufSize  int
	done     bool
	finalErr error
	notify   []chan struchSignal
}

type struchSignal struct{}

// NewBroadcastBuffer constructs a buffer that retains at most bufSize
// produced items for replay to late-joining consumers. bufSize <= 0
// means unbounded retention (the caller is responsible for choosing a
// bufSize matching the maximum in-flight request bytes it can
// tolerate, per spec §4.7).
func NewBroadcastBuffer[T any](bufSize int) *BroadcastBuffer[T] {
	return &BroadcastBuffer[T]{bufSize: bufSize}
}

// ErrBufferOverflow is returned by Produce once more than bufSize
// items would need to be retained for replay.
var ErrBufferOverflow = errors.New("retry: broadcast buffer exceeded bufferSize")

// Produce appends item for every present and future consumer. Must be
// called only by the single producer task (spec §4.7: "a producer
// task that plays the request's outbound message stream once").
func (b *BroadcastBuffer[T]) Produce(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return errors.New("retry: broadcast buffer already finished")
	}
	if b.bufSize > 0 && len(b.items) >= b.bufSize {
		return ErrBufferOverflow
	}
	b.items = append(b.items, item)
	b.wake()
	return nil
}

// Finish marks the buffer complete, with err nil for success. Every
// consumer observes this once it has drained all produced items (spec
// §4.7: "consumers observe the final outcome after draining").
func (b *BroadcastBuffer[T]) Finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	b.finalErr = err
	b.wake()
}

func (b *BroadcastBuffer[T]) wake() {
	for _, ch := range b.notify {
		select {
		case ch <- struchSignal{}:
		default:
		}
	}
}

// Consumer reads the broadcast stream from its first item, whenever it
// was created, independent of every other Consumer.
type Consumer[T any] struct {
	buf    *BroadcastBuffer[T]
	next   int
	notify chan struchSignal
}

// NewConsumer subscribes a fresh Consumer starting from the first item
// ever produced (index 0); a consumer created after some items have
// already flowed still observes all of them, satisfying the
// replay-to-late-joiners requirement.
func (b *BroadcastBuffer[T]) NewConsumer() *Consumer[T] {
	ch := make(chan struchSignal, 1)
	b.mu.Lock()
	b.notify = append(b.notify, ch)
	b.mu.Unlock()
	return &Consumer[T]{buf: b, notify: ch}
}

// Next blocks until the next item is available, the buffer finishes,
// or ctx is done. ok is false once the stream is exhausted: err is nil
// for a clean finish, or the error Finish was called with.
func (c *Consumer[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	b := c.buf
	for {
		b.mu.Lock()
		if c.next < len(b.items) {
			item = b.items[c.next]
			c.next++
			b.mu.Unlock()
			return item, true, nil
		}
		if b.done {
			finalErr := b.finalErr
			b.mu.Unlock()
			var zero T
			return zero, false, finalErr
		}
		b.mu.Unlock()
		select {
		case <-c.notify:
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
}
