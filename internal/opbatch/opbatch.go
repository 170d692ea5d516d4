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

// Package opbatch implements the operation batch described in spec
// §4.3: a group of typed send/receive operations submitted atomically
// with one completion tag. DESIGN NOTES calls for replacing "deep
// inheritance of operation observers" with a tagged union; Kind plus
// Operation is that union.
package opbatch

import "go.uber.org/atomic"

// Kind enumerates the eight operation kinds a Batch may carry, at most
// one of each (spec §3).
type Kind int

const (
	SendInitialMetadata Kind = iota
	SendMessage
	SendCloseFromClient
	SendStatusFromServer
	ReceiveInitialMetadata
	ReceiveMessage
	ReceiveStatusOnClient
	ReceiveCloseOnServer
	numKinds
)

func (k Kind) String() string {
	switch k {
	case SendInitialMetadata:
		return "SendInitialMetadata"
	case SendMessage:
		return "SendMessage"
	case SendCloseFromClient:
		return "SendCloseFromClient"
	case SendStatusFromServer:
		return "SendStatusFromServer"
	case ReceiveInitialMetadata:
		return "ReceiveInitialMetadata"
	case ReceiveMessage:
		return "ReceiveMessage"
	case ReceiveStatusOnClient:
		return "ReceiveStatusOnClient"
	case ReceiveCloseOnServer:
		return "ReceiveCloseOnServer"
	default:
		return "Unknown"
	}
}

// Operation is one tagged-union member of a Batch: Kind selects which
// of the payload fields is meaningful.
type Operation struct {
	Kind Kind

	// Payload fields; only the one matching Kind is populated.
	Metadata    interface{} // metadata.MD, for *Metadata kinds
	Message     []byte      // for SendMessage / ReceiveMessage (populated after completion)
	StatusCode  uint32      // for SendStatusFromServer / ReceiveStatusOnClient
	StatusMsg   string
}

// Allocator is the monotonically increasing tag source
// (spec §3: "monotonically increasing 64-bit tag unique process-wide";
// DESIGN NOTES: "model as explicitly injected singletons, not ambient
// statics" — there is no package-level default; callers construct an
// Allocator with NewAllocator and pass it where tags are needed).
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator returns a tag Allocator starting at 1 (0 is reserved as
// the zero-value "no tag").
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(0)
	return a
}

// Next returns the next unique tag.
func (a *Allocator) Next() uint64 {
	return a.next.Add(1)
}

// CompletionFunc is invoked exactly once when a Batch's submission
// completes (spec §3: "destroyed after its completion callback runs
// exactly once").
type CompletionFunc func(success bool, ops []Operation, err error)

// Batch is an ordered collection of Operations submitted atomically
// with one Tag.
type Batch struct {
	Tag        uint64
	Ops        []Operation
	onComplete CompletionFunc

	completed atomic.Bool
}

// New builds a Batch with a freshly allocated tag.
func New(alloc *Allocator, ops []Operation, onComplete CompletionFunc) *Batch {
	return &Batch{Tag: alloc.Next(), Ops: ops, onComplete: onComplete}
}

// Has reports whether the batch carries an operation of kind k.
func (b *Batch) Has(k Kind) bool {
	for _, op := range b.Ops {
		if op.Kind == k {
			return true
		}
	}
	return false
}

// Complete invokes the batch's completion callback exactly once; a
// second call is a no-op, enforcing spec §3's "runs exactly once".
func (b *Batch) Complete(success bool, err error) {
	if !b.completed.CompareAndSwap(false, true) {
		return
	}
	if b.onComplete != nil {
		b.onComplete(success, b.Ops, err)
	}
}
