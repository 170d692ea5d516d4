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

package transport

import (
	"context"
	"io"
	"sync"

	"github.com/chalvern/grpc-core/metadata"
)

// halfPipe is one direction of an in-memory stream: a FIFO of frames
// with at most one pending blocking receiver, plus a terminal error.
// Grounded on inprocgrpc's stream.HalfStream (buffer-then-one-shot-
// waiter), rewritten around a channel instead of a callback since this
// core's goroutines block rather than running on a single event loop.
type halfPipe struct {
	mu     sync.Mutex
	buf    [][]byte
	waitCh chan struct{}
	closed bool
	err    error
}

func newHalfPipe() *halfPipe { return &halfPipe{} }

func (h *halfPipe) send(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return io.EOF
	}
	h.buf = append(h.buf, frame)
	if h.waitCh != nil {
		close(h.waitCh)
		h.waitCh = nil
	}
	return nil
}

func (h *halfPipe) recv(ctx context.Context) ([]byte, error) {
	for {
		h.mu.Lock()
		if len(h.buf) > 0 {
			frame := h.buf[0]
			h.buf[0] = nil
			h.buf = h.buf[1:]
			h.mu.Unlock()
			return frame, nil
		}
		if h.closed {
			err := h.err
			h.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		if h.waitCh == nil {
			h.waitCh = make(chan struct{})
		}
		wait := h.waitCh
		h.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *halfPipe) close(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.err = err
	if h.waitCh != nil {
		close(h.waitCh)
		h.waitCh = nil
	}
}

// pipeStream implements Stream entirely in memory: one side's writes
// are the other side's reads. Two pipeStreams (client and server,
// sharing the same pair of halfPipes with directions swapped) make up
// one attempt; see NewPipe.
type pipeStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	method string

	out *halfPipe // frames this side writes
	in  *halfPipe // frames this side reads

	peer *pipeStream // the other endpoint of this pair

	headerCh  chan metadata.MD
	headerErr chan error
	headerSet sync.Once
	trailerMu sync.Mutex
	trailer   metadata.MD

	statusMu sync.Mutex
	status   *StatusResult
}

// NewPipe creates a connected pair of in-memory Streams: (client,
// server). Writes on one are Reads on the other, and SendHeader on
// either side delivers to the *peer's* Header() call — matching the
// real wire, where initial metadata travels to the other endpoint, not
// back to its own sender. Intended for tests and as the reference
// transport implementation satisfying the abstract interfaces in
// transport.go.
func NewPipe(ctx context.Context, method string) (client, server Stream) {
	ctx, cancel := context.WithCancel(ctx)
	c2s := newHalfPipe()
	s2c := newHalfPipe()
	cs := &pipeStream{ctx: ctx, cancel: cancel, method: method, out: c2s, in: s2c, headerCh: make(chan metadata.MD, 1), headerErr: make(chan error, 1)}
	ss := &pipeStream{ctx: ctx, cancel: cancel, method: method, out: s2c, in: c2s, headerCh: make(chan metadata.MD, 1), headerErr: make(chan error, 1)}
	cs.peer = ss
	ss.peer = cs
	return cs, ss
}

func (p *pipeStream) Context() context.Context { return p.ctx }
func (p *pipeStream) Method() string           { return p.method }

// SendHeader delivers md to the peer endpoint's Header() call. Only
// the first call has effect; later calls are no-ops, matching real
// gRPC's "initial metadata sent at most once" rule.
func (p *pipeStream) SendHeader(md metadata.MD) {
	p.peer.headerSet.Do(func() {
		p.peer.headerCh <- md.Copy()
	})
}

func (p *pipeStream) Header() (metadata.MD, error) {
	select {
	case md := <-p.headerCh:
		return md, nil
	case err := <-p.headerErr:
		return metadata.MD{}, err
	case <-p.ctx.Done():
		return metadata.MD{}, p.ctx.Err()
	}
}

func (p *pipeStream) Trailer() metadata.MD {
	p.trailerMu.Lock()
	defer p.trailerMu.Unlock()
	return p.trailer
}

func (p *pipeStream) SetTrailer(md metadata.MD) {
	p.trailerMu.Lock()
	defer p.trailerMu.Unlock()
	p.trailer = metadata.Join(p.trailer, md)
}

func (p *pipeStream) Write(frame []byte, opts *Options) error {
	return p.out.send(frame)
}

func (p *pipeStream) Read() ([]byte, error) {
	return p.in.recv(p.ctx)
}

func (p *pipeStream) Status() *StatusResult {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

// SetStatus delivers the terminal status to the peer endpoint's
// Status() call (matching SendHeader's peer-routing: the status
// travels to the other side, not back to its own sender) and closes
// the read side so a peer blocked in Read observes end-of-stream.
// Called by the server side once a handler completes (mirrors
// transport.ServerTransport WriteStatus in the teacher).
func (p *pipeStream) SetStatus(sr *StatusResult) {
	p.peer.statusMu.Lock()
	p.peer.status = sr
	p.peer.statusMu.Unlock()
	if sr.Trailer.Len() > 0 {
		p.peer.SetTrailer(sr.Trailer)
	}
	p.out.close(nil)
}

func (p *pipeStream) Close(err error) error {
	p.out.close(err)
	p.in.close(err)
	p.cancel()
	return nil
}
