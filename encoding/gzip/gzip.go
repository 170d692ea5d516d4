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

// Package gzip implements the "gzip" compressor (spec §6 compression
// negotiation) on top of klauspost/compress/gzip rather than the
// standard library's compress/gzip, for the faster encode/decode path
// the rest of this corpus already depends on (see SPEC_FULL.md §12).
package gzip

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/chalvern/grpc-core/encoding"
)

func init() {
	encoding.RegisterCompressor(newCompressor())
}

type compressor struct {
	writerPool sync.Pool
}

func newCompressor() *compressor {
	c := &compressor{}
	c.writerPool.New = func() interface{} {
		return gzip.NewWriter(io.Discard)
	}
	return c
}

func (c *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	gz := c.writerPool.Get().(*gzip.Writer)
	gz.Reset(w)
	return &pooledWriter{Writer: gz, pool: &c.writerPool}, nil
}

type pooledWriter struct {
	*gzip.Writer
	pool *sync.Pool
}

func (w *pooledWriter) Close() error {
	defer w.pool.Put(w.Writer)
	return w.Writer.Close()
}

func (c *compressor) Decompress(r io.Reader, limit int64) (io.Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return encoding.LimitReader(gz, limit), nil
}

func (c *compressor) Name() string {
	return "gzip"
}
