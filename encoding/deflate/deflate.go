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

// Package deflate implements the "deflate" compressor (spec §4.1,
// §6) on top of klauspost/compress/flate, matching the "identity /
// deflate / gzip" algorithm set spec §8 requires a round trip for.
package deflate

import (
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/chalvern/grpc-core/encoding"
)

func init() {
	encoding.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return &flushCloser{Writer: fw}, nil
}

// flushCloser ensures Close always flushes the final block (spec §4.1:
// "Deflate always flushes with 'finish'").
type flushCloser struct {
	*flate.Writer
}

func (f *flushCloser) Close() error {
	return f.Writer.Close()
}

func (compressor) Decompress(r io.Reader, limit int64) (io.Reader, error) {
	fr := flate.NewReader(r)
	return encoding.LimitReader(fr, limit), nil
}

func (compressor) Name() string {
	return "deflate"
}
