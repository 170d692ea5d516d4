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

// Package encoding defines the interface for the compressor and codec, and
// functions to register and retrieve compressors and codecs (spec §4.1).
package encoding

import (
	"io"
	"strings"
)

// Identity specifies the optional encoding for uncompressed streams. It
// is intended for internal use only.
const Identity = "identity"

// Compressor is used for compressing and decompressing when sending or
// receiving messages.
type Compressor interface {
	// Compress writes the data written to wc to w after compressing it.
	// If an error occurs while initializing the compressor, that error
	// is returned instead.
	Compress(w io.Writer) (io.WriteCloser, error)
	// Decompress reads data from r, decompresses it, and provides the
	// uncompressed data via the returned io.Reader. If an error occurs
	// while initializing the decompressor, that error is returned
	// instead. limit bounds the number of decompressed bytes the
	// returned reader will yield before failing with
	// ErrDecompressionLimitExceeded (spec §4.1); limit <= 0 means
	// unbounded.
	Decompress(r io.Reader, limit int64) (io.Reader, error)
	// Name is the name of the compression codec and is used to set the
	// "grpc-encoding" header. The result must be static.
	Name() string
}

var registeredCompressor = make(map[string]Compressor)

// RegisterCompressor registers the compressor with this core by its
// name. Like the teacher's RegisterCompressor, this must only be
// called during initialization (e.g. an init func); it is not
// thread-safe, and the last registration for a given name wins.
func RegisterCompressor(c Compressor) {
	registeredCompressor[c.Name()] = c
}

// GetCompressor returns the Compressor registered for name, or nil.
func GetCompressor(name string) Compressor {
	return registeredCompressor[name]
}

// Codec defines the interface used to encode and decode messages.
// Implementations must be thread safe.
type Codec interface {
	// Marshal returns the wire format of v.
	Marshal(v interface{}) ([]byte, error)
	// Unmarshal parses the wire format into v.
	Unmarshal(data []byte, v interface{}) error
	// Name returns the name of the Codec implementation, used as the
	// content-subtype in the RPC's content type.
	Name() string
}

var registeredCodecs = make(map[string]Codec)

// RegisterCodec registers codec for use with this core, keyed by the
// lowercased result of codec.Name(). Panics on a nil codec or an empty
// name, matching the teacher's registration contract.
func RegisterCodec(codec Codec) {
	if codec == nil {
		panic("cannot register a nil Codec")
	}
	contentSubtype := strings.ToLower(codec.Name())
	if contentSubtype == "" {
		panic("cannot register Codec with empty string result for Name()")
	}
	registeredCodecs[contentSubtype] = codec
}

// GetCodec returns the Codec registered for contentSubtype (expected to
// already be lowercase), or nil.
func GetCodec(contentSubtype string) Codec {
	return registeredCodecs[contentSubtype]
}

// ErrDecompressionLimitExceeded is returned once a Compressor's
// Decompress reader would cross the caller-supplied limit (spec §4.1,
// §7 "Resource exceeded").
var ErrDecompressionLimitExceeded = decompressionLimitError{}

type decompressionLimitError struct{}

func (decompressionLimitError) Error() string {
	return "encoding: decompressed message exceeds the configured DecompressionLimit"
}

// LimitReader wraps r so that reading more than limit bytes total
// returns ErrDecompressionLimitExceeded instead of silently truncating
// (unlike io.LimitReader, which returns io.EOF). A limit <= 0 disables
// the check and LimitReader returns r unchanged.
func LimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &limitedReader{r: r, remaining: limit}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrDecompressionLimitExceeded
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrDecompressionLimitExceeded
	}
	return n, err
}
