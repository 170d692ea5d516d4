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

package gzip

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalvern/grpc-core/encoding"
)

func TestGzipRegistersItselfByName(t *testing.T) {
	c := encoding.GetCompressor("gzip")
	require.NotNil(t, c)
	assert.Equal(t, "gzip", c.Name())
}

func TestGzipCompressDecompressRoundTrip(t *testing.T) {
	c := encoding.GetCompressor("gzip")
	require.NotNil(t, c)

	payload := []byte(strings.Repeat("roundtrip", 200))
	var buf bytes.Buffer
	wc, err := c.Compress(&buf)
	require.NoError(t, err)
	_, err = wc.Write(payload)
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	assert.Less(t, buf.Len(), len(payload))

	r, err := c.Decompress(&buf, 0)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestGzipWriterPoolIsReusedAcrossCompressCalls(t *testing.T) {
	c := newCompressor()

	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		wc, err := c.Compress(&buf)
		require.NoError(t, err)
		_, err = wc.Write([]byte("hello"))
		require.NoError(t, err)
		require.NoError(t, wc.Close())

		r, err := c.Decompress(&buf, 0)
		require.NoError(t, err)
		out, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), out)
	}
}

func TestGzipDecompressEnforcesLimit(t *testing.T) {
	c := encoding.GetCompressor("gzip")
	require.NotNil(t, c)

	payload := []byte(strings.Repeat("x", 4096))
	var buf bytes.Buffer
	wc, err := c.Compress(&buf)
	require.NoError(t, err)
	_, err = wc.Write(payload)
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	r, err := c.Decompress(&buf, 10)
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.Equal(t, encoding.ErrDecompressionLimitExceeded, err)
}
