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

package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/encoding"
	_ "github.com/chalvern/grpc-core/encoding/gzip"
	"github.com/chalvern/grpc-core/status"
)

func TestFrameAndReadFrameRoundTripIdentity(t *testing.T) {
	payload := []byte("hello, gRPC core")
	frame, err := Frame(payload, false, nil)
	require.NoError(t, err)

	msg, err := ReadFrame(bytes.NewReader(frame), 0)
	require.NoError(t, err)
	assert.False(t, msg.Compressed)
	assert.Equal(t, payload, msg.Data)
}

func TestFrameCompressesWithComp(t *testing.T) {
	comp := encoding.GetCompressor("gzip")
	require.NotNil(t, comp)

	payload := []byte(strings.Repeat("a", 1024))
	frame, err := Frame(payload, true, comp)
	require.NoError(t, err)

	msg, err := ReadFrame(bytes.NewReader(frame), 0)
	require.NoError(t, err)
	assert.True(t, msg.Compressed)
	assert.Less(t, len(msg.Data), len(payload))

	out, err := Inflate(msg, comp, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestReadFrameEnforcesMaxRecvBytes(t *testing.T) {
	frame, err := Frame([]byte("0123456789"), false, nil)
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(frame), 5)
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestInflateWithoutCompressorIsProtocolViolation(t *testing.T) {
	msg := &Message{Data: []byte("garbage"), Compressed: true}
	_, err := Inflate(msg, nil, 0)
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.Internal, st.Code())
}

func TestInflateEnforcesDecompressionLimit(t *testing.T) {
	comp := encoding.GetCompressor("gzip")
	require.NotNil(t, comp)

	payload := []byte(strings.Repeat("b", 4096))
	frame, err := Frame(payload, true, comp)
	require.NoError(t, err)
	msg, err := ReadFrame(bytes.NewReader(frame), 0)
	require.NoError(t, err)

	_, err = Inflate(msg, comp, 10)
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestDecodeRejectsCompressedFlagWithIdentityEncoding(t *testing.T) {
	comp := encoding.GetCompressor("gzip")
	require.NotNil(t, comp)
	frame, err := Frame([]byte("payload"), true, comp)
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader(frame), nil, 0, 0)
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.Internal, st.Code())
}

func TestDecodeEnforcesMaxRecvBytesOnUncompressedSize(t *testing.T) {
	frame, err := Frame([]byte("0123456789"), false, nil)
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader(frame), nil, 5, 0)
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestDecodeRoundTripsCompressedPayload(t *testing.T) {
	comp := encoding.GetCompressor("gzip")
	require.NotNil(t, comp)
	payload := []byte(strings.Repeat("c", 256))
	frame, err := Frame(payload, true, comp)
	require.NoError(t, err)

	out, err := Decode(bytes.NewReader(frame), comp, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}
