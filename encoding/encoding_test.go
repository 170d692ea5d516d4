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

package encoding

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitReaderDisabledWhenLimitIsNonPositive(t *testing.T) {
	r := LimitReader(strings.NewReader("hello"), 0)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestLimitReaderFailsOnceLimitExceeded(t *testing.T) {
	r := LimitReader(strings.NewReader(strings.Repeat("a", 100)), 10)
	_, err := io.ReadAll(r)
	assert.Equal(t, ErrDecompressionLimitExceeded, err)
}

func TestLimitReaderAllowsExactlyTheLimit(t *testing.T) {
	r := LimitReader(strings.NewReader(strings.Repeat("a", 10)), 10)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, out, 10)
}

type fakeCodec struct{ name string }

func (fakeCodec) Marshal(v interface{}) ([]byte, error)   { return nil, nil }
func (fakeCodec) Unmarshal(data []byte, v interface{}) error { return nil }
func (c fakeCodec) Name() string                          { return c.name }

func TestRegisterCodecLowercasesName(t *testing.T) {
	RegisterCodec(fakeCodec{name: "TestUpper"})
	assert.NotNil(t, GetCodec("testupper"))
	assert.Nil(t, GetCodec("TestUpper"))
}

func TestRegisterCodecPanicsOnNilOrEmptyName(t *testing.T) {
	assert.Panics(t, func() { RegisterCodec(nil) })
	assert.Panics(t, func() { RegisterCodec(fakeCodec{name: ""}) })
}

func TestGetCompressorUnknownNameReturnsNil(t *testing.T) {
	assert.Nil(t, GetCompressor("no-such-compressor"))
}
