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

package grpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalvern/grpc-core/codes"
)

func TestParseDuration(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name    string
		in      *string
		want    time.Duration
		wantNil bool
		wantErr bool
	}{
		{name: "nil input", in: nil, wantNil: true},
		{name: "whole seconds", in: str("3s"), want: 3 * time.Second},
		{name: "fractional seconds", in: str("0.5s"), want: 500 * time.Millisecond},
		{name: "nanosecond precision", in: str("1.000000001s"), want: time.Second + time.Nanosecond},
		{name: "missing trailing s", in: str("3"), wantErr: true},
		{name: "too many dots", in: str("1.2.3s"), wantErr: true},
		{name: "no digits at all", in: str("s"), wantErr: true},
		{name: "excess fractional digits", in: str("1.1234567890s"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.want, *d)
		})
	}
}

func TestParseServiceConfigBasicMethodConfig(t *testing.T) {
	js := `{
		"methodConfig": [{
			"name": [{"service": "echo.Echo", "method": "Unary"}],
			"waitForReady": true,
			"timeout": "2s",
			"maxRequestMessageBytes": 1024,
			"maxResponseMessageBytes": 2048
		}]
	}`
	sc, err := parseServiceConfig(js)
	require.NoError(t, err)

	mc, ok := sc.Methods["/echo.Echo/Unary"]
	require.True(t, ok)
	require.NotNil(t, mc.WaitForReady)
	assert.True(t, *mc.WaitForReady)
	require.NotNil(t, mc.Timeout)
	assert.Equal(t, 2*time.Second, *mc.Timeout)
	require.NotNil(t, mc.MaxRequestMessageBytes)
	assert.Equal(t, 1024, *mc.MaxRequestMessageBytes)
	require.NotNil(t, mc.MaxResponseMessageBytes)
	assert.Equal(t, 2048, *mc.MaxResponseMessageBytes)
}

func TestParseServiceConfigServiceWideEntryAppliesToWholeService(t *testing.T) {
	js := `{
		"methodConfig": [{
			"name": [{"service": "echo.Echo"}],
			"timeout": "1s"
		}]
	}`
	sc, err := parseServiceConfig(js)
	require.NoError(t, err)

	mc, ok := sc.Methods["/echo.Echo/"]
	require.True(t, ok)
	require.NotNil(t, mc.Timeout)
	assert.Equal(t, time.Second, *mc.Timeout)
}

func TestParseServiceConfigRetryPolicy(t *testing.T) {
	js := `{
		"methodConfig": [{
			"name": [{"service": "echo.Echo", "method": "Unary"}],
			"retryPolicy": {
				"maxAttempts": 4,
				"initialBackoff": "0.1s",
				"maxBackoff": "1s",
				"backoffMultiplier": 2.0,
				"retryableStatusCodes": ["UNAVAILABLE", "deadline_exceeded"]
			}
		}]
	}`
	sc, err := parseServiceConfig(js)
	require.NoError(t, err)

	mc := sc.Methods["/echo.Echo/Unary"]
	require.NotNil(t, mc.RetryPolicy)
	assert.Equal(t, 4, mc.RetryPolicy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, mc.RetryPolicy.InitialBackoff)
	assert.Equal(t, time.Second, mc.RetryPolicy.MaxBackoff)
	assert.Equal(t, 2.0, mc.RetryPolicy.Multiplier)
	assert.True(t, mc.RetryPolicy.NonFatalCodes[codes.Unavailable])
	assert.True(t, mc.RetryPolicy.NonFatalCodes[codes.DeadlineExceeded])
}

func TestParseServiceConfigMalformedDurationPropagatesError(t *testing.T) {
	js := `{
		"methodConfig": [{
			"name": [{"service": "echo.Echo"}],
			"timeout": "not-a-duration"
		}]
	}`
	_, err := parseServiceConfig(js)
	assert.Error(t, err)
}

func TestParseServiceConfigInvalidJSON(t *testing.T) {
	_, err := parseServiceConfig("{not json")
	assert.Error(t, err)
}

func TestParseServiceConfigEmptyMethodConfigYieldsEmptyMap(t *testing.T) {
	sc, err := parseServiceConfig(`{}`)
	require.NoError(t, err)
	assert.Empty(t, sc.Methods)
}

func TestStatusCodeSetUnknownNamesAreSkipped(t *testing.T) {
	set := statusCodeSet([]string{"UNAVAILABLE", "NOT_A_REAL_CODE"})
	assert.True(t, set[codes.Unavailable])
	assert.Len(t, set, 1)
}

func TestStatusCodeSetEmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, statusCodeSet(nil))
}

func TestGetMaxSize(t *testing.T) {
	mc := newInt(10)
	dopt := newInt(20)

	assert.Equal(t, 10, *getMaxSize(mc, dopt, 99))
	assert.Equal(t, 10, *getMaxSize(mc, nil, 99))
	assert.Equal(t, 20, *getMaxSize(nil, dopt, 99))
	assert.Equal(t, 99, *getMaxSize(nil, nil, 99))
}
