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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/internal/grpclog"
	"github.com/chalvern/grpc-core/internal/retry"
)

const maxInt = int(^uint(0) >> 1)

// MethodConfig holds the per-method defaults a service owner can
// publish out-of-band (spec §4.2's options record is the per-call
// override of these same keys: timeout, waitForReady,
// maxRequestMessageBytes, maxResponseMessageBytes, plus this spec's
// retry/hedging policy, §4.7).
type MethodConfig struct {
	WaitForReady *bool
	Timeout      *time.Duration

	// MaxRequestMessageBytes/MaxResponseMessageBytes are the maximum
	// allowed uncompressed payload size for an individual message in
	// each direction (spec §4.1).
	MaxRequestMessageBytes  *int
	MaxResponseMessageBytes *int

	RetryPolicy   *retry.RetryPolicy
	HedgingPolicy *retry.HedgingPolicy
}

// ServiceConfig is provided by the service owner and contains
// parameters for how clients connecting to the service should behave.
type ServiceConfig struct {
	Methods map[string]MethodConfig
}

func parseDuration(s *string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	if !strings.HasSuffix(*s, "s") {
		return nil, fmt.Errorf("malformed duration %q", *s)
	}
	ss := strings.SplitN((*s)[:len(*s)-1], ".", 3)
	if len(ss) > 2 {
		return nil, fmt.Errorf("malformed duration %q", *s)
	}
	// hasDigits is set if either the whole or fractional part of the
	// number is present, since both are optional but one is required.
	hasDigits := false
	var d time.Duration
	if len(ss[0]) > 0 {
		i, err := strconv.ParseInt(ss[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed duration %q: %v", *s, err)
		}
		d = time.Duration(i) * time.Second
		hasDigits = true
	}
	if len(ss) == 2 && len(ss[1]) > 0 {
		if len(ss[1]) > 9 {
			return nil, fmt.Errorf("malformed duration %q", *s)
		}
		f, err := strconv.ParseInt(ss[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed duration %q: %v", *s, err)
		}
		for i := 9; i > len(ss[1]); i-- {
			f *= 10
		}
		d += time.Duration(f)
		hasDigits = true
	}
	if !hasDigits {
		return nil, fmt.Errorf("malformed duration %q", *s)
	}

	return &d, nil
}

type jsonName struct {
	Service *string
	Method  *string
}

func (j jsonName) generatePath() (string, bool) {
	if j.Service == nil {
		return "", false
	}
	res := "/" + *j.Service + "/"
	if j.Method != nil {
		res += *j.Method
	}
	return res, true
}

type jsonRetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       *string
	MaxBackoff           *string
	BackoffMultiplier    float64
	RetryableStatusCodes []string
}

type jsonHedgingPolicy struct {
	MaxAttempts          int
	HedgingDelay         *string
	NonFatalStatusCodes  []string
}

type jsonMC struct {
	Name                    *[]jsonName
	WaitForReady            *bool
	Timeout                 *string
	MaxRequestMessageBytes  *int64
	MaxResponseMessageBytes *int64
	RetryPolicy             *jsonRetryPolicy
	HedgingPolicy           *jsonHedgingPolicy
}

type jsonSC struct {
	MethodConfig *[]jsonMC
}

func parseServiceConfig(js string) (ServiceConfig, error) {
	var rsc jsonSC
	err := json.Unmarshal([]byte(js), &rsc)
	if err != nil {
		grpclog.Warningf("grpc: parseServiceConfig error unmarshaling %s due to %v", js, err)
		return ServiceConfig{}, err
	}
	sc := ServiceConfig{
		Methods: make(map[string]MethodConfig),
	}
	if rsc.MethodConfig == nil {
		return sc, nil
	}

	for _, m := range *rsc.MethodConfig {
		if m.Name == nil {
			continue
		}
		d, err := parseDuration(m.Timeout)
		if err != nil {
			grpclog.Warningf("grpc: parseServiceConfig error unmarshaling %s due to %v", js, err)
			return ServiceConfig{}, err
		}

		mc := MethodConfig{
			WaitForReady: m.WaitForReady,
			Timeout:      d,
		}
		if m.MaxRequestMessageBytes != nil {
			if *m.MaxRequestMessageBytes > int64(maxInt) {
				mc.MaxRequestMessageBytes = newInt(maxInt)
			} else {
				mc.MaxRequestMessageBytes = newInt(int(*m.MaxRequestMessageBytes))
			}
		}
		if m.MaxResponseMessageBytes != nil {
			if *m.MaxResponseMessageBytes > int64(maxInt) {
				mc.MaxResponseMessageBytes = newInt(maxInt)
			} else {
				mc.MaxResponseMessageBytes = newInt(int(*m.MaxResponseMessageBytes))
			}
		}
		if m.RetryPolicy != nil {
			rp, err := m.RetryPolicy.toPolicy()
			if err != nil {
				grpclog.Warningf("grpc: parseServiceConfig error unmarshaling %s due to %v", js, err)
				return ServiceConfig{}, err
			}
			mc.RetryPolicy = rp
		}
		if m.HedgingPolicy != nil {
			hp, err := m.HedgingPolicy.toPolicy()
			if err != nil {
				grpclog.Warningf("grpc: parseServiceConfig error unmarshaling %s due to %v", js, err)
				return ServiceConfig{}, err
			}
			mc.HedgingPolicy = hp
		}
		for _, n := range *m.Name {
			if path, valid := n.generatePath(); valid {
				sc.Methods[path] = mc
			}
		}
	}

	return sc, nil
}

func (j *jsonRetryPolicy) toPolicy() (*retry.RetryPolicy, error) {
	initial, err := parseDuration(j.InitialBackoff)
	if err != nil {
		return nil, err
	}
	max, err := parseDuration(j.MaxBackoff)
	if err != nil {
		return nil, err
	}
	rp := &retry.RetryPolicy{
		Policy: retry.Policy{
			MaxAttempts:   j.MaxAttempts,
			NonFatalCodes: statusCodeSet(j.RetryableStatusCodes),
		},
		Multiplier: j.BackoffMultiplier,
	}
	if initial != nil {
		rp.InitialBackoff = *initial
	}
	if max != nil {
		rp.MaxBackoff = *max
	}
	return rp, nil
}

func (j *jsonHedgingPolicy) toPolicy() (*retry.HedgingPolicy, error) {
	delay, err := parseDuration(j.HedgingDelay)
	if err != nil {
		return nil, err
	}
	hp := &retry.HedgingPolicy{
		Policy: retry.Policy{
			MaxAttempts:   j.MaxAttempts,
			NonFatalCodes: statusCodeSet(j.NonFatalStatusCodes),
		},
	}
	if delay != nil {
		hp.HedgingDelay = *delay
	}
	return hp, nil
}

func statusCodeSet(names []string) map[codes.Code]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[codes.Code]bool, len(names))
	for _, n := range names {
		if c, ok := codeByName[strings.ToUpper(n)]; ok {
			set[c] = true
		}
	}
	return set
}

var codeByName = map[string]codes.Code{
	"CANCELLED":           codes.Canceled,
	"UNKNOWN":             codes.Unknown,
	"INVALID_ARGUMENT":    codes.InvalidArgument,
	"DEADLINE_EXCEEDED":   codes.DeadlineExceeded,
	"NOT_FOUND":           codes.NotFound,
	"ALREADY_EXISTS":      codes.AlreadyExists,
	"PERMISSION_DENIED":   codes.PermissionDenied,
	"RESOURCE_EXHAUSTED":  codes.ResourceExhausted,
	"FAILED_PRECONDITION": codes.FailedPrecondition,
	"ABORTED":             codes.Aborted,
	"OUT_OF_RANGE":        codes.OutOfRange,
	"UNIMPLEMENTED":       codes.Unimplemented,
	"INTERNAL":            codes.Internal,
	"UNAVAILABLE":         codes.Unavailable,
	"DATA_LOSS":           codes.DataLoss,
	"UNAUTHENTICATED":     codes.Unauthenticated,
}

func min(a, b *int) *int {
	if *a < *b {
		return a
	}
	return b
}

func getMaxSize(mcMax, doptMax *int, defaultVal int) *int {
	if mcMax == nil && doptMax == nil {
		return &defaultVal
	}
	if mcMax != nil && doptMax != nil {
		return min(mcMax, doptMax)
	}
	if mcMax != nil {
		return mcMax
	}
	return doptMax
}

func newInt(b int) *int {
	return &b
}
