/*
 *
 * Copyright 2018 gRPC authors.
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

// retry_executor.go implements spec §4.7.2's sequential retry mode:
// the teacher's call.go carried only the pre-retry "TODO: implement
// retries in clientStream" loop (a bare firstAttempt/Unprocessed
// special case). This runs full sequential attempts with backoff,
// server pushback, and throttle gating.
package grpc

import (
	"context"
	"math/rand"
	"time"

	"github.com/chalvern/grpc-core/codes"
	"github.com/chalvern/grpc-core/internal/retry"
	"github.com/chalvern/grpc-core/metadata"
	"github.com/chalvern/grpc-core/status"
)

// sentFrame is one item replayed through the retry/hedging executor's
// retry.BroadcastBuffer: an outbound message plus whether it was the
// stream's last (spec §4.7: "producer task that plays the request's
// outbound message stream once").
type sentFrame struct {
	msg  interface{}
	last bool
}

// newAttemptFunc constructs the Nth attempt (1-based). previousAttempts
// is attempt-1, carried in the grpc-previous-rpc-attempts header for
// attempts after the first (spec §4.7.3).
type newAttemptFunc func(ctx context.Context, previousAttempts int) (*StreamExecutor, error)

// AttemptOutcome is one attempt's terminal result, as observed by a
// retry/hedging supervisor.
type AttemptOutcome struct {
	Exec    *StreamExecutor
	Status  *status.Status
	Trailer metadata.MD
}

// RetryExecutor runs spec §4.7.2: attempts are sequential. On a failed
// attempt whose code is non-fatal and whose throttle permits another
// attempt, it backs off (policy schedule, jittered, or server
// pushback) before starting the next attempt.
type RetryExecutor struct {
	policy     *retry.RetryPolicy
	throttle   *retry.Throttle
	newAttempt newAttemptFunc
}

// NewRetryExecutor builds a sequential retry supervisor. throttle may
// be nil to disable throttle gating (the caller accepts unlimited
// retries up to policy.MaxAttempts).
func NewRetryExecutor(policy *retry.RetryPolicy, throttle *retry.Throttle, newAttempt newAttemptFunc) *RetryExecutor {
	return &RetryExecutor{policy: policy, throttle: throttle, newAttempt: newAttempt}
}

// Run drives attempts against buf (the shared broadcast of the
// recorded outbound message stream, spec §4.7) until one succeeds,
// hits a fatal code, exhausts the policy, is refused by the throttle,
// or ctx ends. It returns the attempt whose outcome should be
// delivered to the caller (spec §9(b): this includes the last unusable
// attempt rather than discarding it).
func (r *RetryExecutor) Run(ctx context.Context, buf *retry.BroadcastBuffer[sentFrame]) (*AttemptOutcome, error) {
	var last *AttemptOutcome
	for attempt := 1; r.policy.MaxAttempts <= 0 || attempt <= r.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return last, status.FromContextError(ctx.Err())
		default:
		}

		exec, err := r.newAttempt(ctx, attempt-1)
		if err != nil {
			return last, err
		}

		outcome := runAttempt(ctx, exec, buf)
		last = outcome

		if outcome.Status.Code() == codes.OK {
			if r.throttle != nil {
				r.throttle.RecordSuccess()
			}
			return outcome, nil
		}

		pb, hasPushback := retry.ParsePushback(firstOf(outcome.Trailer, "grpc-retry-pushback-ms"))
		if hasPushback && pb.StopRetrying {
			return outcome, nil
		}
		if !r.policy.IsNonFatal(outcome.Status.Code()) {
			return outcome, nil
		}
		if r.throttle != nil {
			r.throttle.RecordFailure()
			if !r.throttle.IsRetryPermitted() {
				return outcome, nil
			}
		}

		delay := r.policy.Backoff(attempt)
		if hasPushback {
			delay = pb.Delay
		}
		if delay > 0 {
			delay = jitter(delay)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return outcome, status.FromContextError(ctx.Err())
			}
		}
	}
	return last, nil
}

// runAttempt subscribes its own Consumer to buf and replays every frame
// produced so far (and any produced while this attempt is still
// reading) into exec, then waits for its terminal status. Each attempt
// gets an independent Consumer, so a hedge started after the producer
// has already advanced still sees every frame from the beginning (spec
// §4.7: "each attempt constructs a replayable request whose producer
// reads from the broadcast stream").
func runAttempt(ctx context.Context, exec *StreamExecutor, buf *retry.BroadcastBuffer[sentFrame]) *AttemptOutcome {
	consumer := buf.NewConsumer()
	var sendErr error
	for {
		f, ok, err := consumer.Next(ctx)
		if err != nil {
			sendErr = err
			break
		}
		if !ok {
			break
		}
		if err := exec.SendMessage(f.msg, f.last); err != nil {
			sendErr = err
			break
		}
	}
	if sendErr == nil {
		sendErr = exec.CloseSend()
	}
	st, trailer, err := exec.ReceiveStatus(ctx)
	if sendErr != nil && (err != nil || st == nil) {
		return &AttemptOutcome{Exec: exec, Status: status.Convert(sendErr), Trailer: trailer}
	}
	if st == nil {
		st = status.Convert(err)
	}
	return &AttemptOutcome{Exec: exec, Status: st, Trailer: trailer}
}

func firstOf(md metadata.MD, key string) string {
	v, _ := md.Get(key)
	return v
}

// jitter returns a uniformly random duration in [0, d], per spec
// §4.7.2: "jittered uniformly in [0, computed]".
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
