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

// Package proto installs the "proto" Codec (spec §4.1's default
// message codec) into the encoding registry via an init side effect,
// the way the teacher's encoding/proto package does. It wraps
// google.golang.org/protobuf rather than golang/protobuf directly,
// since the latter is now itself a thin shim over the former.
package proto

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/chalvern/grpc-core/encoding"
)

const name = "proto"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec marshals/unmarshals proto.Message values. Passing a value that
// doesn't implement proto.Message is a programmer error in generated
// code, not a wire-level failure, so it returns a plain error rather
// than a Status.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	vv, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("proto: failed to marshal, message is %T, want proto.Message", v)
	}
	return proto.Marshal(vv)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	vv, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("proto: failed to unmarshal, message is %T, want proto.Message", v)
	}
	return proto.Unmarshal(data, vv)
}

func (codec) Name() string { return name }
