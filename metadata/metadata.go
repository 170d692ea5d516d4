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

// Package metadata defines the ordered key/value container carried by
// every RPC, per spec §3. Keys are case-insensitive ASCII; keys ending
// in "-bin" carry opaque bytes and are exempt from the printable-ASCII
// check applied to everything else.
package metadata

import (
	"fmt"
	"strings"
)

const binHdrSuffix = "-bin"

// entry is one (key, value) pair. Order of entries is preserved and
// duplicate keys are permitted, matching spec §3.
type entry struct {
	key, val string
}

// MD is an ordered multi-map of metadata. The zero value is an empty,
// usable MD. Once handed to a send operation an MD is considered
// immutable by convention; callers that need to keep mutating should
// call Copy first (see spec §3's "deep copies on read" invariant).
type MD struct {
	entries []entry
}

// IsBinary reports whether key carries opaque binary values.
func IsBinary(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), binHdrSuffix)
}

func validate(key, val string) error {
	lower := strings.ToLower(key)
	if IsBinary(lower) {
		return nil
	}
	for i := 0; i < len(val); i++ {
		c := val[i]
		if c < 0x20 || c > 0x7e {
			return fmt.Errorf("metadata: invalid value %q for key %q: contains non-printable-ASCII byte", val, key)
		}
	}
	return nil
}

// New creates an MD from a map, preserving no particular order among
// keys inserted from the same map (Go map iteration is unordered); use
// Append for deterministic ordering.
func New(m map[string]string) MD {
	md := MD{entries: make([]entry, 0, len(m))}
	for k, v := range m {
		md.entries = append(md.entries, entry{key: strings.ToLower(k), val: v})
	}
	return md
}

// Pairs returns an MD formed from the kv pairs, same convention as
// New(map) but order-preserving since kv is a slice. Panics if len(kv)
// is odd.
func Pairs(kv ...string) MD {
	if len(kv)%2 == 1 {
		panic(fmt.Sprintf("metadata: Pairs got the odd number of input pairs for metadata: %d", len(kv)))
	}
	md := MD{entries: make([]entry, 0, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		md.entries = append(md.entries, entry{key: strings.ToLower(kv[i]), val: kv[i+1]})
	}
	return md
}

// Len returns the number of entries in md.
func (md MD) Len() int {
	return len(md.entries)
}

// Append adds a (key, value) pair to md, in place. Returns an error if
// the value fails the ASCII-printable check for a non-binary key.
func (md *MD) Append(key, value string) error {
	key = strings.ToLower(key)
	if err := validate(key, value); err != nil {
		return err
	}
	md.entries = append(md.entries, entry{key: key, val: value})
	return nil
}

// Get returns the first value stored for key, and whether it was found.
func (md MD) Get(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, e := range md.entries {
		if e.key == key {
			return e.val, true
		}
	}
	return "", false
}

// GetAll returns every value stored for key, in insertion order.
func (md MD) GetAll(key string) []string {
	key = strings.ToLower(key)
	var out []string
	for _, e := range md.entries {
		if e.key == key {
			out = append(out, e.val)
		}
	}
	return out
}

// Remove deletes every entry for key, in place.
func (md *MD) Remove(key string) {
	key = strings.ToLower(key)
	out := md.entries[:0]
	for _, e := range md.entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	md.entries = out
}

// Keys returns the distinct keys present in md, in first-seen order.
func (md MD) Keys() []string {
	seen := make(map[string]bool, len(md.entries))
	var keys []string
	for _, e := range md.entries {
		if !seen[e.key] {
			seen[e.key] = true
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Copy returns a deep, independent copy of md. Readers obtaining md
// from a received call MUST use Copy before retaining it past the
// scope that handed it to them (spec §3, §4.9 interceptor rule).
func (md MD) Copy() MD {
	out := MD{entries: make([]entry, len(md.entries))}
	copy(out.entries, md.entries)
	return out
}

// Join concatenates mds in order into a single new MD; duplicate keys
// across inputs are all preserved, per spec §3's merge semantics.
func Join(mds ...MD) MD {
	var out MD
	for _, md := range mds {
		out.entries = append(out.entries, md.entries...)
	}
	return out
}

// Map flattens md into a map of key to the first value for that key.
// Intended for display/debugging; it loses duplicate-key and order
// information and must not be used on the hot path.
func (md MD) Map() map[string]string {
	m := make(map[string]string, len(md.entries))
	for _, e := range md.entries {
		if _, ok := m[e.key]; !ok {
			m[e.key] = e.val
		}
	}
	return m
}
