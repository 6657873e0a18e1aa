// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package selector implements the round-robin selection primitives used to
// pick an upstream URL or a replacement token from an ordered list.
package selector

import "sync/atomic"

// RoundRobin is an atomic counter yielding an index modulo a slice length.
// Each Select is one atomic add, so concurrent callers get distinct indices
// but may use them in any order; no further ordering is enforced.
type RoundRobin struct {
	counter atomic.Uint64
}

// Select returns items[i] for the next i in round-robin order, or the zero
// value and false if items is empty.
func Select[T any](r *RoundRobin, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	i := r.counter.Add(1) - 1
	return items[int(i)%len(items)], true
}

// Reset zeroes the counter.
func (r *RoundRobin) Reset() {
	r.counter.Store(0)
}
