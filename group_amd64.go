// Copyright 2024 The Cockroach Authors
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

//go:build amd64 && !nosimd

package flatset

import (
	"unsafe"

	"github.com/dolthub/swiss/simd"
)

// On amd64 each match is a single SSE2 byte compare (PCMPEQB) followed by
// PMOVMSKB, which yields the 16-bit mask directly.

func (g *group) int8s() *[groupSize]int8 {
	return (*[groupSize]int8)(unsafe.Pointer(g))
}

// matchTag returns the slots whose control byte equals t.
func (g *group) matchTag(t ctrl) bitset {
	return bitset(simd.MatchMetadata(g.int8s(), int8(t)))
}

// matchEmpty returns the slots that have never held a value.
func (g *group) matchEmpty() bitset {
	return bitset(simd.MatchMetadata(g.int8s(), emptyInt8))
}

// matchAvailable returns the empty and removed slots. simd only exposes an
// equality match, so this compares against both values. That equals a test
// of the high bit only because empty and removed are the sole valid control
// bytes with it set.
func (g *group) matchAvailable() bitset {
	m := g.int8s()
	return bitset(simd.MatchMetadata(m, emptyInt8) | simd.MatchMetadata(m, removedInt8))
}
