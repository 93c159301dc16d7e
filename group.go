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

package flatset

import (
	"math/bits"
	"strings"
)

const (
	groupSize = 16

	ctrlEmpty   ctrl = 0b11111111
	ctrlRemoved ctrl = 0b10000000

	// The same bit patterns as the int8 values the vector compare expects.
	emptyInt8   int8 = -1
	removedInt8 int8 = -128

	// tagShift discards the low 57 bits of a hash. The remaining 7 bits form
	// the tag stored in a full control byte. Group indexes are taken from the
	// low bits, so growing the group count never changes a value's tag.
	tagShift = 57
)

// Each slot in the set has a control byte which can have one of three
// states: empty, removed and full. They have the following bit patterns:
//
//	  empty: 1 1 1 1 1 1 1 1
//	removed: 1 0 0 0 0 0 0 0
//	   full: 0 t t t t t t t  // t represents the tag bits of the hash
//
// Empty and removed both have the high bit set which makes them available
// for insertion, but only empty terminates a lookup.
type ctrl uint8

// tag extracts the 7 high bits of h as a full control byte.
func tag(h uint64) ctrl {
	return ctrl(h >> tagShift)
}

// groupIndex returns the first group probed for h. mask is groupCount-1,
// which works because groupCount is a power of two.
func groupIndex(h uint64, mask uintptr) uintptr {
	return uintptr(h & uint64(mask))
}

// group is the run of control bytes for groupSize consecutive slots. The
// match methods (see group_amd64.go and group_generic.go) compare the whole
// group at once and return one bit per slot.
type group [groupSize]ctrl

// matchFull returns the slots holding a live value. Both empty and removed
// have the high bit set, so full is exactly the complement of available.
func (g *group) matchFull() bitset {
	return ^g.matchAvailable()
}

// bitset has bit i set when slot i of a group matched.
type bitset uint16

// next returns the index of the lowest matching slot.
func (b bitset) next() uintptr {
	return uintptr(bits.TrailingZeros16(uint16(b)))
}

func (b bitset) clear(i uintptr) bitset {
	return b &^ (1 << i)
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(groupSize)
	for i := 0; i < groupSize; i++ {
		if b&(1<<i) != 0 {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}
