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

import "unsafe"

// layout describes the storage of a set as if it were one allocation: the
// control bytes of every group come first, followed by the value slots in
// group-major, slot-minor order. The controls and slots are held in two
// slices (a Go allocation cannot mix pointer-free bytes with values the GC
// has to scan), but indexes into both follow this layout so that the slots
// of a group are contiguous.
type layout struct {
	groupCount uintptr
	valueSize  uintptr
}

func makeLayout[V any](groupCount uintptr) layout {
	var v V
	return layout{
		groupCount: groupCount,
		valueSize:  unsafe.Sizeof(v),
	}
}

// slots is the total number of slots (and control bytes).
func (l layout) slots() uintptr {
	return l.groupCount * groupSize
}

// index returns the position of slot i of group g in the ctrls and slots
// slices.
func (l layout) index(g, i uintptr) uintptr {
	return g*groupSize + i
}

// ctrlOffset returns the byte offset of the control byte for slot i of
// group g.
func (l layout) ctrlOffset(g, i uintptr) uintptr {
	return l.index(g, i)
}

// slotOffset returns the byte offset of the value for slot i of group g:
// the size of the metadata region plus the group-major, slot-minor position
// of the value.
func (l layout) slotOffset(g, i uintptr) uintptr {
	return groupSize*(l.groupCount+g*l.valueSize) + l.valueSize*i
}

// size returns the number of bytes used by the controls and the slots.
func (l layout) size() uintptr {
	return l.slotOffset(l.groupCount, 0)
}
