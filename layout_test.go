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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := makeLayout[int64](4)
	require.EqualValues(t, 64, l.slots())
	require.EqualValues(t, 64+64*8, l.size())

	// The value region starts right after the metadata region.
	require.EqualValues(t, 64, l.slotOffset(0, 0))
	require.EqualValues(t, 0, l.ctrlOffset(0, 0))

	for g := uintptr(0); g < l.groupCount; g++ {
		for i := uintptr(0); i < groupSize; i++ {
			idx := l.index(g, i)
			require.EqualValues(t, idx, l.ctrlOffset(g, i))
			require.EqualValues(t, l.slots()+idx*8, l.slotOffset(g, i))
		}
	}

	// The slots of a group are contiguous and groups follow one another.
	require.EqualValues(t, 8, l.slotOffset(1, 1)-l.slotOffset(1, 0))
	require.EqualValues(t, groupSize*8, l.slotOffset(2, 0)-l.slotOffset(1, 0))
}

func TestLayoutValueSize(t *testing.T) {
	l := makeLayout[data](2)
	size := unsafe.Sizeof(data{})
	require.Equal(t, size, l.valueSize)
	require.Equal(t, 2*groupSize+2*groupSize*size, l.size())
	require.Equal(t, groupSize*(2+size)+3*size, l.slotOffset(1, 3))

	l = makeLayout[struct{}](1)
	require.EqualValues(t, groupSize, l.size())
	require.EqualValues(t, groupSize, l.slotOffset(0, 15))
}
