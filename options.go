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

import "github.com/cockroachdb/errors"

// option provide an interface to do work on Set while it is being created.
type option[V Hashable[V]] interface {
	apply(s *Set[V])
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Set. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots and
// controls be freed then Set.Close must be called in order to ensure
// FreeSlots and FreeControls are called.
type Allocator[V any] interface {
	// AllocSlots should return a slice equivalent to make([]V, n).
	AllocSlots(n int) []V

	// AllocControls should return a slice equivalent to make([]uint8, n).
	// The contents do not need to be initialized.
	AllocControls(n int) []uint8

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots. Values
	// moved out by a rehash are still present in the slice.
	FreeSlots(v []V)

	// FreeControls can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocControls.
	FreeControls(v []uint8)
}

type defaultAllocator[V any] struct{}

func (defaultAllocator[V]) AllocSlots(n int) []V {
	return make([]V, n)
}

func (defaultAllocator[V]) AllocControls(n int) []uint8 {
	return make([]uint8, n)
}

func (defaultAllocator[V]) FreeSlots(v []V) {
}

func (defaultAllocator[V]) FreeControls(v []uint8) {
}

type allocatorOption[V Hashable[V]] struct {
	allocator Allocator[V]
}

func (op allocatorOption[V]) apply(s *Set[V]) {
	s.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Set[V].
func WithAllocator[V Hashable[V]](allocator Allocator[V]) option[V] {
	return allocatorOption[V]{allocator}
}

type growthFactorOption[V Hashable[V]] struct {
	factor int
}

func (op growthFactorOption[V]) apply(s *Set[V]) {
	if op.factor < 2 || op.factor&(op.factor-1) != 0 {
		panic(errors.Newf("flatset: growth factor must be a power of two >= 2, got %d", op.factor))
	}
	s.growthFactor = uintptr(op.factor)
}

// WithGrowthFactor is an option to specify the multiplier applied to the
// number of groups when a Set[V] grows. The default is 2. The factor must be
// a power of two so that the group count remains one.
func WithGrowthFactor[V Hashable[V]](factor int) option[V] {
	return growthFactorOption[V]{factor}
}
