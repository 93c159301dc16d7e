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

// Package flatset is a Go implementation of a flat, grouped hash set in the
// style of Swiss Tables (https://abseil.io/about/design/swisstables).
//
// # Design
//
// A Set stores its values in open-addressed slots that are divided into
// groups of 16. Every slot has a one byte "control byte" held in a separate
// metadata region. A control byte is either empty (never used since the last
// rehash), removed (a tombstone left by Erase) or full, in which case its low
// 7 bits hold the top 7 bits of the value's hash. Looking up a value
// compares the whole group of 16 control bytes against the value's tag in a
// single vector instruction (SSE2 on amd64, a scalar loop elsewhere) so that
// the equality function is only invoked for slots that are very likely to
// match.
//
// The first group probed for a value is hash & (groups-1). The number of
// groups is always a power of two. Probing advances linearly one group at a
// time, wrapping around at the end, until a group containing an empty slot
// is seen. Removed slots do not stop a lookup: a value may have been
// inserted further along the probe sequence while the slot was still full.
//
// The set grows by a constant factor (2 by default) before an insert would
// push the number of live values above 80% of the slots. Growing allocates
// fresh storage and moves every live value across, dropping all tombstones.
//
// # Values
//
// A value type provides its own hash and equality through Hashable. The hash
// should spread entropy over the high bits as well as the low bits since the
// tag is taken from bits 57-63 and the group index from the low bits.
//
// Values may optionally implement Releaser to be notified when the set drops
// them (on Erase, Clear and Close, but not when a rehash moves them), and
// Printer to render themselves in Dump.
package flatset

import (
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
)

const (
	debug = false

	// A set holds at most maxLoadNum/maxLoadDen live values per slot.
	maxLoadNum = 4
	maxLoadDen = 5

	defaultGrowthFactor = 2
)

// Hashable is the constraint on values stored in a Set. Values that are
// Equal must have the same Hash.
type Hashable[V any] interface {
	Hash() uint64
	Equal(other V) bool
}

// Printer may be implemented by a value type to render itself in Set.Dump.
type Printer interface {
	Print(w io.Writer)
}

// Releaser may be implemented by a value type that owns resources. Release
// is called exactly once for every value the set drops: on Erase, Clear and
// Close. Values moved during a rehash are not released.
type Releaser interface {
	Release()
}

// Set is an unordered set of values with Insert, Contains and Erase
// operations. Insert does not check for an existing equal value, so
// inserting the same value twice stores it twice (and it takes two calls to
// Erase to remove both copies).
//
// A Set is NOT goroutine-safe.
type Set[V Hashable[V]] struct {
	// The allocator to use for the ctrls and slots slices.
	allocator Allocator[V]
	// ctrls and slots are groupCount*groupSize in length. Slot i of group g
	// lives at layout.index(g, i) in both.
	ctrls []ctrl
	slots []V
	// layout maps group and slot indexes into ctrls and slots.
	layout layout
	// The number of groups (always 2^N). mask is groupCount-1 and is used to
	// compute i%groupCount using a bitwise & operation.
	groupCount uintptr
	mask       uintptr
	// growthFactor multiplies groupCount when the set grows.
	growthFactor uintptr
	// The number of full slots (i.e. the number of values in the set).
	used int
	// The number of removed slots. Tombstones are dropped by every rehash.
	tombstones int
	// release and print are resolved once from V's method set. They are nil
	// when V does not implement Releaser or Printer respectively.
	release func(v *V)
	print   func(v *V, w io.Writer)
}

// New constructs a new Set able to hold initialCapacity values without
// growing. The set always starts with at least one group of 16 slots. The
// zero value for a Set is not usable; see Init.
func New[V Hashable[V]](initialCapacity int, options ...option[V]) *Set[V] {
	s := &Set[V]{}
	s.Init(initialCapacity, options...)
	return s
}

// Init initializes a Set with the specified initial capacity. If Init is
// called on a set that is in use, the previous storage is released to the
// previous allocator first. Values still present are released as by Close.
func (s *Set[V]) Init(initialCapacity int, options ...option[V]) {
	if s.ctrls != nil {
		s.Close()
	}

	*s = Set[V]{
		allocator:    defaultAllocator[V]{},
		growthFactor: defaultGrowthFactor,
		release:      releaserFor[V](),
		print:        printerFor[V](),
	}

	for _, op := range options {
		op.apply(s)
	}

	s.alloc(groupsFor(initialCapacity))
	s.checkInvariants()
}

// groupsFor returns the smallest power of two number of groups that holds
// capacity values without exceeding the maximum load factor.
func groupsFor(capacity int) uintptr {
	groups := uintptr(1)
	for capacity > growthLimit(groups) {
		groups <<= 1
	}
	return groups
}

// growthLimit returns the number of live values that fit in groups groups.
func growthLimit(groups uintptr) int {
	return int(groups * groupSize * maxLoadNum / maxLoadDen)
}

// Close releases every value still in the set and returns the storage to
// the configured allocator. It is invalid to use a Set after it has been
// closed, though Close itself is idempotent.
func (s *Set[V]) Close() {
	if s.ctrls == nil {
		return
	}
	s.releaseAll()
	s.free(s.ctrls, s.slots)
	s.ctrls = nil
	s.slots = nil
	s.groupCount = 0
	s.mask = 0
	s.used = 0
	s.tombstones = 0
}

// Clear releases every value in the set, leaving it empty with its current
// capacity.
func (s *Set[V]) Clear() {
	s.releaseAll()
	for i := range s.ctrls {
		s.ctrls[i] = ctrlEmpty
	}
	clear(s.slots)
	s.used = 0
	s.tombstones = 0
	s.checkInvariants()
}

// Insert adds v to the set and returns true. The set takes ownership of v.
// Insert does not look for an existing equal value: a value inserted twice
// occupies two slots.
func (s *Set[V]) Insert(v V) bool {
	// Before performing the insertion we may decide the table is getting
	// overcrowded. If the live values alone would exceed the load factor we
	// grow. If live values plus tombstones would exceed it we rebuild, which
	// drops the tombstones: at the same size when tombstones hold at least
	// half of the budget, otherwise at the next size. Either way at least
	// limit/2 erases separate two rebuilds of the same table.
	limit := growthLimit(s.groupCount)
	switch {
	case s.used+1 > limit:
		s.resize(s.groupCount * s.growthFactor)
	case s.used+s.tombstones+1 > limit:
		if s.used <= limit/2 {
			s.resize(s.groupCount)
		} else {
			s.resize(s.groupCount * s.growthFactor)
		}
	}

	s.uncheckedInsert(v.Hash(), v)
	s.used++
	s.checkInvariants()
	return true
}

// Contains returns true if a value equal to v is in the set.
func (s *Set[V]) Contains(v V) bool {
	_, ok := s.find(v, v.Hash())
	return ok
}

// Erase removes one value equal to v from the set, returning false if there
// is no such value. If the value implements Releaser it is released.
func (s *Set[V]) Erase(v V) bool {
	i, ok := s.find(v, v.Hash())
	if !ok {
		if debug {
			fmt.Printf("erase(%v): not found\n", v)
		}
		return false
	}

	// The slot becomes a tombstone rather than empty: lookups for values
	// which probed past this slot when it was full must keep going.
	s.ctrls[i] = ctrlRemoved
	s.used--
	s.tombstones++
	if s.release != nil {
		s.release(&s.slots[i])
	}
	var zero V
	s.slots[i] = zero

	if debug {
		fmt.Printf("erase(%v): index=%d used=%d tombstones=%d\n", v, i, s.used, s.tombstones)
	}
	s.checkInvariants()
	return true
}

// Len returns the number of values in the set.
func (s *Set[V]) Len() int {
	return s.used
}

// Stats returns occupancy statistics for the set.
func (s *Set[V]) Stats() Stats {
	st := Stats{
		Len:         s.used,
		Tombstones:  s.tombstones,
		Groups:      int(s.groupCount),
		Capacity:    int(s.layout.slots()),
		GrowthLimit: growthLimit(s.groupCount),
		Bytes:       int(s.layout.size()),
	}
	if st.Capacity > 0 {
		st.LoadFactor = float64(st.Len) / float64(st.Capacity)
	}
	return st
}

// group returns the control bytes of group g.
func (s *Set[V]) group(g uintptr) *group {
	i := s.layout.ctrlOffset(g, 0)
	return (*group)(s.ctrls[i : i+groupSize])
}

// find returns the index of a slot holding a value equal to v.
func (s *Set[V]) find(v V, h uint64) (uintptr, bool) {
	// We walk the groups starting at groupIndex(h). In each group we select
	// the candidate slots whose control byte equals tag(h) and compare those
	// with v. If no candidate matches and the group has an empty slot then v
	// was never inserted beyond this group and we stop. Removed slots behave
	// like full slots that never match.
	t := tag(h)
	start := groupIndex(h, s.mask)
	if debug {
		fmt.Printf("find(%v): tag=%02x start=%d groups=%d\n", v, t, start, s.groupCount)
	}

	for g := start; ; {
		grp := s.group(g)
		match := grp.matchTag(t)
		if debug {
			fmt.Printf("find(probing): group=%d match=%s [% 02x]\n", g, match, grp[:])
		}

		for match != 0 {
			bit := match.next()
			i := s.layout.index(g, bit)
			if s.slots[i].Equal(v) {
				return i, true
			}
			match = match.clear(bit)
		}

		if grp.matchEmpty() != 0 {
			return 0, false
		}

		g = (g + 1) & s.mask
		if g == start {
			// Every group is full or removed. This is only reachable when
			// tombstones fill all of the empty slots.
			return 0, false
		}
	}
}

// uncheckedInsert stores v in the first available slot of its probe
// sequence. The caller is responsible for having made room.
func (s *Set[V]) uncheckedInsert(h uint64, v V) {
	t := tag(h)
	start := groupIndex(h, s.mask)

	for g := start; ; {
		grp := s.group(g)
		if match := grp.matchAvailable(); match != 0 {
			bit := match.next()
			if grp[bit] == ctrlRemoved {
				s.tombstones--
			}
			grp[bit] = t
			s.slots[s.layout.index(g, bit)] = v
			if debug {
				fmt.Printf("insert(%v): group=%d slot=%d tag=%02x\n", v, g, bit, t)
			}
			return
		}

		g = (g + 1) & s.mask
		if g == start {
			panic(errors.AssertionFailedf(
				"flatset: no available slot after probing %d groups (used=%d tombstones=%d)",
				s.groupCount, s.used, s.tombstones))
		}
	}
}

// alloc installs fresh storage of groupCount groups with every control byte
// empty.
func (s *Set[V]) alloc(groupCount uintptr) {
	l := makeLayout[V](groupCount)
	n := int(l.slots())

	ctrls := unsafeConvertSlice[ctrl](s.allocator.AllocControls(n))
	slots := s.allocator.AllocSlots(n)
	if len(ctrls) != n || len(slots) != n {
		panic(errors.AssertionFailedf(
			"flatset: allocator returned %d controls and %d slots, expected %d",
			len(ctrls), len(slots), n))
	}
	for i := range ctrls {
		ctrls[i] = ctrlEmpty
	}

	s.ctrls = ctrls
	s.slots = slots
	s.layout = l
	s.groupCount = groupCount
	s.mask = groupCount - 1
	s.tombstones = 0
}

func (s *Set[V]) free(ctrls []ctrl, slots []V) {
	s.allocator.FreeSlots(slots)
	s.allocator.FreeControls(unsafeConvertSlice[uint8](ctrls))
}

// resize moves every value into new storage of newGroupCount groups and
// discards the old storage. Values are moved, not released. Resizing to the
// current group count drops all tombstones.
func (s *Set[V]) resize(newGroupCount uintptr) {
	oldCtrls, oldSlots, oldLayout := s.ctrls, s.slots, s.layout
	s.alloc(newGroupCount)

	if debug {
		fmt.Printf("resize: groups=%d->%d used=%d\n", oldLayout.groupCount, newGroupCount, s.used)
	}

	for g := uintptr(0); g < oldLayout.groupCount; g++ {
		i := oldLayout.index(g, 0)
		grp := (*group)(oldCtrls[i : i+groupSize])
		for match := grp.matchFull(); match != 0; {
			bit := match.next()
			v := oldSlots[i+bit]
			s.uncheckedInsert(v.Hash(), v)
			match = match.clear(bit)
		}
	}

	s.free(oldCtrls, oldSlots)
	s.checkInvariants()
}

// releaseAll releases every live value.
func (s *Set[V]) releaseAll() {
	if s.release == nil {
		return
	}
	for g := uintptr(0); g < s.groupCount; g++ {
		for match := s.group(g).matchFull(); match != 0; {
			bit := match.next()
			s.release(&s.slots[s.layout.index(g, bit)])
			match = match.clear(bit)
		}
	}
}

// Dump writes the contents of every slot to w: the group count and number of
// values, followed by one line per slot giving its state and, for full
// slots, the value. Values that do not implement Printer are shown as a
// placeholder.
func (s *Set[V]) Dump(w io.Writer) {
	fmt.Fprintf(w, "groups=%d len=%d tombstones=%d\n", s.groupCount, s.used, s.tombstones)
	for g := uintptr(0); g < s.groupCount; g++ {
		fmt.Fprintf(w, "group %d:\n", g)
		grp := s.group(g)
		for bit, c := range grp {
			switch c {
			case ctrlEmpty:
				fmt.Fprintf(w, "  %2d: empty\n", bit)
			case ctrlRemoved:
				fmt.Fprintf(w, "  %2d: removed\n", bit)
			default:
				fmt.Fprintf(w, "  %2d: [tag=%02x] ", bit, uint8(c))
				if s.print != nil {
					s.print(&s.slots[s.layout.index(g, uintptr(bit))], w)
				} else {
					io.WriteString(w, "[no print function]")
				}
				io.WriteString(w, "\n")
			}
		}
	}
}

// String returns the output of Dump.
func (s *Set[V]) String() string {
	var buf strings.Builder
	s.Dump(&buf)
	return buf.String()
}

func (s *Set[V]) checkInvariants() {
	if invariants {
		if s.groupCount == 0 || s.groupCount&(s.groupCount-1) != 0 {
			panic(errors.AssertionFailedf("invariant failed: group count %d is not a power of two", s.groupCount))
		}
		if uintptr(len(s.ctrls)) != s.layout.slots() || uintptr(len(s.slots)) != s.layout.slots() {
			panic(errors.AssertionFailedf("invariant failed: %d ctrls and %d slots for %d groups\n%s",
				len(s.ctrls), len(s.slots), s.groupCount, s.String()))
		}
		if s.used > growthLimit(s.groupCount) {
			panic(errors.AssertionFailedf("invariant failed: %d used exceeds growth limit %d\n%s",
				s.used, growthLimit(s.groupCount), s.String()))
		}

		// For every full slot, verify the tag matches and the value can be
		// found. Count the number of used and removed slots.
		var used, removed int
		for i, c := range s.ctrls {
			switch c {
			case ctrlEmpty:
			case ctrlRemoved:
				removed++
			default:
				if c&ctrlRemoved != 0 {
					panic(errors.AssertionFailedf("invariant failed: ctrl(%d): unexpected value %02x", i, uint8(c)))
				}
				v := s.slots[i]
				h := v.Hash()
				if tag(h) != c {
					panic(errors.AssertionFailedf("invariant failed: slot(%d): ctrl %02x != tag %02x\n%s",
						i, uint8(c), uint8(tag(h)), s.String()))
				}
				if _, ok := s.find(v, h); !ok {
					panic(errors.AssertionFailedf("invariant failed: slot(%d): %v not found [tag=%02x group=%d]\n%s",
						i, v, uint8(tag(h)), groupIndex(h, s.mask), s.String()))
				}
				used++
			}
		}

		if used != s.used {
			panic(errors.AssertionFailedf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, s.used, s.String()))
		}
		if removed != s.tombstones {
			panic(errors.AssertionFailedf("invariant failed: found %d removed slots, but tombstone count is %d\n%s",
				removed, s.tombstones, s.String()))
		}
	}
}

// releaserFor returns a function releasing a *V, or nil if neither V nor *V
// implements Releaser.
func releaserFor[V any]() func(v *V) {
	var zero V
	if _, ok := any(zero).(Releaser); ok {
		return func(v *V) { any(*v).(Releaser).Release() }
	}
	if _, ok := any(&zero).(Releaser); ok {
		return func(v *V) { any(v).(Releaser).Release() }
	}
	return nil
}

// printerFor returns a function printing a *V, or nil if neither V nor *V
// implements Printer.
func printerFor[V any]() func(v *V, w io.Writer) {
	var zero V
	if _, ok := any(zero).(Printer); ok {
		return func(v *V, w io.Writer) { any(*v).(Printer).Print(w) }
	}
	if _, ok := any(&zero).(Printer); ok {
		return func(v *V, w io.Writer) { any(v).(Printer).Print(w) }
	}
	return nil
}

func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}
