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

// Stats describes the occupancy of a Set.
type Stats struct {
	// Len is the number of live values.
	Len int
	// Tombstones is the number of slots marked removed.
	Tombstones int
	// Groups is the number of 16-slot groups.
	Groups int
	// Capacity is the total number of slots.
	Capacity int
	// GrowthLimit is the number of live values the set holds before the next
	// insert grows it.
	GrowthLimit int
	// LoadFactor is Len/Capacity.
	LoadFactor float64
	// Bytes is the size of the control bytes plus the value slots.
	Bytes int
}
