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

//go:build !amd64 || nosimd

package flatset

// The portable matchers scan the 16 control bytes one at a time. They are
// exact: unlike the SWAR tricks used for 8-byte groups they never report
// false positive tag matches.

// matchTag returns the slots whose control byte equals t.
func (g *group) matchTag(t ctrl) bitset {
	var b bitset
	for i, c := range g {
		if c == t {
			b |= 1 << i
		}
	}
	return b
}

// matchEmpty returns the slots that have never held a value.
func (g *group) matchEmpty() bitset {
	var b bitset
	for i, c := range g {
		if c == ctrlEmpty {
			b |= 1 << i
		}
	}
	return b
}

// matchAvailable returns the empty and removed slots.
func (g *group) matchAvailable() bitset {
	var b bitset
	for i, c := range g {
		if c&ctrlRemoved != 0 {
			b |= 1 << i
		}
	}
	return b
}
