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
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// item is a value with an explicit tag and group so that test files can
// place values precisely.
type item struct {
	name string
	h    uint64
}

func (it item) Hash() uint64      { return it.h }
func (it item) Equal(o item) bool { return it.name == o.name }
func (it item) Print(w io.Writer) { io.WriteString(w, it.name) }
func (it item) String() string    { return it.name }

// parseItems parses lines of the form "<name> <tag> <group>".
func parseItems(t *testing.T, input string) []item {
	var items []item
	for _, line := range strings.Split(input, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		require.Len(t, fields, 3, "expected <name> <tag> <group>: %q", line)
		tg, err := strconv.ParseUint(fields[1], 10, 7)
		require.NoError(t, err)
		grp, err := strconv.ParseUint(fields[2], 10, 32)
		require.NoError(t, err)
		items = append(items, item{name: fields[0], h: tg<<tagShift | grp})
	}
	return items
}

func TestDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		var s *Set[item]
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "new":
				var capacity int
				var options []option[item]
				if d.HasArg("capacity") {
					d.ScanArgs(t, "capacity", &capacity)
				}
				if d.HasArg("growth") {
					var growth int
					d.ScanArgs(t, "growth", &growth)
					options = append(options, WithGrowthFactor[item](growth))
				}
				s = New[item](capacity, options...)
				return formatStats(s.Stats())

			case "insert":
				for _, it := range parseItems(t, d.Input) {
					s.Insert(it)
				}
				return formatStats(s.Stats())

			case "contains", "erase":
				var buf strings.Builder
				for _, it := range parseItems(t, d.Input) {
					var ok bool
					if d.Cmd == "contains" {
						ok = s.Contains(it)
					} else {
						ok = s.Erase(it)
					}
					fmt.Fprintf(&buf, "%s: %t\n", it.name, ok)
				}
				return buf.String()

			case "stats":
				return formatStats(s.Stats())

			case "dump":
				return s.String()

			default:
				return fmt.Sprintf("unknown command: %s", d.Cmd)
			}
		})
	})
}

func formatStats(st Stats) string {
	return fmt.Sprintf("len=%d tombstones=%d groups=%d capacity=%d growth-limit=%d",
		st.Len, st.Tombstones, st.Groups, st.Capacity, st.GrowthLimit)
}
