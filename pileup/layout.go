// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"sort"
)

// Span is the reference-axis footprint of one alignment, identified by a
// stable ID.
type Span struct {
	ID    string
	Start PosType
	End   PosType
}

// Layout assigns each span a row index such that no two spans sharing a row
// overlap on the reference axis.  Assignment is greedy earliest-fit over
// spans sorted by (Start, ID), which is optimal for row count and
// deterministic.  Assignments are sticky: a span placed by an earlier Place
// call keeps its row in later calls, so streaming in additional alignments
// never makes previously drawn reads jump rows.
type Layout struct {
	assigned map[string]int
	// occupancy[row] is a sorted endpoint sequence (as in interval.Union) of
	// the spans currently on that row.  Rebuilt on every Place call.
	occupancy [][]PosType
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{assigned: make(map[string]int)}
}

// Reset discards all assignments, so the next Place call lays out the full
// span set from scratch.
func (l *Layout) Reset() {
	l.assigned = make(map[string]int)
	l.occupancy = l.occupancy[:0]
}

// Row returns the row assigned to id, if any.
func (l *Layout) Row(id string) (int, bool) {
	row, ok := l.assigned[id]
	return row, ok
}

// NumRows returns the number of rows in use as of the last Place call.
func (l *Layout) NumRows() int {
	return len(l.occupancy)
}

// Place assigns a row to every span in spans.  spans must contain all spans
// whose assignments are to remain valid; it is reordered in place.
//
// Spans seen before keep their rows.  New spans are processed in (Start, ID)
// order and take the lowest-numbered row where they fit against the occupancy
// of all spans in this call, opening a new row when none fits.
func (l *Layout) Place(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].ID < spans[j].ID
	})
	l.occupancy = l.occupancy[:0]
	for _, sp := range spans {
		if row, ok := l.assigned[sp.ID]; ok {
			l.occupy(row, sp)
		}
	}
	for _, sp := range spans {
		if _, ok := l.assigned[sp.ID]; ok {
			continue
		}
		row := 0
		for ; row < len(l.occupancy); row++ {
			if !rowConflicts(l.occupancy[row], sp) {
				break
			}
		}
		l.assigned[sp.ID] = row
		l.occupy(row, sp)
	}
}

// occupy merges sp into the row's endpoint sequence.  Abutting spans are
// merged, keeping the sequence strictly increasing so rowConflicts' parity
// test stays valid.
func (l *Layout) occupy(row int, sp Span) {
	for len(l.occupancy) <= row {
		l.occupancy = append(l.occupancy, nil)
	}
	if sp.Start >= sp.End {
		return
	}
	eps := l.occupancy[row]
	lo := sort.Search(len(eps), func(i int) bool { return eps[i] >= sp.Start })
	newStart := sp.Start
	if lo&1 == 1 {
		lo--
		newStart = eps[lo]
	}
	hi := sort.Search(len(eps), func(i int) bool { return eps[i] > sp.End })
	newEnd := sp.End
	if hi&1 == 1 {
		newEnd = eps[hi]
		hi++
	}
	out := make([]PosType, 0, lo+2+len(eps)-hi)
	out = append(out, eps[:lo]...)
	out = append(out, newStart, newEnd)
	out = append(out, eps[hi:]...)
	l.occupancy[row] = out
}

// rowConflicts reports whether sp overlaps any span already occupying the
// row.
func rowConflicts(eps []PosType, sp Span) bool {
	if sp.Start >= sp.End {
		return false
	}
	idx := sort.Search(len(eps), func(i int) bool { return eps[i] > sp.Start })
	if idx&1 == 1 {
		return true
	}
	return idx < len(eps) && eps[idx] < sp.End
}
