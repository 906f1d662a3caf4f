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
package track

import (
	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/pileup"
)

// RecordKind discriminates the two drawable record types.
type RecordKind int

const (
	// RecordReference is a single covered reference base.
	RecordReference RecordKind = iota
	// RecordPileup is one stacked alignment with its row and mismatches.
	RecordPileup
)

var recordKindNames = [...]string{"reference", "pileup"}

func (k RecordKind) String() string {
	if k < 0 || int(k) >= len(recordKindNames) {
		return "RecordKind(?)"
	}
	return recordKindNames[k]
}

// Record is one drawable unit handed to the renderer.  Reference records use
// Pos and Base; pileup records use AlignmentID, Row, Span and Mismatches.
// Within an emission, reference records appear first in position order,
// followed by pileup records in (span start, AlignmentID) order; no two
// pileup records share a row with overlapping spans.
type Record struct {
	Kind RecordKind

	Pos  interval.PosType
	Base byte

	AlignmentID string
	Row         int
	Span        interval.Interval
	Mismatches  []pileup.Mismatch
}
