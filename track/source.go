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
	"context"

	"github.com/genomeviz/pileview/interval"
	"github.com/grailbio/hts/sam"
)

// ReferenceBases is a contiguous run of reference sequence delivered by a
// ReferenceSource.  len(Bases) positions starting at Start are covered.
type ReferenceBases struct {
	Contig string
	Start  interval.PosType
	Bases  []byte
}

// Interval returns the reference interval the bases cover.
func (rb ReferenceBases) Interval() interval.Interval {
	return interval.Interval{
		Contig: rb.Contig,
		Start:  rb.Start,
		Stop:   rb.Start + interval.PosType(len(rb.Bases)),
	}
}

// ReferenceSource retrieves reference bases.  FetchReference must return
// promptly; retrieval happens in the background (or synchronously, for
// in-memory sources), and deliver is eventually invoked with whatever subset
// was obtained, even on partial success.  A failed fetch invokes deliver with
// a non-nil error.
//
// deliver calls must be serialized with all other cache mutations; the cache
// performing the fetch is not locked.
type ReferenceSource interface {
	FetchReference(ctx context.Context, iv interval.Interval, deliver func(ReferenceBases, error))
}

// AlignmentSource retrieves alignment records, with the same delivery
// contract as ReferenceSource.  containedOnly restricts the result to records
// fully inside iv rather than any overlap.
type AlignmentSource interface {
	FetchAlignments(ctx context.Context, iv interval.Interval, containedOnly bool, deliver func([]*sam.Record, error))
}
