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
	"fmt"
	"sort"

	biointerval "github.com/biogo/store/interval"
	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/pileup"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// AlignmentID returns the stable identity of an alignment record: read name,
// read-in-pair flags, and mapped position.  It is identical across re-fetches
// of overlapping regions, which is what makes repeated delivery idempotent.
func AlignmentID(samr *sam.Record) string {
	return fmt.Sprintf("%s/%d:%d", samr.Name, samr.Flags&(sam.Read1|sam.Read2), samr.Pos)
}

// alnEntry adapts one record to the biogo interval-tree interface.
type alnEntry struct {
	id         uintptr
	start, end int
	rec        *sam.Record
}

func (e alnEntry) Overlap(b biointerval.IntRange) bool { return e.end > b.Start && e.start < b.End }
func (e alnEntry) ID() uintptr                         { return e.id }
func (e alnEntry) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: e.start, End: e.end}
}

// alnQuery is an overlap query against a contig's tree.
type alnQuery struct{ start, end int }

func (q alnQuery) Overlap(b biointerval.IntRange) bool { return q.end > b.Start && q.start < b.End }

// AlignmentCache accumulates alignment records delivered by an
// AlignmentSource, deduplicated by AlignmentID and indexed per contig in an
// interval tree for overlap queries.  Unmapped records are dropped at
// admission; records whose CIGAR disagrees with their sequence length are
// skipped individually, without failing the rest of the batch.
type AlignmentCache struct {
	src AlignmentSource

	requested *interval.Union
	inflight  *interval.Union
	covered   *interval.Union
	trees     map[string]*biointerval.IntTree
	byID      map[string]*sam.Record
	nextID    uintptr

	notify func()
}

// NewAlignmentCache returns an empty cache backed by src.  notify, if
// non-nil, is invoked after every delivery that changes contents or coverage
// intersecting a requested interval.
func NewAlignmentCache(src AlignmentSource, notify func()) *AlignmentCache {
	return &AlignmentCache{
		src:       src,
		requested: interval.NewUnion(),
		inflight:  interval.NewUnion(),
		covered:   interval.NewUnion(),
		trees:     make(map[string]*biointerval.IntTree),
		byID:      make(map[string]*sam.Record),
		notify:    notify,
	}
}

// Request registers interest in iv and triggers fetches for any part of it
// not already fetched or in flight.  Non-blocking.
func (c *AlignmentCache) Request(ctx context.Context, iv interval.Interval, containedOnly bool) {
	if iv.Empty() {
		return
	}
	c.requested.Add(iv)
	for _, gap := range c.covered.Gaps(iv) {
		for _, missing := range c.inflight.Gaps(gap) {
			c.inflight.Add(missing)
			fetched := missing
			c.src.FetchAlignments(ctx, fetched, containedOnly, func(recs []*sam.Record, err error) {
				c.onArrived(fetched, recs, err)
			})
		}
	}
}

// CoverageOf reports the cache's coverage state for iv.
func (c *AlignmentCache) CoverageOf(iv interval.Interval) Coverage {
	switch {
	case c.covered.Contains(iv) && !iv.Empty():
		return CoverageComplete
	case c.covered.Intersects(iv):
		return CoveragePartial
	case c.requested.Intersects(iv):
		return CoveragePending
	default:
		return CoverageUnrequested
	}
}

// Overlapping returns all cached records whose reference spans overlap iv,
// sorted by (start, AlignmentID) for deterministic downstream processing.
func (c *AlignmentCache) Overlapping(iv interval.Interval) []*sam.Record {
	tree := c.trees[iv.Contig]
	if tree == nil || iv.Empty() {
		return nil
	}
	hits := tree.Get(alnQuery{start: int(iv.Start), end: int(iv.Stop)})
	recs := make([]*sam.Record, 0, len(hits))
	for _, hit := range hits {
		recs = append(recs, hit.(alnEntry).rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Pos != recs[j].Pos {
			return recs[i].Pos < recs[j].Pos
		}
		return AlignmentID(recs[i]) < AlignmentID(recs[j])
	})
	return recs
}

// onArrived merges a delivered batch.  The fetched interval counts as covered
// even when the batch is empty: an empty region is an answer.
func (c *AlignmentCache) onArrived(fetched interval.Interval, recs []*sam.Record, err error) {
	c.inflight.Remove(fetched)
	if err != nil {
		log.Error.Printf("track: alignment fetch %v failed: %v", fetched, err)
		return
	}
	changed := !c.covered.Contains(fetched)
	for _, rec := range recs {
		if c.admit(rec) {
			changed = true
		}
	}
	c.covered.Add(fetched)
	if !changed {
		return
	}
	if !c.requested.Intersects(fetched) {
		return
	}
	if c.notify != nil {
		c.notify()
	}
}

// admit adds one record, returning true if it was new.
func (c *AlignmentCache) admit(rec *sam.Record) bool {
	if rec == nil || rec.Ref == nil || rec.Flags&sam.Unmapped != 0 {
		return false
	}
	if err := pileup.ValidateRecord(rec); err != nil {
		log.Error.Printf("track: skipping malformed record: %v", err)
		return false
	}
	id := AlignmentID(rec)
	if _, ok := c.byID[id]; ok {
		return false
	}
	c.byID[id] = rec
	contig := rec.Ref.Name()
	tree := c.trees[contig]
	if tree == nil {
		tree = &biointerval.IntTree{}
		c.trees[contig] = tree
	}
	start, end := pileup.RefSpan(rec)
	c.nextID++
	if err := tree.Insert(alnEntry{id: c.nextID, start: int(start), end: int(end), rec: rec}, false); err != nil {
		log.Error.Printf("track: dropping unindexable record %s: %v", rec.Name, err)
		delete(c.byID, id)
		return false
	}
	return true
}
