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
	"sort"

	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/pileup"
	"github.com/grailbio/base/log"
)

// refSegment is a contiguous run of normalized bases on one contig.
type refSegment struct {
	start interval.PosType
	bases []byte
}

// ReferenceCache accumulates reference bases delivered by a ReferenceSource.
// Deliveries are idempotent: bases are immutable once present, and repeated
// delivery of the same region changes nothing.  Data arriving outside any
// requested interval is stored for future use but fires no notification.
type ReferenceCache struct {
	src ReferenceSource

	requested *interval.Union
	inflight  *interval.Union
	covered   *interval.Union
	// segments[contig] is sorted by start; segments never overlap because
	// merge clips incoming bases to uncovered gaps.
	segments map[string][]refSegment

	notify func()
}

// NewReferenceCache returns an empty cache backed by src.  notify, if
// non-nil, is invoked after every delivery that adds data intersecting a
// requested interval.
func NewReferenceCache(src ReferenceSource, notify func()) *ReferenceCache {
	return &ReferenceCache{
		src:       src,
		requested: interval.NewUnion(),
		inflight:  interval.NewUnion(),
		covered:   interval.NewUnion(),
		segments:  make(map[string][]refSegment),
		notify:    notify,
	}
}

// Request registers interest in iv and triggers fetches for any part of it
// that is neither covered nor already being fetched.  Non-blocking.  A fetch
// that previously failed is retried by a later Request for the same region.
func (c *ReferenceCache) Request(ctx context.Context, iv interval.Interval) {
	if iv.Empty() {
		return
	}
	c.requested.Add(iv)
	for _, gap := range c.covered.Gaps(iv) {
		for _, missing := range c.inflight.Gaps(gap) {
			c.inflight.Add(missing)
			fetched := missing
			c.src.FetchReference(ctx, fetched, func(rb ReferenceBases, err error) {
				c.onArrived(fetched, rb, err)
			})
		}
	}
}

// CoverageOf reports the cache's coverage state for iv.
func (c *ReferenceCache) CoverageOf(iv interval.Interval) Coverage {
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

// Covered returns the covered parts of iv as a clipped, sorted endpoint
// sequence.
func (c *ReferenceCache) Covered(iv interval.Interval) []interval.PosType {
	return c.covered.Overlap(iv)
}

// Window returns the best-available bases for iv as a dense window of
// len == iv.Len(), with pileup.BaseUnknown at every position not yet
// delivered.
func (c *ReferenceCache) Window(iv interval.Interval) []byte {
	window := make([]byte, iv.Len())
	for i := range window {
		window[i] = pileup.BaseUnknown
	}
	segs := c.segments[iv.Contig]
	// First segment that could reach into iv.
	idx := sort.Search(len(segs), func(i int) bool {
		return segs[i].start+interval.PosType(len(segs[i].bases)) > iv.Start
	})
	for ; idx < len(segs); idx++ {
		seg := segs[idx]
		if seg.start >= iv.Stop {
			break
		}
		src, dst := interval.PosType(0), seg.start-iv.Start
		if dst < 0 {
			src, dst = -dst, 0
		}
		copy(window[dst:], seg.bases[src:])
	}
	return window
}

// onArrived merges a delivery into the cache.  Failed fetches leave coverage
// pending and retryable; deliveries outside every requested interval are
// stored silently.
func (c *ReferenceCache) onArrived(fetched interval.Interval, rb ReferenceBases, err error) {
	c.inflight.Remove(fetched)
	if err != nil {
		log.Error.Printf("track: reference fetch %v failed: %v", fetched, err)
		return
	}
	actual := rb.Interval()
	if actual.Empty() {
		return
	}
	if !c.merge(rb) {
		return
	}
	if !c.requested.Intersects(actual) {
		// Nothing pending wants this region; keep the data, skip the
		// notification.
		return
	}
	if c.notify != nil {
		c.notify()
	}
}

// merge inserts the uncovered parts of rb, returning true if anything new was
// stored.  Existing bases are never overwritten.
func (c *ReferenceCache) merge(rb ReferenceBases) bool {
	actual := rb.Interval()
	gaps := c.covered.Gaps(actual)
	if len(gaps) == 0 {
		return false
	}
	segs := c.segments[rb.Contig]
	for _, gap := range gaps {
		bases := make([]byte, gap.Len())
		copy(bases, rb.Bases[gap.Start-rb.Start:])
		segs = append(segs, refSegment{start: gap.Start, bases: pileup.NormalizeBases(bases)})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].start < segs[j].start })
	c.segments[rb.Contig] = segs
	c.covered.Add(actual)
	return true
}
