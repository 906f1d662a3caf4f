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
	"github.com/genomeviz/pileview/pileup"
	"github.com/grailbio/base/log"
)

// State is the reconciliation state of a Track's visible interval.
type State int

const (
	// StateWaitingBoth means neither feed has delivered data intersecting the
	// visible interval.
	StateWaitingBoth State = iota
	// StateReferenceOnly means only reference bases have arrived.
	StateReferenceOnly
	// StateAlignmentsOnly means only alignments have arrived.
	StateAlignmentsOnly
	// StateReady means both feeds intersect the visible interval.  Ready is
	// re-entered on every further delivery; it is not terminal.
	StateReady
)

var stateNames = [...]string{"WaitingBoth", "ReferenceOnly", "AlignmentsOnly", "Ready"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

// Track reconciles one reference feed and one alignment feed for a fixed
// visible interval.  Every delivery intersecting the visible interval
// triggers one recomputation and one emission; the emitted record set depends
// only on cache contents, never on arrival order.
//
// A Track owns its caches exclusively.  When the visible range changes, the
// host discards the Track (Close) and constructs a new one; deliveries still
// in flight reach only the closed instance's caches and are never emitted.
type Track struct {
	visible interval.Interval
	refs    *ReferenceCache
	alns    *AlignmentCache
	layout  *pileup.Layout
	emit    func([]Record)
	state   State
	closed  bool
}

// New constructs a Track for the visible interval [start, stop) on contig.
// emit receives every recomputed record set; it may be nil for pull-only use
// via Records().
func New(contig string, start, stop interval.PosType, refSrc ReferenceSource, alnSrc AlignmentSource, emit func([]Record)) (*Track, error) {
	visible, err := interval.New(contig, start, stop)
	if err != nil {
		return nil, err
	}
	t := &Track{
		visible: visible,
		layout:  pileup.NewLayout(),
		emit:    emit,
		state:   StateWaitingBoth,
	}
	t.refs = NewReferenceCache(refSrc, t.onChange)
	t.alns = NewAlignmentCache(alnSrc, t.onChange)
	return t, nil
}

// Visible returns the interval the track was constructed with.
func (t *Track) Visible() interval.Interval { return t.visible }

// State returns the current reconciliation state.
func (t *Track) State() State { return t.state }

// Start requests both feeds for the visible interval.  Sources that deliver
// synchronously cause emissions before Start returns.
func (t *Track) Start(ctx context.Context) {
	t.refs.Request(ctx, t.visible)
	t.alns.Request(ctx, t.visible, false)
}

// Close detaches the track from its emission callback.  Late deliveries into
// the closed track's caches become no-ops.
func (t *Track) Close() {
	t.closed = true
	t.emit = nil
}

// onChange is the cache notification hook: recompute state and emit exactly
// once.
func (t *Track) onChange() {
	if t.closed {
		return
	}
	refCov := t.refs.CoverageOf(t.visible)
	alnCov := t.alns.CoverageOf(t.visible)
	hasRef := refCov >= CoveragePartial
	hasAln := alnCov >= CoveragePartial
	switch {
	case hasRef && hasAln:
		t.state = StateReady
	case hasRef:
		t.state = StateReferenceOnly
	case hasAln:
		t.state = StateAlignmentsOnly
	default:
		t.state = StateWaitingBoth
	}
	log.Debug.Printf("track %v: ref=%v aln=%v state=%v", t.visible, refCov, alnCov, t.state)
	if t.emit != nil {
		t.emit(t.Records())
	}
}

// Records builds the current render-ready record set: covered reference
// bases in position order, then one pileup record per overlapping alignment
// in (start, id) order.  Mismatches are computed only against reference
// positions that have actually arrived.
func (t *Track) Records() []Record {
	var records []Record

	covered := t.refs.Covered(t.visible)
	window := t.refs.Window(t.visible)
	for i := 0; i < len(covered); i += 2 {
		for pos := covered[i]; pos < covered[i+1]; pos++ {
			records = append(records, Record{
				Kind: RecordReference,
				Pos:  pos,
				Base: window[pos-t.visible.Start],
			})
		}
	}

	recs := t.alns.Overlapping(t.visible)
	if len(recs) == 0 {
		return records
	}
	spans := make([]pileup.Span, len(recs))
	for i, rec := range recs {
		start, end := pileup.RefSpan(rec)
		spans[i] = pileup.Span{ID: AlignmentID(rec), Start: start, End: end}
	}
	t.layout.Place(spans)

	refWindow := pileup.RefWindow{Start: t.visible.Start, Bases: window}
	for _, rec := range recs {
		id := AlignmentID(rec)
		row, _ := t.layout.Row(id)
		start, end := pileup.RefSpan(rec)
		var mismatches []pileup.Mismatch
		if len(covered) != 0 {
			var err error
			mismatches, err = pileup.AppendMismatches(nil, id, rec, refWindow, covered)
			if err != nil {
				// Admission validates records, so this indicates a record
				// mutated after delivery; drop its mismatches but keep the
				// read visible.
				log.Error.Printf("track: mismatch computation failed for %s: %v", id, err)
				mismatches = nil
			}
		}
		records = append(records, Record{
			Kind:        RecordPileup,
			AlignmentID: id,
			Row:         row,
			Span:        interval.Interval{Contig: t.visible.Contig, Start: start, Stop: end},
			Mismatches:  mismatches,
		})
	}
	return records
}
