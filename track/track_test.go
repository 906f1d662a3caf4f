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
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/pileup"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualRefSource records fetches and lets the test deliver results (or
// errors) at any later point, in any order and granularity.
type manualRefSource struct {
	fetches []refFetch
}

type refFetch struct {
	iv      interval.Interval
	deliver func(ReferenceBases, error)
}

func (s *manualRefSource) FetchReference(_ context.Context, iv interval.Interval, deliver func(ReferenceBases, error)) {
	s.fetches = append(s.fetches, refFetch{iv: iv, deliver: deliver})
}

type manualAlnSource struct {
	fetches []alnFetch
}

type alnFetch struct {
	iv            interval.Interval
	containedOnly bool
	deliver       func([]*sam.Record, error)
}

func (s *manualAlnSource) FetchAlignments(_ context.Context, iv interval.Interval, containedOnly bool, deliver func([]*sam.Record, error)) {
	s.fetches = append(s.fetches, alnFetch{iv: iv, containedOnly: containedOnly, deliver: deliver})
}

var chr17 *sam.Reference

func init() {
	chr17, _ = sam.NewReference("chr17", "", "", 81195210, nil, nil)
}

// The scenario window: chr17:7,500,000-7,501,000, an all-C reference.
const (
	scenStart = 7500000
	scenStop  = 7501000
)

func scenarioRef() ReferenceBases {
	return ReferenceBases{
		Contig: "chr17",
		Start:  scenStart,
		Bases:  bytes.Repeat([]byte{'C'}, scenStop-scenStart),
	}
}

func matchRead(name string, pos, length, variantOffset int, variantBase byte) *sam.Record {
	seq := bytes.Repeat([]byte{'C'}, length)
	if variantOffset >= 0 {
		seq[variantOffset] = variantBase
	}
	return &sam.Record{
		Name:  name,
		Ref:   chr17,
		Pos:   pos,
		MapQ:  60,
		Cigar: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, length)},
		Seq:   sam.NewSeq(seq),
	}
}

// scenarioReads returns 22 reads carrying T at absolute position 7,500,764
// plus 5 reads carrying A at 7,500,750, all within 7,500,734-7,500,795.
func scenarioReads() []*sam.Record {
	var recs []*sam.Record
	for i := 0; i < 22; i++ {
		recs = append(recs, matchRead(fmt.Sprintf("t%02d", i), 7500734, 61, 7500764-7500734, 'T'))
	}
	for i := 0; i < 5; i++ {
		recs = append(recs, matchRead(fmt.Sprintf("a%02d", i), 7500740, 50, 7500750-7500740, 'A'))
	}
	return recs
}

type emitLog struct {
	emissions [][]Record
}

func (e *emitLog) emit(records []Record) {
	e.emissions = append(e.emissions, records)
}

func (e *emitLog) last(t *testing.T) []Record {
	require.NotEmpty(t, e.emissions)
	return e.emissions[len(e.emissions)-1]
}

func newScenarioTrack(t *testing.T) (*Track, *manualRefSource, *manualAlnSource, *emitLog) {
	t.Helper()
	refSrc := &manualRefSource{}
	alnSrc := &manualAlnSource{}
	sink := &emitLog{}
	tr, err := New("chr17", scenStart, scenStop, refSrc, alnSrc, sink.emit)
	require.NoError(t, err)
	tr.Start(context.Background())
	require.Len(t, refSrc.fetches, 1)
	require.Len(t, alnSrc.fetches, 1)
	return tr, refSrc, alnSrc, sink
}

func mismatchesAt(records []Record, pos interval.PosType) []pileup.Mismatch {
	var out []pileup.Mismatch
	for _, rec := range records {
		if rec.Kind != RecordPileup {
			continue
		}
		for _, mm := range rec.Mismatches {
			if mm.Pos == pos {
				out = append(out, mm)
			}
		}
	}
	return out
}

func totalMismatches(records []Record) int {
	n := 0
	for _, rec := range records {
		if rec.Kind == RecordPileup {
			n += len(rec.Mismatches)
		}
	}
	return n
}

func checkScenarioRecords(t *testing.T, records []Record) {
	t.Helper()
	// 1000 reference records, then 27 pileup records.
	nRef, nPile := 0, 0
	for _, rec := range records {
		if rec.Kind == RecordReference {
			nRef++
		} else {
			nPile++
		}
	}
	assert.Equal(t, scenStop-scenStart, nRef)
	assert.Equal(t, 27, nPile)

	assert.Less(t, totalMismatches(records), 60)
	at764 := mismatchesAt(records, 7500764)
	require.Len(t, at764, 22)
	for _, mm := range at764 {
		expect.EQ(t, mm.ReadBase, byte('T'))
		expect.EQ(t, mm.RefBase, byte('C'))
	}
	expect.EQ(t, len(mismatchesAt(records, 7500763)), 0)

	// Layout soundness: no two pileup records on the same row overlap.
	var piles []Record
	for _, rec := range records {
		if rec.Kind == RecordPileup {
			piles = append(piles, rec)
		}
	}
	for i, a := range piles {
		for _, b := range piles[i+1:] {
			if a.Row == b.Row {
				assert.False(t, a.Span.Overlaps(b.Span),
					"row %d: %s overlaps %s", a.Row, a.AlignmentID, b.AlignmentID)
			}
		}
	}
}

func TestScenarioReferenceFirst(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)

	refSrc.fetches[0].deliver(scenarioRef(), nil)
	assert.Equal(t, StateReferenceOnly, tr.State())
	// Reference-only partial rendering: bases, no piles.
	for _, rec := range sink.last(t) {
		expect.EQ(t, rec.Kind, RecordReference)
	}

	alnSrc.fetches[0].deliver(scenarioReads(), nil)
	assert.Equal(t, StateReady, tr.State())
	checkScenarioRecords(t, sink.last(t))
}

func TestScenarioAlignmentsFirst(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)

	alnSrc.fetches[0].deliver(scenarioReads(), nil)
	assert.Equal(t, StateAlignmentsOnly, tr.State())
	// Pileup records are emitted without mismatches while the reference is
	// absent.
	for _, rec := range sink.last(t) {
		expect.EQ(t, rec.Kind, RecordPileup)
		expect.EQ(t, len(rec.Mismatches), 0)
	}

	refSrc.fetches[0].deliver(scenarioRef(), nil)
	assert.Equal(t, StateReady, tr.State())
	checkScenarioRecords(t, sink.last(t))
}

// Order independence: any interleaving of sub-range deliveries ends in the
// same record set.
func TestOrderIndependence(t *testing.T) {
	ref := scenarioRef()
	reads := scenarioReads()
	refLo := ReferenceBases{Contig: "chr17", Start: scenStart, Bases: ref.Bases[:500]}
	refHi := ReferenceBases{Contig: "chr17", Start: scenStart + 500, Bases: ref.Bases[500:]}

	schedules := []struct {
		name string
		run  func(refSrc *manualRefSource, alnSrc *manualAlnSource)
	}{
		{
			name: "ref_then_aln",
			run: func(refSrc *manualRefSource, alnSrc *manualAlnSource) {
				refSrc.fetches[0].deliver(ref, nil)
				alnSrc.fetches[0].deliver(reads, nil)
			},
		},
		{
			name: "aln_then_ref",
			run: func(refSrc *manualRefSource, alnSrc *manualAlnSource) {
				alnSrc.fetches[0].deliver(reads, nil)
				refSrc.fetches[0].deliver(ref, nil)
			},
		},
		{
			name: "interleaved_subranges",
			run: func(refSrc *manualRefSource, alnSrc *manualAlnSource) {
				refSrc.fetches[0].deliver(refHi, nil)
				alnSrc.fetches[0].deliver(reads[:10], nil)
				refSrc.fetches[0].deliver(refLo, nil)
				alnSrc.fetches[0].deliver(reads[10:], nil)
			},
		},
		{
			// Paginated index lookups stream alignment pages in coordinate
			// order; both pages land before any reference data.
			name: "paginated_alignments_first",
			run: func(refSrc *manualRefSource, alnSrc *manualAlnSource) {
				alnSrc.fetches[0].deliver(reads[:15], nil)
				alnSrc.fetches[0].deliver(reads[15:], nil)
				refSrc.fetches[0].deliver(refHi, nil)
				refSrc.fetches[0].deliver(refLo, nil)
			},
		},
	}

	var want []Record
	for i, sched := range schedules {
		tr, refSrc, alnSrc, sink := newScenarioTrack(t)
		sched.run(refSrc, alnSrc)
		require.Equal(t, StateReady, tr.State(), sched.name)
		got := sink.last(t)
		checkScenarioRecords(t, got)
		if i == 0 {
			want = got
			continue
		}
		assert.Equal(t, want, got, sched.name)
	}
}

// Idempotence: re-delivering data that is already cached changes nothing and
// emits nothing.
func TestIdempotentDelivery(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)
	refSrc.fetches[0].deliver(scenarioRef(), nil)
	alnSrc.fetches[0].deliver(scenarioReads(), nil)
	require.Equal(t, StateReady, tr.State())
	want := sink.last(t)
	nEmissions := len(sink.emissions)

	refSrc.fetches[0].deliver(scenarioRef(), nil)
	alnSrc.fetches[0].deliver(scenarioReads(), nil)
	assert.Len(t, sink.emissions, nEmissions)
	assert.Equal(t, want, tr.Records())
}

func TestPartialCoverageSafety(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)
	alnSrc.fetches[0].deliver(scenarioReads(), nil)

	// Deliver only bases up to (and excluding) 7,500,764.
	partial := ReferenceBases{
		Contig: "chr17",
		Start:  scenStart,
		Bases:  scenarioRef().Bases[:7500764-scenStart],
	}
	refSrc.fetches[0].deliver(partial, nil)
	require.Equal(t, StateReady, tr.State())
	records := sink.last(t)
	expect.EQ(t, len(mismatchesAt(records, 7500764)), 0)
	// The A>C variant at 7,500,750 is inside the covered sub-range and must
	// already be reported.
	expect.EQ(t, len(mismatchesAt(records, 7500750)), 5)

	// Completing coverage surfaces the pending mismatches.
	rest := ReferenceBases{
		Contig: "chr17",
		Start:  7500764,
		Bases:  scenarioRef().Bases[7500764-scenStart:],
	}
	refSrc.fetches[0].deliver(rest, nil)
	checkScenarioRecords(t, sink.last(t))
}

func TestFetchErrorLeavesPendingAndRetries(t *testing.T) {
	tr, refSrc, _, sink := newScenarioTrack(t)
	refSrc.fetches[0].deliver(ReferenceBases{}, fmt.Errorf("connection reset"))
	assert.Empty(t, sink.emissions)
	assert.Equal(t, CoveragePending, tr.refs.CoverageOf(tr.Visible()))
	assert.Equal(t, StateWaitingBoth, tr.State())

	// A later request for the same region triggers a fresh fetch.
	tr.refs.Request(context.Background(), tr.Visible())
	require.Len(t, refSrc.fetches, 2)
	refSrc.fetches[1].deliver(scenarioRef(), nil)
	assert.Equal(t, StateReferenceOnly, tr.State())
	assert.NotEmpty(t, sink.emissions)
}

func TestCloseDropsLateDeliveries(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)
	tr.Close()
	refSrc.fetches[0].deliver(scenarioRef(), nil)
	alnSrc.fetches[0].deliver(scenarioReads(), nil)
	assert.Empty(t, sink.emissions)
}

func TestMalformedRecordSkipped(t *testing.T) {
	_, refSrc, alnSrc, sink := newScenarioTrack(t)
	refSrc.fetches[0].deliver(scenarioRef(), nil)

	good := matchRead("good", 7500100, 50, -1, 0)
	bad := matchRead("bad", 7500200, 50, -1, 0)
	// CIGAR now consumes 60 read bases against a 50-base sequence.
	bad.Cigar = []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 60)}
	unmapped := matchRead("unmapped", 7500300, 50, -1, 0)
	unmapped.Flags |= sam.Unmapped

	alnSrc.fetches[0].deliver([]*sam.Record{good, bad, unmapped}, nil)
	var ids []string
	for _, rec := range sink.last(t) {
		if rec.Kind == RecordPileup {
			ids = append(ids, rec.AlignmentID)
		}
	}
	assert.Equal(t, []string{AlignmentID(good)}, ids)
}

func TestDedupAcrossOverlappingFetches(t *testing.T) {
	tr, refSrc, alnSrc, sink := newScenarioTrack(t)
	refSrc.fetches[0].deliver(scenarioRef(), nil)

	reads := scenarioReads()
	alnSrc.fetches[0].deliver(reads, nil)
	// The same records arrive again from an overlapping fetch of a sub-range.
	tr.alns.Request(context.Background(), interval.Interval{Contig: "chr17", Start: 7500700, Stop: 7500800}, false)
	// Already covered, so no new fetch was issued.
	require.Len(t, alnSrc.fetches, 1)
	alnSrc.fetches[0].deliver(reads[:5], nil)

	nPile := 0
	for _, rec := range sink.last(t) {
		if rec.Kind == RecordPileup {
			nPile++
		}
	}
	assert.Equal(t, 27, nPile)
}

func TestStateTransitions(t *testing.T) {
	tr, refSrc, alnSrc, _ := newScenarioTrack(t)
	assert.Equal(t, StateWaitingBoth, tr.State())
	refSrc.fetches[0].deliver(ReferenceBases{
		Contig: "chr17",
		Start:  scenStart,
		Bases:  bytes.Repeat([]byte{'C'}, 10),
	}, nil)
	assert.Equal(t, StateReferenceOnly, tr.State())
	alnSrc.fetches[0].deliver([]*sam.Record{matchRead("r", 7500100, 50, -1, 0)}, nil)
	assert.Equal(t, StateReady, tr.State())
	// Ready is re-entered, not left, on further deliveries.
	refSrc.fetches[0].deliver(scenarioRef(), nil)
	assert.Equal(t, StateReady, tr.State())
}
