package interval

// This file implements Union, a per-contig interval-union represented as an
// []PosType containing a sorted sequence of interval-endpoints.
//
// For example, given the intervals
//   [5, 15)
//   [7, 17)
//   [20, 25)
// the interval-union would be
//   [5, 17) U [20, 25)
// so the sorted sequence of endpoints would be
//   {5, 17, 20, 25}.
//
// The (0-based) start position of interval #k is in element [2k] and the end
// position is in element [2k+1].  Adjacent intervals are merged on insertion,
// so the sequence is always strictly increasing.  Advantages of this
// representation over a sequence of {start, end} structs include simpler
// complement/gap code and reuse of standard []int32 search algorithms.

// Union tracks a merged set of half-open intervals, keyed by contig.  The
// zero value is not usable; call NewUnion.
type Union struct {
	endpoints map[string][]PosType
}

// NewUnion returns an empty Union.
func NewUnion() *Union {
	return &Union{endpoints: make(map[string][]PosType)}
}

// Empty returns true if the union covers no positions.
func (u *Union) Empty() bool {
	for _, eps := range u.endpoints {
		if len(eps) != 0 {
			return false
		}
	}
	return true
}

// Add inserts iv into the union, merging it with any overlapping or adjacent
// intervals already present.
func (u *Union) Add(iv Interval) {
	if iv.Empty() {
		return
	}
	eps := u.endpoints[iv.Contig]
	// lo is the index of the first endpoint >= iv.Start.  If it's odd,
	// iv.Start falls inside (or immediately after) an existing interval, and
	// the merged interval inherits that interval's start.
	lo := searchPosTypes(eps, iv.Start)
	newStart := iv.Start
	if lo&1 == 1 {
		lo--
		newStart = eps[lo]
	}
	// hi is the index of the first endpoint > iv.Stop.  If it's odd, iv.Stop
	// falls inside an existing interval, and the merged interval inherits that
	// interval's end.
	hi := searchPosTypesGT(eps, iv.Stop)
	newStop := iv.Stop
	if hi&1 == 1 {
		newStop = eps[hi]
		hi++
	}
	merged := make([]PosType, 0, lo+2+len(eps)-hi)
	merged = append(merged, eps[:lo]...)
	merged = append(merged, newStart, newStop)
	merged = append(merged, eps[hi:]...)
	u.endpoints[iv.Contig] = merged
}

// Remove deletes iv from the union, splitting any interval that extends past
// either boundary.
func (u *Union) Remove(iv Interval) {
	eps := u.endpoints[iv.Contig]
	if len(eps) == 0 || iv.Empty() {
		return
	}
	out := make([]PosType, 0, len(eps)+2)
	for i := 0; i < len(eps); i += 2 {
		start, end := eps[i], eps[i+1]
		if end <= iv.Start || start >= iv.Stop {
			out = append(out, start, end)
			continue
		}
		if start < iv.Start {
			out = append(out, start, iv.Start)
		}
		if end > iv.Stop {
			out = append(out, iv.Stop, end)
		}
	}
	u.endpoints[iv.Contig] = out
}

// Contains returns true if every position of iv is covered by the union.
// Empty intervals are trivially contained.
func (u *Union) Contains(iv Interval) bool {
	if iv.Empty() {
		return true
	}
	eps := u.endpoints[iv.Contig]
	idx := searchPosTypesGT(eps, iv.Start)
	return idx&1 == 1 && eps[idx] >= iv.Stop
}

// Intersects returns true if at least one position of iv is covered by the
// union.
func (u *Union) Intersects(iv Interval) bool {
	if iv.Empty() {
		return false
	}
	eps := u.endpoints[iv.Contig]
	idx := searchPosTypesGT(eps, iv.Start)
	if idx&1 == 1 {
		return true
	}
	return idx < len(eps) && eps[idx] < iv.Stop
}

// Overlap returns the part of the union covered by iv, as a sorted endpoint
// sequence clipped to [iv.Start, iv.Stop).  The result is nil when nothing
// overlaps.
func (u *Union) Overlap(iv Interval) []PosType {
	eps := u.endpoints[iv.Contig]
	if len(eps) == 0 || iv.Empty() {
		return nil
	}
	lo := searchPosTypesGT(eps, iv.Start)
	if lo&1 == 1 {
		lo--
	}
	var out []PosType
	for i := lo; i < len(eps); i += 2 {
		start, end := eps[i], eps[i+1]
		if start >= iv.Stop {
			break
		}
		if start < iv.Start {
			start = iv.Start
		}
		if end > iv.Stop {
			end = iv.Stop
		}
		if start < end {
			out = append(out, start, end)
		}
	}
	return out
}

// Gaps returns the parts of iv not covered by the union, in increasing order.
func (u *Union) Gaps(iv Interval) []Interval {
	if iv.Empty() {
		return nil
	}
	covered := u.Overlap(iv)
	var gaps []Interval
	cursor := iv.Start
	for i := 0; i < len(covered); i += 2 {
		if covered[i] > cursor {
			gaps = append(gaps, Interval{Contig: iv.Contig, Start: cursor, Stop: covered[i]})
		}
		cursor = covered[i+1]
	}
	if cursor < iv.Stop {
		gaps = append(gaps, Interval{Contig: iv.Contig, Start: cursor, Stop: iv.Stop})
	}
	return gaps
}
