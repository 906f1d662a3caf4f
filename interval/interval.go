package interval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PosType is the type used to represent interval coordinates.  int32 should be
// wide enough for some time to come, since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// searchPosTypes returns the index of the first element of a[] that is >= x,
// or len(a) if there is none.  It's exactly the same as sort.SearchInts(),
// except for PosType.
func searchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// searchPosTypesGT returns the index of the first element of a[] that is
// strictly greater than x, or len(a) if there is none.
func searchPosTypesGT(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] > x })
}

// Interval is a half-open genomic range [Start, Stop) on a named contig.
// Intervals on different contigs never overlap, contain each other, or
// intersect.
type Interval struct {
	Contig string
	Start  PosType
	Stop   PosType
}

// New returns the interval [start, stop) on the given contig.  start must not
// exceed stop.
func New(contig string, start, stop PosType) (Interval, error) {
	if start > stop {
		return Interval{}, fmt.Errorf("interval.New: start %d > stop %d on %s", start, stop, contig)
	}
	return Interval{Contig: contig, Start: start, Stop: stop}, nil
}

// Empty returns true if i covers no positions.
func (i Interval) Empty() bool {
	return i.Start >= i.Stop
}

// Len returns the number of positions covered by i.
func (i Interval) Len() PosType {
	if i.Empty() {
		return 0
	}
	return i.Stop - i.Start
}

// Overlaps returns true if i and other share at least one position.
func (i Interval) Overlaps(other Interval) bool {
	return i.Contig == other.Contig && i.Start < other.Stop && other.Start < i.Stop
}

// Contains returns true if every position covered by other is also covered by
// i.  An empty other is contained by everything on the same contig.
func (i Interval) Contains(other Interval) bool {
	if i.Contig != other.Contig {
		return false
	}
	if other.Empty() {
		return true
	}
	return i.Start <= other.Start && other.Stop <= i.Stop
}

// Intersect returns the interval covered by both i and other.  The second
// return value is false when the intersection is empty.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	if !i.Overlaps(other) {
		return Interval{}, false
	}
	result := Interval{Contig: i.Contig, Start: i.Start, Stop: i.Stop}
	if other.Start > result.Start {
		result.Start = other.Start
	}
	if other.Stop < result.Stop {
		result.Stop = other.Stop
	}
	return result, true
}

// String renders i as e.g. "chr17:7500000-7501000" (0-based half-open
// boundaries).
func (i Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", i.Contig, i.Start, i.Stop)
}

// ParseRegion parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a 0-based half-open Interval.  [0, PosTypeMax - 1) is returned
// when there is no positional restriction.
func ParseRegion(region string) (result Interval, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegion: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		result.Contig = region
		result.Start = 0
		result.Stop = PosTypeMax - 1
		return
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegion: empty contig ID")
		return
	}
	result.Contig = region[0:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("interval.ParseRegion: position %v in region string out of range", rangeStr)
			return
		}
		result.Start = PosType(pos1 - 1)
		result.Stop = PosType(pos1)
		return
	}
	var start1 int
	if start1, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegion: position %v in region string out of range", rangeStr[:dashPos])
		return
	}
	var end0 int
	if end0, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
		return
	}
	if end0 < start1 || end0 >= PosTypeMax {
		err = fmt.Errorf("interval.ParseRegion: invalid range string %v", rangeStr)
		return
	}
	result.Start = PosType(start1 - 1)
	result.Stop = PosType(end0)
	return
}
