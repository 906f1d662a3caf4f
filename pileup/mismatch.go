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
	"fmt"

	"github.com/grailbio/hts/sam"
)

// Mismatch is one read base disagreeing with the reference.
type Mismatch struct {
	// AlignmentID identifies the read the base came from.
	AlignmentID string
	// Pos is the absolute 0-based reference coordinate.
	Pos PosType
	// ReadBase and RefBase are normalized (see NormalizeBase).
	ReadBase byte
	RefBase  byte
}

// RefWindow is a contiguous run of normalized reference bases starting at
// Start.  Positions without delivered data hold BaseUnknown.
type RefWindow struct {
	Start PosType
	Bases []byte
}

// base returns the reference base at absolute position pos.
func (w RefWindow) base(pos PosType) byte {
	return w.Bases[pos-w.Start]
}

// AppendMismatches walks the record's CIGAR against window and appends a
// Mismatch for every aligned position where the read base differs from the
// reference base.  Insertions, deletions, skips and clips never produce
// mismatches; neither does any position where either base is BaseUnknown.
//
// covered is a sorted endpoint sequence (interval.Union.Overlap form) of the
// reference positions that actually hold delivered data; it must lie within
// window.  Positions outside covered are ignored entirely, so no mismatch is
// ever produced from a reference position that hasn't arrived yet.
//
// The record is validated first; a CIGAR/sequence inconsistency returns an
// error with dst unchanged, and the caller is expected to skip just that
// record.
func AppendMismatches(dst []Mismatch, id string, samr *sam.Record, window RefWindow, covered []PosType) ([]Mismatch, error) {
	if err := ValidateRecord(samr); err != nil {
		return dst, err
	}
	if len(covered) == 0 {
		return dst, nil
	}
	seq := samr.Seq.Expand()
	posInRef := PosType(samr.Pos)
	posInRead := PosType(0)
	covIdx := 0
	nextStart := covered[covIdx]
	nextEnd := covered[covIdx+1]
	for _, co := range samr.Cigar {
		// Iterate over one CIGAR operation at a time.
		cLen := PosType(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			nextPosInRef := posInRef + cLen
			if nextPosInRef > nextStart {
				// At least one covered interval overlaps the current
				// CIGAR-match region.
				offset := PosType(0)
				for {
					if posInRef+offset < nextStart {
						offset = nextStart - posInRef
					}
					offsetStop := cLen
					if nextEnd-posInRef < offsetStop {
						offsetStop = nextEnd - posInRef
					}
					for ; offset < offsetStop; offset++ {
						refBase := NormalizeBase(window.base(posInRef + offset))
						readBase := NormalizeBase(seq[posInRead+offset])
						if readBase != refBase && refBase != BaseUnknown && readBase != BaseUnknown {
							dst = append(dst, Mismatch{
								AlignmentID: id,
								Pos:         posInRef + offset,
								ReadBase:    readBase,
								RefBase:     refBase,
							})
						}
					}
					if nextEnd > nextPosInRef {
						// Covered interval extends past this CIGAR-match
						// region.
						break
					}
					covIdx += 2
					if covIdx == len(covered) {
						return dst, nil
					}
					nextStart = covered[covIdx]
					nextEnd = covered[covIdx+1]
				}
			}
			posInRef = nextPosInRef
			posInRead += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			posInRead += cLen
		case sam.CigarSkipped:
			// Same handling as deletion.
			fallthrough
		case sam.CigarDeletion:
			posInRef += cLen
			// Whenever posInRef increases, we may move past some covered
			// interval(s).
			for posInRef >= nextEnd {
				covIdx += 2
				if covIdx == len(covered) {
					return dst, nil
				}
				nextEnd = covered[covIdx+1]
			}
			nextStart = covered[covIdx]
		case sam.CigarHardClipped, sam.CigarPadded:
			// do nothing
		default:
			return dst, fmt.Errorf("pileup.AppendMismatches: unexpected CIGAR code %v in %s", co, samr.Name)
		}
	}
	return dst, nil
}

// RefSpan returns the half-open reference span consumed by the record's
// CIGAR.
func RefSpan(samr *sam.Record) (start, end PosType) {
	start = PosType(samr.Pos)
	end = start
	for _, co := range samr.Cigar {
		end += PosType(co.Len() * co.Type().Consumes().Reference)
	}
	return start, end
}
