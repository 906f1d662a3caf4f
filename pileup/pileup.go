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

// Package pileup assigns aligned reads to non-overlapping display rows and
// computes their per-base mismatches against a reference window.
package pileup

import (
	"fmt"

	"github.com/genomeviz/pileview/interval"
	"github.com/grailbio/hts/sam"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = interval.PosTypeMax

// BaseUnknown is the canonical unknown-base sentinel.  Unknown bases never
// participate in mismatches, on either the read or the reference axis.
const BaseUnknown = byte('N')

// baseNormTable maps an ASCII byte to its canonical uppercase base.  Anything
// other than A/C/G/T collapses to BaseUnknown; in particular IUPAC ambiguity
// codes are treated as unknown rather than as mismatch fodder.
var baseNormTable = func() [256]byte {
	var table [256]byte
	for i := range table {
		table[i] = BaseUnknown
	}
	for _, b := range []byte("ACGT") {
		table[b] = b
		table[b+'a'-'A'] = b
	}
	return table
}()

// NormalizeBase returns the canonical uppercase form of b, mapping everything
// outside A/C/G/T to BaseUnknown.
func NormalizeBase(b byte) byte {
	return baseNormTable[b]
}

// NormalizeBases normalizes bases in place and returns the slice.
func NormalizeBases(bases []byte) []byte {
	for i, b := range bases {
		bases[i] = baseNormTable[b]
	}
	return bases
}

// ValidateRecord verifies that the record's CIGAR is internally consistent
// with its stored sequence: the read-axis lengths consumed by the CIGAR
// operations must sum to the sequence length.
func ValidateRecord(samr *sam.Record) error {
	readLen := 0
	for _, co := range samr.Cigar {
		readLen += co.Len() * co.Type().Consumes().Query
	}
	if readLen != samr.Seq.Length {
		return fmt.Errorf("pileup.ValidateRecord: CIGAR for %s consumes %d read bases, sequence has %d", samr.Name, readLen, samr.Seq.Length)
	}
	return nil
}
