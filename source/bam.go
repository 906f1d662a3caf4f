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
package source

import (
	"context"
	"io"

	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/pileup"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// BAMAlignments serves alignment records from a coordinate-sorted BAM file.
// When Index (or path+".bai") exists, each fetch seeks straight to the
// requested region; otherwise the whole file is scanned per fetch, which is
// acceptable for small files only.  Each fetch opens its own reader, so a
// BAMAlignments is safe to fetch from repeatedly.
type BAMAlignments struct {
	// Path of the *.bam file.  Must be nonempty.  May be an S3 URL.
	Path string
	// Index is the pathname of the *.bam.bai file.  If "", Path + ".bai".
	Index string
}

func (s *BAMAlignments) indexPath() string {
	if s.Index != "" {
		return s.Index
	}
	return s.Path + ".bai"
}

// Header reads just the BAM header.
func (s *BAMAlignments) Header(ctx context.Context) (*sam.Header, error) {
	in, err := file.Open(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	br, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, err
	}
	defer br.Close() // nolint: errcheck
	return br.Header(), nil
}

// FetchAlignments implements track.AlignmentSource.  Delivery is synchronous.
func (s *BAMAlignments) FetchAlignments(ctx context.Context, iv interval.Interval, containedOnly bool, deliver func([]*sam.Record, error)) {
	recs, err := s.scan(ctx, iv, containedOnly)
	deliver(recs, err)
}

func (s *BAMAlignments) scan(ctx context.Context, iv interval.Interval, containedOnly bool) (recs []*sam.Record, err error) {
	in, err := file.Open(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	br, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := br.Close(); e != nil && err == nil {
			err = e
		}
	}()

	var ref *sam.Reference
	for _, r := range br.Header().Refs() {
		if r.Name() == iv.Contig {
			ref = r
			break
		}
	}
	if ref == nil {
		return nil, errors.Errorf("source: contig %s not in %s", iv.Contig, s.Path)
	}

	if empty, e := s.seekToRegion(ctx, br, ref, iv); e != nil || empty {
		return nil, e
	}
	for {
		rec, e := br.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return nil, e
		}
		if rec.Ref == nil || rec.Ref.ID() != ref.ID() {
			if rec.Ref != nil && rec.Ref.ID() > ref.ID() {
				break
			}
			continue
		}
		start, end := pileup.RefSpan(rec)
		if start >= iv.Stop {
			// Coordinate-sorted input: nothing later can overlap.
			break
		}
		if end <= iv.Start {
			continue
		}
		if containedOnly && (start < iv.Start || end > iv.Stop) {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// seekToRegion positions br at the first chunk that can contain records
// overlapping iv, using the .bai index when available.  Returns empty=true
// when the index proves the region holds no records.
func (s *BAMAlignments) seekToRegion(ctx context.Context, br *bam.Reader, ref *sam.Reference, iv interval.Interval) (empty bool, err error) {
	indexIn, err := file.Open(ctx, s.indexPath())
	if err != nil {
		// No index: scan from the top.
		return false, nil
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	idx, err := bam.ReadIndex(indexIn.Reader(ctx))
	if err != nil {
		return false, errors.Wrapf(err, "source: reading %s", s.indexPath())
	}
	chunks, err := idx.Chunks(ref, int(iv.Start), int(iv.Stop))
	if err == index.ErrInvalid || len(chunks) == 0 {
		// The index has no entries for this region.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, br.Seek(chunks[0].Begin)
}
