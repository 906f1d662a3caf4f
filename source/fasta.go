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
	"strings"

	"github.com/genomeviz/pileview/encoding/fasta"
	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/track"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// FastaReference serves reference bases from a FASTA file.  A sibling
// path+".fai" index, when present, enables random access without loading the
// file; gzipped FASTA is always loaded whole since it cannot be seeked.
type FastaReference struct {
	fa fasta.Fasta
	// in stays open for the lifetime of an indexed reference.
	in file.File
}

// OpenFastaReference opens path.  The path may be anything grailbio/base/file
// understands, including S3 URLs.
func OpenFastaReference(ctx context.Context, path string) (ref *FastaReference, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		defer func() {
			if e := in.Close(ctx); e != nil && err == nil {
				err = e
			}
		}()
		gz, err := gzip.NewReader(in.Reader(ctx))
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer gz.Close() // nolint: errcheck
		fa, err := fasta.New(gz)
		if err != nil {
			return nil, err
		}
		return &FastaReference{fa: fa}, nil
	}

	if idx, e := file.Open(ctx, path+".fai"); e == nil {
		defer idx.Close(ctx) // nolint: errcheck
		fa, err := fasta.NewIndexed(in.Reader(ctx), idx.Reader(ctx))
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, err
		}
		return &FastaReference{fa: fa, in: in}, nil
	}

	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	fa, err := fasta.New(in.Reader(ctx))
	if err != nil {
		return nil, err
	}
	return &FastaReference{fa: fa}, nil
}

// Close releases the underlying file handle, if any.
func (r *FastaReference) Close(ctx context.Context) error {
	if r.in == nil {
		return nil
	}
	err := r.in.Close(ctx)
	r.in = nil
	return err
}

// Contigs returns the sequence names in file order.
func (r *FastaReference) Contigs() []string { return r.fa.SeqNames() }

// Len returns the length of the named contig.
func (r *FastaReference) Len(contig string) (uint64, error) { return r.fa.Len(contig) }

// FetchReference implements track.ReferenceSource.  Intervals extending past
// the end of the contig are clipped; delivery is synchronous.
func (r *FastaReference) FetchReference(_ context.Context, iv interval.Interval, deliver func(track.ReferenceBases, error)) {
	n, err := r.fa.Len(iv.Contig)
	if err != nil {
		deliver(track.ReferenceBases{}, err)
		return
	}
	stop := iv.Stop
	if uint64(stop) > n {
		stop = interval.PosType(n)
	}
	if iv.Start >= stop {
		deliver(track.ReferenceBases{}, errors.Errorf("source: %v starts past end of contig (length %d)", iv, n))
		return
	}
	bases, err := r.fa.Get(iv.Contig, uint64(iv.Start), uint64(stop))
	if err != nil {
		deliver(track.ReferenceBases{}, err)
		return
	}
	deliver(track.ReferenceBases{Contig: iv.Contig, Start: iv.Start, Bases: bases}, nil)
}
