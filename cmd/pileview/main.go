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
package main

/*
pileview renders the reconciled pileup for one genomic region as TSV: one row
per covered reference base, followed by one row per stacked alignment with its
assigned display row and its mismatches against the reference.
*/

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/source"
	"github.com/genomeviz/pileview/track"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
)

var (
	region       = flag.String("region", "", "Region to render. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; required")
	bamIndexPath = flag.String("index", "", "Input BAM index path. Defaults to bampath + .bai")
	outPath      = flag.String("out", "", "Output TSV path; default is stdout")
)

func pileviewUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath fapath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = pileviewUsage
	shutdown := grail.Init()
	defer shutdown()

	positionalArgs := flag.Args()
	if flag.NArg() != 2 {
		log.Fatalf("Expected exactly two positional arguments (bampath and fapath); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
	}
	if *region == "" {
		log.Fatalf("-region is required")
	}
	ctx := vcontext.Background()
	if err := run(ctx, positionalArgs[0], positionalArgs[1]); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}

func run(ctx context.Context, bampath, fapath string) (err error) {
	visible, err := interval.ParseRegion(*region)
	if err != nil {
		return err
	}
	refSrc, err := source.OpenFastaReference(ctx, fapath)
	if err != nil {
		return err
	}
	defer func() {
		if e := refSrc.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	// Bare-contig regions parse with an open end; clip to the contig.
	contigLen, err := refSrc.Len(visible.Contig)
	if err != nil {
		return err
	}
	if uint64(visible.Stop) > contigLen {
		visible.Stop = interval.PosType(contigLen)
	}

	alnSrc := &source.BAMAlignments{Path: bampath, Index: *bamIndexPath}
	tr, err := track.New(visible.Contig, visible.Start, visible.Stop, refSrc, alnSrc, nil)
	if err != nil {
		return err
	}
	tr.Start(ctx)
	log.Debug.Printf("track %v: state=%v", tr.Visible(), tr.State())
	return writeTSV(ctx, tr)
}

func writeTSV(ctx context.Context, tr *track.Track) (err error) {
	var w io.Writer = os.Stdout
	if *outPath != "" {
		var dst file.File
		if dst, err = file.Create(ctx, *outPath); err != nil {
			return err
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w = dst.Writer(ctx)
	}
	tsvw := tsv.NewWriter(w)
	// Positions are 1-based in text output; END is inclusive.
	tsvw.WriteString("#TYPE\tCHROM\tSTART\tEND\tNAME\tROW\tMISMATCHES")
	if err = tsvw.EndLine(); err != nil {
		return err
	}
	contig := tr.Visible().Contig
	for _, rec := range tr.Records() {
		switch rec.Kind {
		case track.RecordReference:
			tsvw.WriteString("ref")
			tsvw.WriteString(contig)
			tsvw.WriteUint32(uint32(rec.Pos + 1))
			tsvw.WriteUint32(uint32(rec.Pos + 1))
			tsvw.WriteByte(rec.Base)
			tsvw.WriteString(".")
			tsvw.WriteString(".")
		case track.RecordPileup:
			tsvw.WriteString("read")
			tsvw.WriteString(contig)
			tsvw.WriteUint32(uint32(rec.Span.Start + 1))
			tsvw.WriteUint32(uint32(rec.Span.Stop))
			tsvw.WriteString(rec.AlignmentID)
			tsvw.WriteUint32(uint32(rec.Row))
			mms := make([]string, 0, len(rec.Mismatches))
			for _, mm := range rec.Mismatches {
				mms = append(mms, fmt.Sprintf("%d:%c>%c", mm.Pos+1, mm.ReadBase, mm.RefBase))
			}
			if len(mms) == 0 {
				tsvw.WriteString(".")
			} else {
				tsvw.WriteString(strings.Join(mms, ","))
			}
		}
		if err = tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}
