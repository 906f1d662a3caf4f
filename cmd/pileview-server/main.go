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
pileview-server serves reconciled pileup record sets over HTTP as JSON.  One
GET /tracks/<contig>?start=<0-based>&end=<0-based exclusive> request builds a
track for the region, pulls both sources, and returns the render-ready
records.
*/

import (
	"flag"
	"fmt"

	"github.com/genomeviz/pileview/source"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	port         = flag.Int("port", 8080, "HTTP service port")
	fastaPath    = flag.String("fasta", "", "Reference FASTA path (.fa, .fa.gz, or faidx-indexed); required")
	bamPath      = flag.String("bam", "", "Coordinate-sorted BAM path; required")
	bamIndexPath = flag.String("index", "", "BAM index path. Defaults to bampath + .bai")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *fastaPath == "" || *bamPath == "" {
		log.Fatalf("-fasta and -bam are required")
	}
	ctx := vcontext.Background()
	refSrc, err := source.OpenFastaReference(ctx, *fastaPath)
	if err != nil {
		log.Fatalf("opening %s: %v", *fastaPath, err)
	}
	defer refSrc.Close(ctx) // nolint: errcheck
	alnSrc := &source.BAMAlignments{Path: *bamPath, Index: *bamIndexPath}

	router := newRouter(refSrc, alnSrc)
	if err := router.Run(fmt.Sprintf(":%d", *port)); err != nil {
		log.Fatalf("%v", err)
	}
}
