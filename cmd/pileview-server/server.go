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

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/grailbio/base/log"

	"github.com/genomeviz/pileview/interval"
	"github.com/genomeviz/pileview/source"
	"github.com/genomeviz/pileview/track"
)

// JSON shapes returned to the renderer.  Bases travel as one-character
// strings; positions are 0-based half-open, matching the htsget convention
// for start/end query parameters.
type mismatchJSON struct {
	Pos      int32  `json:"pos"`
	ReadBase string `json:"readBase"`
	RefBase  string `json:"refBase"`
}

type referenceJSON struct {
	Pos  int32  `json:"pos"`
	Base string `json:"base"`
}

type pileJSON struct {
	ID         string         `json:"id"`
	Row        int            `json:"row"`
	Start      int32          `json:"start"`
	End        int32          `json:"end"`
	Mismatches []mismatchJSON `json:"mismatches"`
}

type trackJSON struct {
	RequestID string          `json:"requestId"`
	Contig    string          `json:"contig"`
	Start     int32           `json:"start"`
	End       int32           `json:"end"`
	State     string          `json:"state"`
	Reference []referenceJSON `json:"reference"`
	Piles     []pileJSON      `json:"piles"`
}

type errorJSON struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
}

func newRouter(refSrc *source.FastaReference, alnSrc track.AlignmentSource) *gin.Engine {
	router := gin.Default()
	router.GET("/tracks/:contig", newTrackHandler(refSrc, alnSrc))
	return router
}

func newTrackHandler(refSrc *source.FastaReference, alnSrc track.AlignmentSource) func(c *gin.Context) {
	return func(c *gin.Context) {
		reqID := uuid.New().String()
		contig := c.Param("contig")
		start, err := queryPos(c, "start", 0)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON{reqID, err.Error()})
			return
		}
		end, err := queryPos(c, "end", interval.PosTypeMax)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON{reqID, err.Error()})
			return
		}
		contigLen, err := refSrc.Len(contig)
		if err != nil {
			c.JSON(http.StatusNotFound, errorJSON{reqID, err.Error()})
			return
		}
		if uint64(end) > contigLen {
			end = interval.PosType(contigLen)
		}

		tr, err := track.New(contig, start, end, refSrc, alnSrc, nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON{reqID, err.Error()})
			return
		}
		tr.Start(c.Request.Context())
		log.Debug.Printf("request %s: %v state=%v", reqID, tr.Visible(), tr.State())
		c.JSON(http.StatusOK, toTrackJSON(reqID, tr))
	}
}

func queryPos(c *gin.Context, name string, dflt interval.PosType) (interval.PosType, error) {
	s := c.Query(name)
	if s == "" {
		return dflt, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, errBadParam(name, s)
	}
	return interval.PosType(v), nil
}

type badParamError struct{ name, value string }

func (e badParamError) Error() string { return "invalid " + e.name + " parameter: " + e.value }

func errBadParam(name, value string) error { return badParamError{name, value} }

func toTrackJSON(reqID string, tr *track.Track) trackJSON {
	visible := tr.Visible()
	out := trackJSON{
		RequestID: reqID,
		Contig:    visible.Contig,
		Start:     int32(visible.Start),
		End:       int32(visible.Stop),
		State:     tr.State().String(),
		Reference: []referenceJSON{},
		Piles:     []pileJSON{},
	}
	for _, rec := range tr.Records() {
		switch rec.Kind {
		case track.RecordReference:
			out.Reference = append(out.Reference, referenceJSON{
				Pos:  int32(rec.Pos),
				Base: string(rec.Base),
			})
		case track.RecordPileup:
			pile := pileJSON{
				ID:         rec.AlignmentID,
				Row:        rec.Row,
				Start:      int32(rec.Span.Start),
				End:        int32(rec.Span.Stop),
				Mismatches: []mismatchJSON{},
			}
			for _, mm := range rec.Mismatches {
				pile.Mismatches = append(pile.Mismatches, mismatchJSON{
					Pos:      int32(mm.Pos),
					ReadBase: string(mm.ReadBase),
					RefBase:  string(mm.RefBase),
				})
			}
			out.Piles = append(out.Piles, pile)
		}
	}
	return out
}
