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

// Coverage describes how much of a queried interval a cache holds.
type Coverage int

const (
	// CoverageUnrequested means no overlapping interval was ever requested.
	CoverageUnrequested Coverage = iota
	// CoveragePending means an overlapping request is outstanding but no data
	// has arrived.
	CoveragePending
	// CoveragePartial means some, but not all, of the interval has data.
	CoveragePartial
	// CoverageComplete means the whole interval has data.
	CoverageComplete
)

var coverageNames = [...]string{"Unrequested", "Pending", "Partial", "Complete"}

func (c Coverage) String() string {
	if c < 0 || int(c) >= len(coverageNames) {
		return "Coverage(?)"
	}
	return coverageNames[c]
}
