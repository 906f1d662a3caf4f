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

// Package track reconciles asynchronously delivered reference bases and
// alignments for one visible genomic interval, and turns them into a stable,
// render-ready record set.
//
// The two data feeds arrive independently, possibly repeatedly, and in
// sub-ranges.  A Track owns one ReferenceCache and one AlignmentCache; every
// delivery that changes coverage of the visible interval triggers exactly one
// re-emission.  The emitted record set is a pure function of cache contents,
// so the final emission is identical for every arrival interleaving.
//
// Nothing in this package is safe for concurrent use.  A Track and its caches
// are confined to the goroutine driving source deliveries.
package track
