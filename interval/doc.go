/*Package interval implements half-open genomic intervals, and
  interval-union operations used for per-contig coverage tracking.
  (Note the 'union'.  Overlapping intervals are merged, not tracked
  separately; use another representation when that is not the desired
  behavior.)
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
