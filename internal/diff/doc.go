// Package diff computes and replays byte level differences.
//
// Diff is a single left-to-right pass that aligns old and new by position.
// It is not a minimal edit distance diff: a shift in the middle of a
// sequence shows up as a Replace run up to the end of the shorter input,
// and deletions are only ever detected as one trailing shrink.
//
// Apply replays records strictly in order with no reordering or overlap
// resolution. Records produced by Diff always replay to the new sequence:
//
//	Apply(old, Diff(old, new)) == new
package diff
