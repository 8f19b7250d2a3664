// Package engine implements the SDDE multi-field delta engine.
//
// An Engine owns an ordered collection of indexed byte fields, the digest of
// that collection and the rename history of the field names. A sender calls
// Patch with the desired new field set and ships the returned bytes; a
// receiver holding the same prior state calls ApplyPatch with them.
//
// WIRE FORMAT:
//
//	[crc_len][crc][index stream]
//
// The index stream is a sequence of tokens, each optionally preceded by an
// ['v'][index] header that selects the field the following tokens belong to:
//
//	'r'                      remove the field
//	'm' varint(n) n bytes    record stream describing the field's new name
//	varint(n) n bytes        one difference record for the field's value
//
// Record lengths equal to 'm', 'r' or 'v' are written in a tagged varint
// tier, so a length byte is never mistaken for a control token.
//
// INVARIANTS:
//   - Fields are always visited in ascending index order
//   - ApplyPatch verifies the digest before touching any state
//   - A failed ApplyPatch leaves the engine exactly as it was
//   - After a successful Patch or ApplyPatch the stored digest matches the
//     collection, so consecutive patches chain
//
// Thread-safety: an Engine is not safe for concurrent use. It models one
// side of a sync and callers serialize access (see package session).
package engine
