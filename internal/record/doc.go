// Package record implements the binary form of a single difference record
// and of a length prefixed stream of records.
//
// # Record Format
//
//	[action tag][':'][varint start]['-'][varint length][value]
//
// The action tag is 'r' (Replace), 'i' (Insert) or 'd' (Delete). Value is
// present for Replace and Insert only and always holds exactly length bytes.
//
// # Stream Format
//
//	[varint n][n record bytes][varint n][n record bytes]...
//
// # Parsing and Safety
//
// FromBytes trusts its input and panics on malformed bytes, like slicing
// does. ValidateFromBytes, NextInStream and ParseStream are for untrusted
// input and return a *DecodeError instead.
package record
