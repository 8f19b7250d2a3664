// Package ir provides the shared types of the SDDE delta engine.
//
// This package contains the data model only: indexed fields, difference
// records, decoded patch entries, rename history and snapshots, plus the
// digest primitives used to fingerprint a folded field collection. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Field indexes are a single byte, so a collection holds at most 256 fields
//   - Collections are always iterated in ascending index order
//   - The transient "open" state of a difference under construction never
//     appears here; it is owned by the diff builder
package ir
