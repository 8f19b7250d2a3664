// Package harness runs sync scenarios between two SDDE endpoints.
//
// A scenario is a YAML document naming an initial field collection, an
// optional baseline of field names and a list of steps. For every step the
// sender endpoint ("alice") pushes the step's fields and renames and the
// receiver endpoint ("bob") applies the resulting patch. After each step the
// harness checks that both endpoints hold the same collection and digest and
// evaluates the step's expect clause.
//
// Steps may deliver a corrupted copy of the patch first. The corrupted copy
// must be rejected with the expected error code and leave the receiver
// untouched, after which the intact patch is delivered.
//
// Both endpoints live in one in-memory store with deterministic clocks and
// patch IDs, so the wire bytes of a scenario are reproducible and can be
// compared against golden files (see RunWithGolden). After the last step the
// receiver is reopened from the store to check that replaying its patch log
// reproduces its state.
package harness
