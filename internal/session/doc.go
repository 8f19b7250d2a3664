// Package session runs one durable SDDE endpoint: an engine whose state is
// checkpointed in a store and whose every pushed or received patch is
// logged there.
//
// A Session serializes all calls with a mutex, which is the external
// serialization the engine itself does not provide. Reopening a session
// loads the last checkpoint and re-applies the logged patches in seq order;
// each patch's embedded digest must match the state it lands on, so a
// broken or reordered log is detected rather than silently replayed.
package session
