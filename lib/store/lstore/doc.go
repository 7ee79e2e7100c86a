// Package lstore provides a local, in-memory implementation of the
// store.IRecordStore interface.
//
// Records live in a concurrent map; every conditional write evaluates its
// condition and applies its mutation inside the map's per-key compute
// callback, which makes each write atomic with respect to all other writers
// of the same key. This gives the store the compare-and-swap semantics the
// lock protocol requires without any coordination beyond the process
// boundary.
//
// The local store is intended for tests, the CLI in single-node mode, and
// as the shard backend of a single RPC server instance. For coordination
// across multiple server nodes use the dstore package instead.
package lstore
