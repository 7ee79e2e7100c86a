// Package store defines the record model and the backing-store contract of
// the dLock system. Every lock is persisted as a single LockRecord; the
// store's atomic conditional write is the sole correctness anchor of the
// lock protocol.
//
// The package focuses on:
//   - A unified interface (IRecordStore) for lock record operations across
//     different backends
//   - The LockRecord type with a compact binary codec that preserves
//     additional attributes round-trip (they are opaque to the lock protocol)
//   - WriteCondition, the server-checked precondition vocabulary for
//     conditional puts, updates and deletes
//   - A structured error system using typed return codes so that callers can
//     tell a failed condition (contention) apart from a transient outage
//
// Implementations:
//
//	The repository ships three implementations of the IRecordStore interface:
//
//	- Local Store (lstore): a single-process, in-memory implementation whose
//	  conditional writes are made atomic through per-key compute operations
//	  on a concurrent map. Suitable for tests and single-node deployments.
//	  Available in the "github.com/ValentinKolb/dLock/lib/store/lstore" package.
//
//	- Distributed Store (dstore): an implementation built on the Dragonboat
//	  RAFT consensus library. Conditions are evaluated inside the replicated
//	  state machine at apply time, so conditional-write linearizability holds
//	  across multiple nodes.
//	  Available in the "github.com/ValentinKolb/dLock/lib/store/dstore" package.
//
//	- RPC Store (rpc/client): a client-side implementation that forwards all
//	  operations to a remote record-store shard over a pluggable transport.
//
// Any store without compare-and-swap-equivalent semantics keyed on the
// record version number is unsuitable as a backend; the lock protocol makes
// no attempt to emulate conditional writes on top of weaker primitives.
package store
