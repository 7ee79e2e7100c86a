// Package internal contains the wire types exchanged between the dstore
// client side and the replicated state machine: Command (conditional writes,
// serialized into raft log entries) and Query (read-only lookups passed to
// SyncRead/StaleRead). The command codec is a compact hand-rolled binary
// format since every write travels through the raft log.
package internal
