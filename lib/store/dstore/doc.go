// Package dstore implements a distributed, fault-tolerant lock record store
// using the Dragonboat RAFT consensus library. It provides a strongly
// consistent implementation of the store.IRecordStore interface that can
// operate across multiple nodes while maintaining linearizable consistency.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.IRecordStore interface and communicates
//     with the RAFT cluster. It serializes operations into commands, sends them
//     to the consensus layer, and processes responses.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that
//     processes commands and queries on each node. The state machine holds the
//     lock record table and evaluates write conditions at apply time.
//
//   - Communication Protocol: Defined in the internal package, this consists of
//     Command and Query structures with serialization logic for transmitting
//     operations across the network.
//
// Conditional Writes:
//
//	The central requirement of a lock record store is that write conditions are
//	evaluated atomically with the write itself. In dstore this property comes
//	"for free" from the RAFT log: all writes of a shard are applied strictly in
//	log order by a single state machine, so the condition of each command is
//	evaluated against exactly the state produced by the previous command. Two
//	clients racing for the same absent record will have their put-if-absent
//	commands ordered by the log, and exactly one of them succeeds.
//
// Write Operations:
//
//	All write operations (PutRecord, UpdateRecord, DeleteRecord) follow this flow:
//
//	1. The operation (and its condition) is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is executed on the state machine on each node
//	   (Update method in statemachine.go), where the condition is evaluated
//	5. The outcome is returned to the client as a RetCode; condition failures
//	   surface as typed store errors (store.IsConditionFailed)
//
// Read Operations:
//
//   - Linearizable Reads: GetRecord uses SyncRead which ensures the node
//     processing the read has applied all committed log entries locally before
//     processing the request. Lock acquisition logic depends on this guarantee.
//
//   - Stale Reads: TableExists uses StaleRead, which may return slightly
//     outdated information but with lower latency.
//
// Error Handling and Retries:
//
//	The store implements automatic retry logic for transient failures:
//
//	- System Busy: When Dragonboat returns ErrSystemBusy, the operation is
//	  retried after a short delay, up to a configurable number of attempts.
//
//	- Timeouts: All operations have a configurable timeout. If consensus cannot
//	  be reached within this period, the operation fails with RetCUnavailable,
//	  which lock clients treat as a transient outage rather than a lost lock.
//
// Snapshotting and Recovery:
//
//	The state machine implements Dragonboat's snapshotting interface: SaveSnapshot
//	gob-encodes the serialized record table, RecoverFromSnapshot restores it and
//	then replays any log entries committed after the snapshot was taken.
//
// Usage:
//
//	Setting up and using dstore requires several steps:
//
//	  // Create NodeHost (RAFT client)
//	  nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	  if err != nil { ... }
//
//	  // Create and start shard (RAFT server)
//	  err := nh.StartConcurrentReplica(
//	      clusterMembers,
//	      false,
//	      dstore.CreateStateMachineFactory(),
//	      shardConfig)
//	  if err != nil { ... }
//
//	  // Create store with appropriate timeout
//	  timeout := time.Duration(5) * time.Second
//	  store := dstore.NewDistributedStore(nh, shardID, timeout)
//
//	  // Wait for shard readiness then begin operations
//	  // ...
//
// Deployment Recommendations:
//
//   - Node Count: Deploy with an odd number of nodes (typically 3, 5, or 7) to
//     ensure majority consensus is always possible.
//
//   - Network Quality: Operation latency is highly dependent on network
//     conditions between nodes. Timeouts (and thus lock lease durations)
//     should be adjusted based on expected network performance.
//
// For scenarios where distributed consensus is not required, consider using the
// simpler and faster lstore package, which provides a single-node
// not-persistent implementation of the same interface.
package dstore
