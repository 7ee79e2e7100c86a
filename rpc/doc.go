// Package rpc provides a comprehensive framework for remote procedure calls
// in the distributed lock system. It acts as the communication layer between
// lock clients and record store servers, enabling conditional writes across
// network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: An IRecordStore implementation speaking the RPC protocol, so a
//     lock client can use a remote record store shard transparently.
//
//   - server: RPC server components that handle incoming requests, including
//     the adapter dispatching record store operations to local or raft shards.
package rpc
