// Package common provides core data structures and utilities shared across
// the distributed lock system's RPC layer. It defines fundamental types,
// configuration structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for record store operations over the wire
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components. Requests carry lock record or record update payloads (in
//     the lib/store binary codec) together with the write condition; error
//     responses carry the store return code so that condition-failed and
//     unavailable outcomes stay distinguishable across the network. Factory
//     methods create the request and response variants.
//
//   - MessageType: Enumeration defining all supported operations: the record
//     store operations (get, put, update, delete, tableExists) plus control
//     messages.
//
//   - ServerConfig: Comprehensive configuration for server nodes, including
//     RAFT parameters, storage settings, network configuration, and shard
//     layout. Provides utilities for converting to Dragonboat-specific
//     configurations.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the
//     application.
package common
