// Package client implements the RPC client for the distributed lock registry.
// It provides an implementation of the store.IRecordStore interface that
// communicates with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to remote record store shards
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCRecordStore: Factory function that creates a client implementing the
//     store.IRecordStore interface. This client forwards all operations to remote
//     servers via the configured transport layer.
//
// Error Handling:
//
//	Store errors raised on the server side travel over the wire with their return
//	code intact, so predicates like store.IsConditionFailed work transparently on
//	the client. Transport failures are reported with RetCUnavailable, allowing a
//	lock client to distinguish an unreachable registry from a lost write condition.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	  TimeoutSecond: 5,
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create the record store client
//	st, _ := client.NewRPCRecordStore(1, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the store as backend for a lock client
//	lockClient, _ := lock.NewLockClient(lock.LockClientConfig{Store: st})
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
