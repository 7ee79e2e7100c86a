package serializer

import (
	"testing"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"SmallKeyOnly": {
			MsgType: common.MsgTGet,
			Key:     "k",
		},
		"MediumKeyOnly": {
			MsgType: common.MsgTGet,
			Key:     "medium-length-key-for-testing",
		},
		"LargeKeyOnly": {
			MsgType: common.MsgTGet,
			Key:     "this-is-a-very-large-key-that-could-be-used-for-naming-a-shared-resource-or-a-partition-in-some-cases",
		},
		"SmallRecord": {
			MsgType: common.MsgTPut,
			Key:     "key",
			Record:  []byte("r"),
		},
		"MediumRecord": {
			MsgType: common.MsgTPut,
			Key:     "key",
			Record:  []byte("medium length serialized record for testing serialization"),
		},
		"LargeRecord": {
			MsgType: common.MsgTPut,
			Key:     "key",
			Record:  make([]byte, 1024), // 1KB of data
		},
		"VeryLargeRecord": {
			MsgType: common.MsgTPut,
			Key:     "key",
			Record:  make([]byte, 1024*16), // 16KB of data
		},
		"ConditionalUpdate": {
			MsgType:     common.MsgTUpdate,
			Key:         "conditional-update-key",
			Update:      []byte("serialized-update-payload"),
			CondType:    uint8(store.CondVersionEquals),
			CondVersion: "8f14e45f-ceea-467f-a8d5-91be66be6c3a",
		},
		"CompleteMessage": {
			MsgType:      common.MsgTUpdate,
			Key:          "complete-test-key",
			Record:       []byte("test-record-data"),
			Update:       []byte("test-update-data"),
			CondType:     uint8(store.CondVersionEqualsAndReleased),
			CondVersion:  "8f14e45f-ceea-467f-a8d5-91be66be6c3a",
			CondReleased: true,
			Ok:           true,
			Err:          "This is a test error message",
			Code:         uint64(store.RetCConditionFailed),
			Meta:         []byte("test-meta-data-for-benchmarking"),
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
			Code:    uint64(store.RetCInternalError),
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			serializer := factory()
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize for benchmark setup: %v", err)
			}

			b.Run(name+"_"+msgName, func(b *testing.B) {
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result common.Message
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSerializedSize reports the serialized payload size per implementation
func BenchmarkSerializedSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes/msg")
			})
		}
	}
}
