package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Get request
		{
			MsgType: common.MsgTGet,
			Key:     "test-lock-key",
		},

		// Get response carrying a serialized record
		{
			MsgType: common.MsgTGet,
			Record:  []byte("serialized-record-bytes"),
			Ok:      true,
		},

		// Conditional put request
		{
			MsgType:     common.MsgTPut,
			Key:         "test-lock-key",
			Record:      []byte("serialized-record-bytes"),
			CondType:    uint8(store.CondVersionEquals),
			CondVersion: "version-1234",
		},

		// Conditional update request with released flag
		{
			MsgType:      common.MsgTUpdate,
			Key:          "test-lock-key",
			Update:       []byte("serialized-update-bytes"),
			CondType:     uint8(store.CondVersionEqualsAndReleased),
			CondVersion:  "version-1234",
			CondReleased: true,
		},

		// Error response with a return code
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
			Code:    uint64(store.RetCConditionFailed),
		},

		// Message with all fields filled
		{
			MsgType:      common.MsgTCustom,
			Key:          "test-lock-key",
			Record:       []byte("record"),
			Update:       []byte("update"),
			CondType:     uint8(store.CondReleased),
			CondVersion:  "v",
			CondReleased: true,
			Ok:           true,
			Err:          "partial failure",
			Code:         uint64(store.RetCInternalError),
			Meta:         []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestConditionRoundTrip verifies that write conditions survive the wire format
// and can be reconstructed into their typed form on the receiving side.
func TestConditionRoundTrip(t *testing.T) {
	conditions := []store.WriteCondition{
		store.Unconditional(),
		store.IfAbsent(),
		store.IfVersionEquals("version-42"),
		store.IfReleased(true),
		store.IfVersionEqualsAndReleased("version-42", true),
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, cond := range conditions {
				msg := common.NewDeleteRequest("cond-key", cond)

				data, err := serializer.Serialize(*msg)
				if err != nil {
					t.Fatalf("Failed to serialize condition %d: %v", i, err)
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Fatalf("Failed to deserialize condition %d: %v", i, err)
				}

				if got := result.Condition(); !reflect.DeepEqual(cond, got) {
					t.Errorf("Condition %d doesn't match after round trip: expected %+v, got %+v",
						i, cond, got)
				}
			}
		})
	}
}

// TestErrorRoundTrip verifies that typed store errors keep their return code
// across serialization, so that error predicates work on the client side.
func TestErrorRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			cause := store.NewError(store.RetCConditionFailed, "version mismatch")
			msg := common.NewPutResponse(cause)

			data, err := serializer.Serialize(*msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			reconstructed := result.StoreError()
			if reconstructed == nil {
				t.Fatalf("Expected an error after round trip, got nil")
			}
			if !store.IsConditionFailed(reconstructed) {
				t.Errorf("Expected condition-failed error after round trip, got: %v", reconstructed)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Test cases for empty or zero values
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty strings and zero values",
			msg: common.Message{
				MsgType:     common.MsgTPut,
				Key:         "",
				CondType:    0,
				CondVersion: "",
				Ok:          false,
				Err:         "",
			},
		},
		{
			name: "Message with empty strings but Ok=true",
			msg: common.Message{
				MsgType: common.MsgTGet,
				Key:     "",
				Ok:      true,
				Record:  nil,
			},
		},
		{
			name: "Message with empty record slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTPut,
				Key:     "test",
				Record:  []byte{},
			},
		},
		{
			name: "Message with empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTCustom,
				Meta:    []byte{},
			},
		},
		{
			name: "Condition with released flag but empty version",
			msg: common.Message{
				MsgType:      common.MsgTUpdate,
				Key:          "test",
				CondType:     uint8(store.CondReleased),
				CondReleased: true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// Verify scalar fields
			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
			if tc.msg.Key != result.Key {
				t.Errorf("Key mismatch: expected '%s', got '%s'", tc.msg.Key, result.Key)
			}
			if tc.msg.CondType != result.CondType {
				t.Errorf("CondType mismatch: expected %d, got %d", tc.msg.CondType, result.CondType)
			}
			if tc.msg.CondVersion != result.CondVersion {
				t.Errorf("CondVersion mismatch: expected '%s', got '%s'", tc.msg.CondVersion, result.CondVersion)
			}
			if tc.msg.CondReleased != result.CondReleased {
				t.Errorf("CondReleased mismatch: expected %v, got %v", tc.msg.CondReleased, result.CondReleased)
			}
			if tc.msg.Ok != result.Ok {
				t.Errorf("Ok mismatch: expected %v, got %v", tc.msg.Ok, result.Ok)
			}
			if tc.msg.Err != result.Err {
				t.Errorf("Err mismatch: expected '%s', got '%s'", tc.msg.Err, result.Err)
			}
			if tc.msg.Code != result.Code {
				t.Errorf("Code mismatch: expected %d, got %d", tc.msg.Code, result.Code)
			}

			// Special handling for byte slices that may be nil or empty
			verifyBytes := func(field string, expected, got []byte) {
				if (expected == nil) != (got == nil) {
					t.Errorf("%s nil/non-nil mismatch: expected %v, got %v", field, expected, got)
					return
				}
				if len(expected) != len(got) {
					t.Errorf("%s length mismatch: expected %d, got %d", field, len(expected), len(got))
					return
				}
				for i := range expected {
					if expected[i] != got[i] {
						t.Errorf("%s content mismatch at index %d", field, i)
						return
					}
				}
			}
			verifyBytes("Record", tc.msg.Record, result.Record)
			verifyBytes("Update", tc.msg.Update, result.Update)
			verifyBytes("Meta", tc.msg.Meta, result.Meta)
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for record",
			data:        []byte{1, 2, 0, 0, 0, 10}, // Claims record length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated condition block",
			data:        []byte{1, 8, 2}, // Condition flag set but only the type byte present
			expectError: true,
		},
		{
			name:        "Truncated error code",
			data:        []byte{1, 32, 0, 0, 0, 2, 'e', 'r', 0, 0}, // Error chunk present, return code cut off
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
