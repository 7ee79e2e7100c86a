package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"
)

// CommandType defines the possible write operations for the state machine.
type CommandType uint8

const (
	CommandTPut    CommandType = iota // Write a full record if the condition holds.
	CommandTUpdate                    // Apply a partial update if the condition holds.
	CommandTDelete                    // Remove a record if the condition holds.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTUpdate:
		return "Update"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents a conditional write to be executed by the state machine
// (a single entry in the raft log). The condition travels with the command so
// that it is evaluated at apply time, inside the replicated state machine --
// this is what makes the conditional write atomic across the cluster.
type Command struct {
	Type    CommandType
	Key     string               // storage key (Update/Delete; derived from Payload for Put)
	Cond    store.WriteCondition // precondition evaluated at apply time
	Payload []byte               // serialized LockRecord (Put) or RecordUpdate (Update)
}

// SizeBytes returns the exact number of bytes needed to serialize this command.
func (command *Command) SizeBytes() int {
	// Type + CondType + CondReleased + CondVersionLen + KeyLen + PayloadLen
	return 1 + 1 + 1 + 4 + len(command.Cond.Version) + 4 + len(command.Key) + 4 + len(command.Payload)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 1 byte for condition type,
// 1 byte for the condition's released flag,
// 4 bytes for condition version length (big endian) + N bytes version,
// 4 bytes for key length (big endian) + N bytes key,
// 4 bytes for payload length (big endian) + N bytes payload.
func (command *Command) Serialize() []byte {
	result := make([]byte, 0, command.SizeBytes())

	result = append(result, byte(command.Type))
	result = append(result, byte(command.Cond.Type))
	if command.Cond.Released {
		result = append(result, 1)
	} else {
		result = append(result, 0)
	}

	result = binary.BigEndian.AppendUint32(result, uint32(len(command.Cond.Version)))
	result = append(result, command.Cond.Version...)

	result = binary.BigEndian.AppendUint32(result, uint32(len(command.Key)))
	result = append(result, command.Key...)

	result = binary.BigEndian.AppendUint32(result, uint32(len(command.Payload)))
	result = append(result, command.Payload...)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	// Minimum size: 1 (Type) + 1 (CondType) + 1 (CondReleased) + 3x4 (lengths)
	if len(data) < 15 {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Cond.Type = store.ConditionType(data[1])
	command.Cond.Released = data[2] != 0
	pos := 3

	readChunk := func(what string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", what)
		}
		n := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(n) > len(data) {
			return nil, fmt.Errorf("data too short for %s of length %d", what, n)
		}
		chunk := data[pos : pos+int(n)]
		pos += int(n)
		return chunk, nil
	}

	version, err := readChunk("condition version")
	if err != nil {
		return err
	}
	command.Cond.Version = string(version)

	key, err := readChunk("key")
	if err != nil {
		return err
	}
	command.Key = string(key)

	payload, err := readChunk("payload")
	if err != nil {
		return err
	}
	if len(payload) > 0 {
		command.Payload = make([]byte, len(payload))
		copy(command.Payload, payload)
	} else {
		command.Payload = nil
	}

	return nil
}
