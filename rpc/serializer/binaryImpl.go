package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey    byte = 1 << 0
	hasRecord byte = 1 << 1
	hasUpdate byte = 1 << 2
	hasCond   byte = 1 << 3
	hasOk     byte = 1 << 4
	hasErr    byte = 1 << 5
	hasMeta   byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// writeChunk writes a 4 byte length prefix followed by the data
	writeChunk := func(data []byte) {
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(data)))
		pos += 4
		copy(result[pos:pos+len(data)], data)
		pos += len(data)
	}

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		writeChunk([]byte(msg.Key))
	}

	// Handle Record
	if msg.Record != nil {
		flags |= hasRecord
		writeChunk(msg.Record)
	}

	// Handle Update
	if msg.Update != nil {
		flags |= hasUpdate
		writeChunk(msg.Update)
	}

	// Handle write condition (type, released flag, version)
	if msg.CondType != 0 {
		flags |= hasCond
		result[pos] = msg.CondType
		pos++
		if msg.CondReleased {
			result[pos] = 1
		}
		pos++
		writeChunk([]byte(msg.CondVersion))
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos++
	}

	// Handle Err (message string plus return code)
	if msg.Err != "" {
		flags |= hasErr
		writeChunk([]byte(msg.Err))
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Code)
		pos += 8
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		writeChunk(msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	// readChunk reads a 4 byte length prefix followed by the data
	readChunk := func(what string) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", what)
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+length > len(data) {
			return nil, fmt.Errorf("data too short for %s data", what)
		}
		chunk := data[pos : pos+length]
		pos += length
		return chunk, nil
	}

	// Read Key if present
	if flags&hasKey != 0 {
		chunk, err := readChunk("key")
		if err != nil {
			return err
		}
		msg.Key = string(chunk)
	} else {
		msg.Key = ""
	}

	// Read Record if present
	if flags&hasRecord != 0 {
		chunk, err := readChunk("record")
		if err != nil {
			return err
		}
		msg.Record = chunk
	} else {
		msg.Record = nil
	}

	// Read Update if present
	if flags&hasUpdate != 0 {
		chunk, err := readChunk("update")
		if err != nil {
			return err
		}
		msg.Update = chunk
	} else {
		msg.Update = nil
	}

	// Read write condition if present
	if flags&hasCond != 0 {
		if pos+2 > len(data) {
			return fmt.Errorf("data too short for condition header")
		}
		msg.CondType = data[pos]
		msg.CondReleased = data[pos+1] != 0
		pos += 2
		chunk, err := readChunk("condition version")
		if err != nil {
			return err
		}
		msg.CondVersion = string(chunk)
	} else {
		msg.CondType = 0
		msg.CondReleased = false
		msg.CondVersion = ""
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[pos] != 0
		pos++
	} else {
		msg.Ok = false
	}

	// Read Err if present
	if flags&hasErr != 0 {
		chunk, err := readChunk("error")
		if err != nil {
			return err
		}
		msg.Err = string(chunk)
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for error code")
		}
		msg.Code = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Err = ""
		msg.Code = 0
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		chunk, err := readChunk("meta")
		if err != nil {
			return err
		}
		msg.Meta = chunk
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Record != nil {
		size += 4 + len(msg.Record)
	}
	if msg.Update != nil {
		size += 4 + len(msg.Update)
	}
	if msg.CondType != 0 {
		size += 2 + 4 + len(msg.CondVersion) // type + released + version chunk
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) + 8 // error chunk + return code
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
