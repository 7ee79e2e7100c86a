package base

import (
	"encoding/binary"
	"io"
	"net"
)

// Frame layout on the wire, all integers big endian:
//
//	8 bytes  shard id (routes the request to a record-store shard)
//	8 bytes  request id (correlates a response with its pending request)
//	4 bytes  payload length
//	N bytes  payload (a serialized message)
const frameHeaderSize = 20

// writeFrame sends a single framed message. Header and payload are handed to
// the kernel together via net.Buffers, so no intermediate copy is made; the
// caller must serialize concurrent writes to the same connection.
func writeFrame(conn net.Conn, shardID, requestID uint64, payload []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[0:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(payload)))

	buffers := net.Buffers{header, payload}
	_, err := buffers.WriteTo(conn)
	return err
}

// readFrame reads a single framed message, reusing buf when it is large
// enough. The returned payload aliases the read buffer and is only valid
// until the next readFrame call with the same buffer.
func readFrame(conn net.Conn, buf []byte) (shardID, requestID uint64, payload []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}
	if _, err = io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[0:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	length := binary.BigEndian.Uint32(buf[16:20])
	if length == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(length) {
		buf = make([]byte, length)
	}
	if _, err = io.ReadFull(conn, buf[:length]); err != nil {
		return 0, 0, nil, err
	}
	return shardID, requestID, buf[:length], nil
}
