package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("serialized record-store request")
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeFrame(client, 100, 42, payload)
	}()

	// Undersized buffer, readFrame must grow it on its own.
	shardID, requestID, got, err := readFrame(server, make([]byte, 8))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	if shardID != 100 || requestID != 42 {
		t.Errorf("header mismatch: shard=%d request=%d", shardID, requestID)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %q, want %q", got, payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeFrame(client, 7, 1, nil)
	}()

	shardID, requestID, got, err := readFrame(server, nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	if shardID != 7 || requestID != 1 {
		t.Errorf("header mismatch: shard=%d request=%d", shardID, requestID)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("empty frame payload: got %v, want empty non-nil slice", got)
	}
}

func TestFrameBufferReuse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = writeFrame(client, 1, 1, []byte("first"))
		_ = writeFrame(client, 1, 2, []byte("second"))
	}()

	buf := make([]byte, 64)
	_, _, first, err := readFrame(server, buf)
	if err != nil {
		t.Fatalf("first readFrame failed: %v", err)
	}
	if string(first) != "first" {
		t.Fatalf("first payload: got %q", first)
	}

	// A large enough buffer is reused in place, the payload aliases it.
	if &first[0] != &buf[0] {
		t.Error("payload did not reuse the provided buffer")
	}

	_, _, second, err := readFrame(server, buf)
	if err != nil {
		t.Fatalf("second readFrame failed: %v", err)
	}
	if string(second) != "second" {
		t.Errorf("second payload: got %q", second)
	}
}
