package internal

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

func TestCommandSerializeRoundTrip(t *testing.T) {
	rec := &store.LockRecord{
		Key:           "resource",
		Owner:         "owner-1",
		LeaseDuration: 10 * time.Second,
		VersionNumber: "v1",
	}
	released := true
	upd := store.RecordUpdate{NewVersion: "v2", SetReleased: &released}

	commands := []Command{
		{Type: CommandTPut, Cond: store.IfAbsent(), Payload: rec.Serialize()},
		{Type: CommandTPut, Cond: store.IfVersionEqualsAndReleased("v1", true), Payload: rec.Serialize()},
		{Type: CommandTUpdate, Key: "resource", Cond: store.IfVersionEquals("v1"), Payload: upd.Serialize()},
		{Type: CommandTDelete, Key: "resource", Cond: store.IfVersionEquals("v1")},
		{Type: CommandTDelete, Key: "resource", Cond: store.Unconditional()},
	}

	for i, cmd := range commands {
		data := cmd.Serialize()
		if len(data) != cmd.SizeBytes() {
			t.Errorf("command %d: serialized %d bytes, SizeBytes() says %d", i, len(data), cmd.SizeBytes())
		}

		var got Command
		if err := got.Deserialize(data); err != nil {
			t.Fatalf("command %d: deserialize failed: %v", i, err)
		}

		if got.Type != cmd.Type || got.Key != cmd.Key || got.Cond != cmd.Cond || !bytes.Equal(got.Payload, cmd.Payload) {
			t.Errorf("command %d: round trip mismatch: got %+v want %+v", i, got, cmd)
		}
	}
}

func TestCommandDeserializeTruncated(t *testing.T) {
	cmd := Command{Type: CommandTUpdate, Key: "resource", Cond: store.IfVersionEquals("v1"), Payload: []byte("payload")}
	data := cmd.Serialize()

	for _, cut := range []int{0, 3, 10, len(data) - 1} {
		var got Command
		if err := got.Deserialize(data[:cut]); err == nil {
			t.Errorf("expected error for truncation at %d bytes", cut)
		}
	}
}
