package dstore

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RecordStateMachine is a state machine implementation for Dragonboat RAFT.
// It holds the lock record table of one shard and evaluates every write
// condition at apply time, which gives conditional writes linearizable
// semantics across the cluster.
type RecordStateMachine struct {
	replicaID uint64
	shardID   uint64

	mu      sync.RWMutex
	records map[string]*store.LockRecord
}

// CreateStateMachineFactory returns a function that is used by dragonboat to
// create a new state machine per shard replica.
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RecordStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			records:   make(map[string]*store.LockRecord),
		}
	}
}

// Lookup handles read-only queries against the record table.
func (fsm *RecordStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewErrorf(store.RetCInternalError, "invalid Query type: %T", itf)
	}

	fsm.mu.RLock()
	defer fsm.mu.RUnlock()

	switch q.Type {
	case internal.QueryTGet:
		rec, found := fsm.records[q.Key]
		result := internal.QueryResult{Ok: found}
		if found {
			result.Record = rec.Serialize()
		}
		return result, nil
	case internal.QueryTTableInfo:
		return internal.TableInfo{RecordCount: len(fsm.records)}, nil
	default:
		return nil, store.NewErrorf(store.RetCInvalidOperation, "unknown Query operation: %d", q.Type)
	}
}

// Update handles conditional writes on the record table.
// All write operations arrive serialized as internal.Command entries.
func (fsm *RecordStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		entries[idx].Result = fsm.apply(&cmd)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single command against the table. Caller holds the lock.
func (fsm *RecordStateMachine) apply(cmd *internal.Command) sm.Result {
	failResult := func(code store.RetCode, format string, args ...interface{}) sm.Result {
		return sm.Result{Value: uint64(code), Data: []byte(fmt.Sprintf(format, args...))}
	}

	switch cmd.Type {
	case internal.CommandTPut:
		rec := &store.LockRecord{}
		if err := rec.Deserialize(cmd.Payload); err != nil {
			return failResult(store.RetCInternalError, "put: bad record payload: %v", err)
		}
		key := rec.StorageKey()
		old, found := fsm.records[key]
		if !cmd.Cond.Evaluate(old, found) {
			return failResult(store.RetCConditionFailed, "put condition %s failed for key %q", cmd.Cond.Type, key)
		}
		fsm.records[key] = rec
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("put: key=%s", key))}

	case internal.CommandTUpdate:
		upd := store.RecordUpdate{}
		if err := upd.Deserialize(cmd.Payload); err != nil {
			return failResult(store.RetCInternalError, "update: bad update payload: %v", err)
		}
		if err := upd.Validate(); err != nil {
			return failResult(store.RetCInvalidOperation, "update: %v", err)
		}
		old, found := fsm.records[cmd.Key]
		if !found || !cmd.Cond.Evaluate(old, found) {
			return failResult(store.RetCConditionFailed, "update condition %s failed for key %q", cmd.Cond.Type, cmd.Key)
		}
		updated := old.Clone()
		upd.ApplyTo(updated)
		fsm.records[cmd.Key] = updated
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("update: key=%s", cmd.Key))}

	case internal.CommandTDelete:
		old, found := fsm.records[cmd.Key]
		if !found {
			if cmd.Cond.Type != store.CondNone {
				return failResult(store.RetCConditionFailed, "delete condition %s failed for key %q: no record", cmd.Cond.Type, cmd.Key)
			}
			return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("delete: key=%s (absent)", cmd.Key))}
		}
		if !cmd.Cond.Evaluate(old, found) {
			return failResult(store.RetCConditionFailed, "delete condition %s failed for key %q", cmd.Cond.Type, cmd.Key)
		}
		delete(fsm.records, cmd.Key)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("delete: key=%s", cmd.Key))}

	default:
		return failResult(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
	}
}

// PrepareSnapshot is not used. We don't need to prepare anything since the
// snapshot reads the table under the read lock.
func (fsm *RecordStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves the record table to the writer (gob of serialized records).
func (fsm *RecordStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	fsm.mu.RLock()
	snapshot := make(map[string][]byte, len(fsm.records))
	for key, rec := range fsm.records {
		snapshot[key] = rec.Serialize()
	}
	fsm.mu.RUnlock()

	return gob.NewEncoder(writer).Encode(snapshot)
}

// RecoverFromSnapshot restores the record table from a snapshot.
func (fsm *RecordStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	var snapshot map[string][]byte
	if err := gob.NewDecoder(r).Decode(&snapshot); err != nil {
		return err
	}

	records := make(map[string]*store.LockRecord, len(snapshot))
	for key, data := range snapshot {
		rec := &store.LockRecord{}
		if err := rec.Deserialize(data); err != nil {
			return fmt.Errorf("snapshot record %q: %w", key, err)
		}
		records[key] = rec
	}

	fsm.mu.Lock()
	fsm.records = records
	fsm.mu.Unlock()
	return nil
}

// Close performs any necessary cleanup.
func (fsm *RecordStateMachine) Close() error {
	return nil
}
