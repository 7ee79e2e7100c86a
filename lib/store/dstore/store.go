package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the distributed implementation of the IRecordStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the
// RecordStateMachine of one shard.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed record store instance which
// uses raft consensus to ensure strict linearizability of conditional writes
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IRecordStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// The state machine returns the outcome as a RetCode in Result.Value; any
// non-success code is translated back into a typed *store.Error so that
// predicates like store.IsConditionFailed work transparently.
func (s *storeImpl) write(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return store.NewError(store.RetCUnavailable, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return nil
	}
	return store.NewError(store.RetCUnavailable, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to query
// the state machine. If linearizability is not required, the stale parameter
// can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function
// retries up to 5 times.
//
// It returns the response of type R and an error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			storeErr := &store.Error{}
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCUnavailable, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCUnavailable, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) GetRecord(key string) (*store.LockRecord, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	if !res.Ok {
		return nil, false, nil
	}
	rec := &store.LockRecord{}
	if err := rec.Deserialize(res.Record); err != nil {
		return nil, false, store.NewErrorf(store.RetCInternalError, "corrupt record for key %q: %v", key, err)
	}
	return rec, true, nil
}

func (s *storeImpl) PutRecord(rec *store.LockRecord, cond store.WriteCondition) error {
	if rec == nil {
		return store.NewError(store.RetCInvalidOperation, "record must not be nil")
	}
	return s.write(internal.Command{
		Type:    internal.CommandTPut,
		Key:     rec.StorageKey(),
		Cond:    cond,
		Payload: rec.Serialize(),
	})
}

func (s *storeImpl) UpdateRecord(key string, upd store.RecordUpdate, cond store.WriteCondition) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	return s.write(internal.Command{
		Type:    internal.CommandTUpdate,
		Key:     key,
		Cond:    cond,
		Payload: upd.Serialize(),
	})
}

func (s *storeImpl) DeleteRecord(key string, cond store.WriteCondition) error {
	return s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
		Cond: cond,
	})
}

func (s *storeImpl) TableExists() (bool, error) {
	_, err := read[internal.TableInfo](
		s,
		internal.Query{
			Type: internal.QueryTTableInfo,
		},
		true, // Note: allow for stale reads
	)
	if err != nil {
		return false, err
	}
	return true, nil
}
