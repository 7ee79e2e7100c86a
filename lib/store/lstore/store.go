package lstore

import (
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

type storeImpl struct {
	records *xsync.MapOf[string, *store.LockRecord]
}

// NewLocalStore creates a new local record store instance.
// This store implementation is not distributed and only works in a single
// process. Conditional writes are made atomic by evaluating the condition
// and applying the mutation inside the concurrent map's per-key compute
// operation.
func NewLocalStore() store.IRecordStore {
	return &storeImpl{
		records: xsync.NewMapOf[string, *store.LockRecord](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) GetRecord(key string) (*store.LockRecord, bool, error) {
	rec, found := s.records.Load(key)
	if !found {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *storeImpl) PutRecord(rec *store.LockRecord, cond store.WriteCondition) error {
	if rec == nil || rec.Key == "" {
		return store.NewError(store.RetCInvalidOperation, "record with a partition key is required")
	}

	var condErr error
	s.records.Compute(rec.StorageKey(), func(old *store.LockRecord, loaded bool) (*store.LockRecord, bool) {
		if !cond.Evaluate(old, loaded) {
			condErr = store.NewErrorf(store.RetCConditionFailed, "put condition %s failed for key %q", cond.Type, rec.Key)
			return old, !loaded
		}
		return rec.Clone(), false
	})
	return condErr
}

func (s *storeImpl) UpdateRecord(key string, upd store.RecordUpdate, cond store.WriteCondition) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	var condErr error
	s.records.Compute(key, func(old *store.LockRecord, loaded bool) (*store.LockRecord, bool) {
		if !loaded || !cond.Evaluate(old, loaded) {
			condErr = store.NewErrorf(store.RetCConditionFailed, "update condition %s failed for key %q", cond.Type, key)
			return old, !loaded
		}
		updated := old.Clone()
		upd.ApplyTo(updated)
		return updated, false
	})
	return condErr
}

func (s *storeImpl) DeleteRecord(key string, cond store.WriteCondition) error {
	var condErr error
	s.records.Compute(key, func(old *store.LockRecord, loaded bool) (*store.LockRecord, bool) {
		if !loaded {
			// Deleting a missing record is a no-op only for unconditional deletes.
			if cond.Type != store.CondNone {
				condErr = store.NewErrorf(store.RetCConditionFailed, "delete condition %s failed for key %q: no record", cond.Type, key)
			}
			return nil, true
		}
		if !cond.Evaluate(old, loaded) {
			condErr = store.NewErrorf(store.RetCConditionFailed, "delete condition %s failed for key %q", cond.Type, key)
			return old, false
		}
		return nil, true
	})
	return condErr
}

func (s *storeImpl) TableExists() (bool, error) {
	// The in-memory table exists as soon as the store is created.
	return true, nil
}
