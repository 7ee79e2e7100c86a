package server

import (
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
)

func NewRecordStoreServerAdapter() IRPCServerAdapter {
	return &recordStoreServerAdapterImpl{}
}

type recordStoreServerAdapterImpl struct{}

func (adapter *recordStoreServerAdapterImpl) Handle(req *common.Message, st store.IRecordStore) *common.Message {
	// Check for nil store
	if st == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTGet:
		rec, ok, err := st.GetRecord(req.Key)
		if err != nil || !ok {
			return common.NewGetResponse(nil, ok, err)
		}
		return common.NewGetResponse(rec.Serialize(), ok, nil)

	case common.MsgTPut:
		rec := &store.LockRecord{}
		if err := rec.Deserialize(req.Record); err != nil {
			return common.NewPutResponse(
				store.NewErrorf(store.RetCInvalidOperation, "malformed record: %v", err),
			)
		}
		return common.NewPutResponse(st.PutRecord(rec, req.Condition()))

	case common.MsgTUpdate:
		upd := store.RecordUpdate{}
		if err := upd.Deserialize(req.Update); err != nil {
			return common.NewUpdateResponse(
				store.NewErrorf(store.RetCInvalidOperation, "malformed update: %v", err),
			)
		}
		return common.NewUpdateResponse(st.UpdateRecord(req.Key, upd, req.Condition()))

	case common.MsgTDelete:
		return common.NewDeleteResponse(st.DeleteRecord(req.Key, req.Condition()))

	case common.MsgTTableExists:
		ok, err := st.TableExists()
		return common.NewTableExistsResponse(ok, err)

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC RecordStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
