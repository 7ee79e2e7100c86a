package client

import (
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
)

// NewRPCRecordStore creates a new RPC backed record store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IRecordStore and an error
func NewRPCRecordStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IRecordStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC record store
	s := rpcRecordStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC record store
	return &s, nil
}

type rpcRecordStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcRecordStore) GetRecord(key string) (rec *store.LockRecord, found bool, err error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok {
		return nil, false, nil
	}
	rec = &store.LockRecord{}
	if err := rec.Deserialize(resp.Record); err != nil {
		return nil, false, store.NewErrorf(store.RetCInternalError, "malformed record in response: %v", err)
	}
	return rec, true, nil
}

func (i *rpcRecordStore) PutRecord(rec *store.LockRecord, cond store.WriteCondition) (err error) {
	if rec == nil {
		return store.NewError(store.RetCInvalidOperation, "record must not be nil")
	}
	req := common.NewPutRequest(rec.Serialize(), cond)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcRecordStore) UpdateRecord(key string, upd store.RecordUpdate, cond store.WriteCondition) (err error) {
	if err := upd.Validate(); err != nil {
		return err
	}
	req := common.NewUpdateRequest(key, upd.Serialize(), cond)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcRecordStore) DeleteRecord(key string, cond store.WriteCondition) (err error) {
	req := common.NewDeleteRequest(key, cond)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcRecordStore) TableExists() (ok bool, err error) {
	req := common.NewTableExistsRequest()
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
