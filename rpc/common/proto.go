package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
//
// Record and Update carry lib/store binary codec payloads; the condition of
// a conditional write travels in the Cond* fields. Error responses carry the
// store return code so that typed store errors survive the wire.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    string `json:"key,omitempty"`    // Used for: Get, Update, Delete requests
	Record []byte `json:"record,omitempty"` // Used for: Put request, Get response (store.LockRecord codec)
	Update []byte `json:"update,omitempty"` // Used for: Update request (store.RecordUpdate codec)

	// Write condition (Put, Update, Delete requests)
	CondType     uint8  `json:"cond_type,omitempty"`
	CondVersion  string `json:"cond_version,omitempty"`
	CondReleased bool   `json:"cond_released,omitempty"`

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Get (record found), TableExists responses
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code uint64 `json:"code,omitempty"` // store.RetCode of the error, RetCSuccess if none

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// Condition reconstructs the write condition carried by a request.
func (m *Message) Condition() store.WriteCondition {
	return store.WriteCondition{
		Type:     store.ConditionType(m.CondType),
		Version:  m.CondVersion,
		Released: m.CondReleased,
	}
}

// StoreError reconstructs the typed store error of an error response, or nil
// if the response carries no error.
func (m *Message) StoreError() error {
	if m.Err == "" {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setError records an error on a response message, preserving the store
// return code when there is one.
func (m *Message) setError(err error) *Message {
	if err == nil {
		return m
	}
	m.Err = err.Error()
	storeErr := &store.Error{}
	if errors.As(err, &storeErr) {
		m.Code = uint64(storeErr.Code)
	} else {
		m.Code = uint64(store.RetCInternalError)
	}
	return m
}

func conditionFields(m *Message, cond store.WriteCondition) *Message {
	m.CondType = uint8(cond.Type)
	m.CondVersion = cond.Version
	m.CondReleased = cond.Released
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(record []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Ok:      ok,
		Record:  record,
	}
	return msg.setError(err)
}

// NewPutRequest creates a new Put request
func NewPutRequest(record []byte, cond store.WriteCondition) *Message {
	return conditionFields(&Message{
		MsgType: MsgTPut,
		Record:  record,
	}, cond)
}

// NewPutResponse creates a new Put response
func NewPutResponse(err error) *Message {
	return (&Message{MsgType: MsgTPut}).setError(err)
}

// NewUpdateRequest creates a new Update request
func NewUpdateRequest(key string, update []byte, cond store.WriteCondition) *Message {
	return conditionFields(&Message{
		MsgType: MsgTUpdate,
		Key:     key,
		Update:  update,
	}, cond)
}

// NewUpdateResponse creates a new Update response
func NewUpdateResponse(err error) *Message {
	return (&Message{MsgType: MsgTUpdate}).setError(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string, cond store.WriteCondition) *Message {
	return conditionFields(&Message{
		MsgType: MsgTDelete,
		Key:     key,
	}, cond)
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return (&Message{MsgType: MsgTDelete}).setError(err)
}

// NewTableExistsRequest creates a new TableExists request
func NewTableExistsRequest() *Message {
	return &Message{MsgType: MsgTTableExists}
}

// NewTableExistsResponse creates a new TableExists response
func NewTableExistsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTTableExists,
		Ok:      ok,
	}
	return msg.setError(err)
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	return msg.setError(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		Code:    uint64(store.RetCInternalError),
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTGet:
		return "get"
	case MsgTPut:
		return "put"
	case MsgTUpdate:
		return "update"
	case MsgTDelete:
		return "delete"
	case MsgTTableExists:
		return "tableExists"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "get":
		*t = MsgTGet
	case "put":
		*t = MsgTPut
	case "update":
		*t = MsgTUpdate
	case "delete":
		*t = MsgTDelete
	case "tableExists":
		*t = MsgTTableExists
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IRecordStore operations

	MsgTGet         // Get a lock record by key
	MsgTPut         // Put a lock record (conditional)
	MsgTUpdate      // Partially update a lock record (conditional)
	MsgTDelete      // Delete a lock record (conditional)
	MsgTTableExists // Check whether the record table is usable

	// Custom operations

	MsgTCustom // Custom operation type
)
