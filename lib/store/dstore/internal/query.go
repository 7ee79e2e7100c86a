package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve a record by storage key.
	QueryTTableInfo                  // Retrieve metadata about the record table.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTTableInfo:
		return "TableInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via
// SyncRead or StaleRead.
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The storage key for the Query (empty for QueryTTableInfo).
}

// QueryResult is the result of a QueryTGet operation.
type QueryResult struct {
	Ok     bool
	Record []byte // serialized LockRecord, nil if not found
}

// TableInfo is the result of a QueryTTableInfo operation.
type TableInfo struct {
	RecordCount int
}
