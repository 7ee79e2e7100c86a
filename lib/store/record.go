package store

import (
	"bytes"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// Lock Record
// --------------------------------------------------------------------------

// keySeparator joins partition key and sort key into a single storage key.
// A NUL byte cannot occur in either component of a well-formed key.
const keySeparator = "\x00"

// LockRecord is the persisted representation of a single lock. The pair
// (Key, SortKey) uniquely identifies a lock; VersionNumber is the sole
// fencing value and is regenerated on every successful write.
type LockRecord struct {
	Key           string        // partition key, identifies the resource (required)
	SortKey       string        // optional, for composite resource identity
	Owner         string        // identifier of the lock holder
	LeaseDuration time.Duration // window after which an unrenewed lock may be reclaimed
	VersionNumber string        // opaque record version number ("RVN"), rewritten on every write
	IsReleased    bool          // marks a voluntarily released but not deleted record
	Data          []byte        // optional opaque payload
	Attributes    map[string][]byte // additional attributes, opaque to the lock protocol
}

// StorageKey returns the single flat key under which this record is stored.
func (r *LockRecord) StorageKey() string {
	return StorageKey(r.Key, r.SortKey)
}

// StorageKey builds the flat storage key for a (partition key, sort key) pair.
func StorageKey(key, sortKey string) string {
	if sortKey == "" {
		return key
	}
	return key + keySeparator + sortKey
}

// Clone returns a deep copy of the record. Stores hand out clones so that
// callers can never alias the stored state.
func (r *LockRecord) Clone() *LockRecord {
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	if r.Attributes != nil {
		c.Attributes = make(map[string][]byte, len(r.Attributes))
		for k, v := range r.Attributes {
			c.Attributes[k] = append([]byte(nil), v...)
		}
	}
	return &c
}

// --------------------------------------------------------------------------
// Binary Codec
// --------------------------------------------------------------------------

// Record flag bits
const (
	recHasSortKey byte = 1 << 0
	recHasData    byte = 1 << 1
	recIsReleased byte = 1 << 2
)

const recordCodecVersion byte = 1

// SizeBytes returns the exact number of bytes needed to serialize this record.
func (r *LockRecord) SizeBytes() int {
	size := 1 + 1 // codec version + flags
	size += 4 + len(r.Key)
	if r.SortKey != "" {
		size += 4 + len(r.SortKey)
	}
	size += 4 + len(r.Owner)
	size += 4 + len(r.VersionNumber)
	size += 8 // lease duration (ms)
	if r.Data != nil {
		size += 4 + len(r.Data)
	}
	size += 2 // attribute count
	for k, v := range r.Attributes {
		size += 2 + len(k) + 4 + len(v)
	}
	return size
}

// Serialize serializes a record into a byte array. The layout is
// length-prefixed (big endian) with a leading codec version and flag byte;
// additional attributes are written last so unknown data always survives a
// round trip.
func (r *LockRecord) Serialize() []byte {
	buf := make([]byte, 0, r.SizeBytes())
	buf = append(buf, recordCodecVersion)

	var flags byte
	if r.SortKey != "" {
		flags |= recHasSortKey
	}
	if r.Data != nil {
		flags |= recHasData
	}
	if r.IsReleased {
		flags |= recIsReleased
	}
	buf = append(buf, flags)

	buf = appendString32(buf, r.Key)
	if r.SortKey != "" {
		buf = appendString32(buf, r.SortKey)
	}
	buf = appendString32(buf, r.Owner)
	buf = appendString32(buf, r.VersionNumber)

	buf = binary.BigEndian.AppendUint64(buf, uint64(r.LeaseDuration/time.Millisecond))

	if r.Data != nil {
		buf = appendBytes32(buf, r.Data)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Attributes)))
	for k, v := range r.Attributes {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(k)))
		buf = append(buf, k...)
		buf = appendBytes32(buf, v)
	}
	return buf
}

// Deserialize extracts all record fields from a byte array.
func (r *LockRecord) Deserialize(data []byte) error {
	rd := &reader{buf: data}

	version, err := rd.byte1()
	if err != nil {
		return err
	}
	if version != recordCodecVersion {
		return NewErrorf(RetCInternalError, "unknown record codec version %d", version)
	}
	flags, err := rd.byte1()
	if err != nil {
		return err
	}

	if r.Key, err = rd.string32(); err != nil {
		return err
	}
	r.SortKey = ""
	if flags&recHasSortKey != 0 {
		if r.SortKey, err = rd.string32(); err != nil {
			return err
		}
	}
	if r.Owner, err = rd.string32(); err != nil {
		return err
	}
	if r.VersionNumber, err = rd.string32(); err != nil {
		return err
	}

	leaseMS, err := rd.uint64()
	if err != nil {
		return err
	}
	r.LeaseDuration = time.Duration(leaseMS) * time.Millisecond

	r.Data = nil
	if flags&recHasData != 0 {
		if r.Data, err = rd.bytes32(); err != nil {
			return err
		}
	}
	r.IsReleased = flags&recIsReleased != 0

	attrCount, err := rd.uint16()
	if err != nil {
		return err
	}
	r.Attributes = nil
	if attrCount > 0 {
		r.Attributes = make(map[string][]byte, attrCount)
		for i := 0; i < int(attrCount); i++ {
			name, err := rd.string16()
			if err != nil {
				return err
			}
			value, err := rd.bytes32()
			if err != nil {
				return err
			}
			r.Attributes[name] = value
		}
	}
	// Every byte must be accounted for. Trailing data means the buffer was
	// written by a mismatched codec (e.g. an attribute count that wrapped).
	if rd.pos != len(rd.buf) {
		return NewErrorf(RetCInternalError, "record data has %d unexpected trailing bytes", len(rd.buf)-rd.pos)
	}
	return nil
}

// Equal reports whether two records carry identical state.
func (r *LockRecord) Equal(other *LockRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Key != other.Key || r.SortKey != other.SortKey ||
		r.Owner != other.Owner || r.LeaseDuration != other.LeaseDuration ||
		r.VersionNumber != other.VersionNumber || r.IsReleased != other.IsReleased ||
		!bytes.Equal(r.Data, other.Data) || len(r.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range r.Attributes {
		if !bytes.Equal(v, other.Attributes[k]) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Codec Helpers
// --------------------------------------------------------------------------

func appendString32(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBytes32(buf []byte, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// reader is a cursor over a serialized buffer with bounds checking.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return NewErrorf(RetCInternalError, "record data truncated at offset %d (need %d bytes)", r.pos, n)
	}
	return nil
}

func (r *reader) byte1() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) string16() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) string32() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) bytes32() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}
