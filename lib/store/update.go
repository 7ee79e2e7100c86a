package store

import (
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// Partial Record Update
// --------------------------------------------------------------------------

// RecordUpdate describes a partial-field update of a stored record.
// NewVersion is mandatory: every successful write rotates the RVN.
// Nil pointer fields are left untouched.
type RecordUpdate struct {
	NewVersion       string            // replacement RVN (required)
	NewOwner         *string           // replacement owner
	NewLeaseDuration *time.Duration    // replacement lease duration
	SetReleased      *bool             // replacement released flag
	NewData          []byte            // replacement payload
	DeleteData       bool              // remove the payload entirely
	NewAttributes    map[string][]byte // replacement attribute map (nil = keep)
}

// Validate checks the update for conflicting instructions. Supplying a new
// payload and requesting payload deletion in the same operation is a
// programmer error and is rejected before any store call.
func (u *RecordUpdate) Validate() error {
	if u.NewVersion == "" {
		return NewError(RetCInvalidOperation, "record update requires a new version number")
	}
	if u.DeleteData && u.NewData != nil {
		return NewError(RetCInvalidOperation, "cannot both delete the payload and supply a new one")
	}
	return nil
}

// ApplyTo mutates rec in place according to the update.
func (u *RecordUpdate) ApplyTo(rec *LockRecord) {
	rec.VersionNumber = u.NewVersion
	if u.NewOwner != nil {
		rec.Owner = *u.NewOwner
	}
	if u.NewLeaseDuration != nil {
		rec.LeaseDuration = *u.NewLeaseDuration
	}
	if u.SetReleased != nil {
		rec.IsReleased = *u.SetReleased
	}
	if u.DeleteData {
		rec.Data = nil
	} else if u.NewData != nil {
		rec.Data = append([]byte(nil), u.NewData...)
	}
	if u.NewAttributes != nil {
		attrs := make(map[string][]byte, len(u.NewAttributes))
		for k, v := range u.NewAttributes {
			attrs[k] = append([]byte(nil), v...)
		}
		rec.Attributes = attrs
	}
}

// --------------------------------------------------------------------------
// Binary Codec
// --------------------------------------------------------------------------

// Update flag bits
const (
	updHasOwner    byte = 1 << 0
	updHasLease    byte = 1 << 1
	updHasReleased byte = 1 << 2
	updReleasedVal byte = 1 << 3
	updHasData     byte = 1 << 4
	updDeleteData  byte = 1 << 5
	updHasAttrs    byte = 1 << 6
)

// Serialize serializes the update into a byte array (same length-prefixed,
// big endian layout as the record codec).
func (u *RecordUpdate) Serialize() []byte {
	var flags byte
	if u.NewOwner != nil {
		flags |= updHasOwner
	}
	if u.NewLeaseDuration != nil {
		flags |= updHasLease
	}
	if u.SetReleased != nil {
		flags |= updHasReleased
		if *u.SetReleased {
			flags |= updReleasedVal
		}
	}
	if u.NewData != nil {
		flags |= updHasData
	}
	if u.DeleteData {
		flags |= updDeleteData
	}
	if u.NewAttributes != nil {
		flags |= updHasAttrs
	}

	buf := []byte{flags}
	buf = appendString32(buf, u.NewVersion)
	if u.NewOwner != nil {
		buf = appendString32(buf, *u.NewOwner)
	}
	if u.NewLeaseDuration != nil {
		buf = binary.BigEndian.AppendUint64(buf, uint64(*u.NewLeaseDuration/time.Millisecond))
	}
	if u.NewData != nil {
		buf = appendBytes32(buf, u.NewData)
	}
	if u.NewAttributes != nil {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(u.NewAttributes)))
		for k, v := range u.NewAttributes {
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(k)))
			buf = append(buf, k...)
			buf = appendBytes32(buf, v)
		}
	}
	return buf
}

// Deserialize extracts all update fields from a byte array.
func (u *RecordUpdate) Deserialize(data []byte) error {
	rd := &reader{buf: data}

	flags, err := rd.byte1()
	if err != nil {
		return err
	}
	if u.NewVersion, err = rd.string32(); err != nil {
		return err
	}

	u.NewOwner = nil
	if flags&updHasOwner != 0 {
		owner, err := rd.string32()
		if err != nil {
			return err
		}
		u.NewOwner = &owner
	}

	u.NewLeaseDuration = nil
	if flags&updHasLease != 0 {
		leaseMS, err := rd.uint64()
		if err != nil {
			return err
		}
		lease := time.Duration(leaseMS) * time.Millisecond
		u.NewLeaseDuration = &lease
	}

	u.SetReleased = nil
	if flags&updHasReleased != 0 {
		released := flags&updReleasedVal != 0
		u.SetReleased = &released
	}

	u.NewData = nil
	if flags&updHasData != 0 {
		if u.NewData, err = rd.bytes32(); err != nil {
			return err
		}
	}
	u.DeleteData = flags&updDeleteData != 0

	u.NewAttributes = nil
	if flags&updHasAttrs != 0 {
		count, err := rd.uint16()
		if err != nil {
			return err
		}
		u.NewAttributes = make(map[string][]byte, count)
		for i := 0; i < int(count); i++ {
			name, err := rd.string16()
			if err != nil {
				return err
			}
			value, err := rd.bytes32()
			if err != nil {
				return err
			}
			u.NewAttributes[name] = value
		}
	}
	if rd.pos != len(rd.buf) {
		return NewErrorf(RetCInternalError, "update data has %d unexpected trailing bytes", len(rd.buf)-rd.pos)
	}
	return nil
}
