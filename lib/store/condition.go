package store

// --------------------------------------------------------------------------
// Write Conditions
// --------------------------------------------------------------------------

// ConditionType enumerates the server-checked preconditions a write can carry.
type ConditionType uint8

const (
	CondNone                     ConditionType = iota // Unconditional write (admin tooling only).
	CondRecordAbsent                                  // Only if no record exists (first acquisition).
	CondVersionEquals                                 // Only if the stored RVN equals the observed one.
	CondReleased                                      // Only if a record exists and its released flag matches.
	CondVersionEqualsAndReleased                      // RVN match and released flag match.
)

func (t ConditionType) String() string {
	switch t {
	case CondNone:
		return "None"
	case CondRecordAbsent:
		return "RecordAbsent"
	case CondVersionEquals:
		return "VersionEquals"
	case CondReleased:
		return "Released"
	case CondVersionEqualsAndReleased:
		return "VersionEqualsAndReleased"
	default:
		return "Unknown"
	}
}

// WriteCondition describes the precondition a conditional write is guarded
// by. The store evaluates it atomically against the currently stored record
// state; on mismatch the write fails with RetCConditionFailed.
type WriteCondition struct {
	Type     ConditionType
	Version  string // compared against the stored RVN (version conditions)
	Released bool   // compared against the stored released flag (released conditions)
}

// Unconditional returns a condition that always holds.
func Unconditional() WriteCondition {
	return WriteCondition{Type: CondNone}
}

// IfAbsent returns a condition that holds only when no record is stored.
func IfAbsent() WriteCondition {
	return WriteCondition{Type: CondRecordAbsent}
}

// IfVersionEquals returns a condition that holds only when the stored RVN
// still equals the given value.
func IfVersionEquals(version string) WriteCondition {
	return WriteCondition{Type: CondVersionEquals, Version: version}
}

// IfReleased returns a condition that holds only when a record exists and
// its released flag equals the given value.
func IfReleased(released bool) WriteCondition {
	return WriteCondition{Type: CondReleased, Released: released}
}

// IfVersionEqualsAndReleased returns a condition that holds only when both
// the stored RVN and the released flag match the given values.
func IfVersionEqualsAndReleased(version string, released bool) WriteCondition {
	return WriteCondition{Type: CondVersionEqualsAndReleased, Version: version, Released: released}
}

// Evaluate reports whether the condition holds for the given stored state.
// This must be called inside the store's atomic write path.
func (c WriteCondition) Evaluate(rec *LockRecord, found bool) bool {
	switch c.Type {
	case CondNone:
		return true
	case CondRecordAbsent:
		return !found
	case CondVersionEquals:
		return found && rec.VersionNumber == c.Version
	case CondReleased:
		return found && rec.IsReleased == c.Released
	case CondVersionEqualsAndReleased:
		return found && rec.VersionNumber == c.Version && rec.IsReleased == c.Released
	default:
		return false
	}
}
