package reftable

import "github.com/untoldecay/reftable/internal/refhash"

// RefRecord is the on-disk (and in-memory) representation of one ref
// binding at a given update index. Exactly one of the payload shapes
// applies, matching spec.md §3's "Ref record" tuple:
//
//   - Value non-zero: direct object hash (Target/IsSymref both unset).
//   - Target non-empty: symref, pointing at another ref name.
//   - Neither set: tombstone (deletion).
type RefRecord struct {
	Name         string
	UpdateIndex  uint64
	Value        refhash.ID // direct hash, or zero
	TargetValue  refhash.ID // peeled tag target, optional, alongside Value
	Target       string     // symref target ref name, or ""
	IsSymref     bool
}

// IsDeletion reports whether this record carries no payload at all.
func (r *RefRecord) IsDeletion() bool {
	return !r.IsSymref && r.Value.Zero()
}

// Clone returns a deep copy, so that a record handed back by a reader
// can be held onto past the next Advance() call.
func (r RefRecord) Clone() RefRecord {
	r.Value = refhash.Copy(r.Value)
	r.TargetValue = refhash.Copy(r.TargetValue)
	return r
}

// LogRecord is the on-disk representation of one reflog entry, matching
// spec.md §3's "Log record" tuple. A record with both Old and New zero is
// a tombstone (used by expiry).
type LogRecord struct {
	RefName     string
	UpdateIndex uint64
	Old         refhash.ID
	New         refhash.ID
	Name        string
	Email       string
	TimeSec     int64
	TZOffset    int
	Message     string
}

// IsTombstone reports whether this log record shadows an earlier one
// without contributing a value of its own.
func (l *LogRecord) IsTombstone() bool {
	return l.Old.Zero() && l.New.Zero()
}

// Clone returns a deep copy.
func (l LogRecord) Clone() LogRecord {
	l.Old = refhash.Copy(l.Old)
	l.New = refhash.Copy(l.New)
	return l
}
