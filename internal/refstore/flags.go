package refstore

// UpdateFlags carries the per-update bits spec.md §3 names: HAVE_OLD,
// HAVE_NEW, NO_DEREF, LOG_ONLY.
type UpdateFlags uint8

const (
	// HaveOld marks that OldOID carries a precondition (possibly the
	// zero ObjectID, meaning "must not currently exist").
	HaveOld UpdateFlags = 1 << iota
	// HaveNew marks that NewOID should be written; without it the
	// update contributes a log entry only.
	HaveNew
	// NoDeref means the update applies to the symref record itself,
	// skipping fix-up expansion.
	NoDeref
	// LogOnly suppresses ref-record emission; only a log record is
	// written. Fix-up sets this on a symref's original update once it
	// has synthesized a child update for the real target.
	LogOnly
)

// Has reports whether bit is set.
func (f UpdateFlags) Has(bit UpdateFlags) bool { return f&bit != 0 }
