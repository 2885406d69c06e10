package refstore

import "fmt"

// RawReadResult is the literal record behind a ref name, with no
// symref chasing or existence verification applied (spec.md §4.12).
type RawReadResult struct {
	Found    bool
	IsSymref bool
	Broken   bool // true when the record is a tombstone
	OID      ObjectID
	Referent string // valid when IsSymref
}

// RawRead returns refname's record exactly as stored: a symref target,
// a direct hash, a tombstone (returned as an error per spec.md, since a
// tombstone is not a usable value), or not-found.
func (b *Backend) RawRead(refname string) (RawReadResult, error) {
	if b.initErr != nil {
		return RawReadResult{}, b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return RawReadResult{}, fmt.Errorf("reftable: raw read %q: %w", refname, err)
	}
	rec, found := b.lookupMerged(refname)
	if !found {
		return RawReadResult{}, fmt.Errorf("reftable: raw read %q: %w", refname, ErrNotFound)
	}
	if rec.IsDeletion() {
		return RawReadResult{}, fmt.Errorf("reftable: raw read %q: %w", refname, ErrBrokenRef)
	}
	if rec.IsSymref {
		return RawReadResult{Found: true, IsSymref: true, Referent: rec.Target}, nil
	}
	return RawReadResult{Found: true, OID: rec.Value}, nil
}
