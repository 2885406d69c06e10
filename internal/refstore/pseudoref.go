package refstore

import (
	"fmt"

	"github.com/untoldecay/reftable/internal/refhash"
	table "github.com/untoldecay/reftable/internal/reftable"
)

// checkOldOID implements the old-oid precondition shared by the
// transaction engine's Finish step and the pseudoref fast path
// (Design Note §9: "extract a single check_old_oid helper used by
// both"). A ref whose current record is a symref never satisfies a
// non-zero precondition and counts as already existing for a zero
// one — both treated as a conflict, the recommended resolution of the
// source's TODO on this point.
func checkOldOID(rec table.RefRecord, found bool, old ObjectID) error {
	resolved := found && !rec.IsSymref && !rec.IsDeletion()
	if old.Zero() {
		if found && !rec.IsDeletion() {
			return fmt.Errorf("%w: ref already exists", ErrLockConflict)
		}
		return nil
	}
	if !resolved || !refhash.Equal(rec.Value, old) {
		return fmt.Errorf("%w: old value mismatch", ErrLockConflict)
	}
	return nil
}

// WritePseudoref writes a single top-level ref outside a full
// transaction (spec.md §4.7), e.g. a head-like pointer such as
// CHERRY_PICK_HEAD. old may be nil to skip the precondition check; a
// non-nil old is checked via checkOldOID. A zero newOID writes a
// deletion record.
func (b *Backend) WritePseudoref(name string, newOID ObjectID, old *ObjectID) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: write pseudoref %q: %w", name, err)
	}
	if old != nil {
		rec, found := b.lookupMerged(name)
		if err := checkOldOID(rec, found, *old); err != nil {
			return fmt.Errorf("reftable: write pseudoref %q: %w", name, err)
		}
	}

	addition, err := b.stack.NewAddition()
	if err != nil {
		return fmt.Errorf("reftable: write pseudoref %q: %w", name, asLockConflict(err))
	}
	ts := addition.NextUpdateIndex()
	rec := table.RefRecord{Name: name, UpdateIndex: ts}
	if !newOID.Zero() {
		rec.Value = refhash.Copy(newOID)
	}
	if err := addition.Writer().AddRef(rec); err != nil {
		addition.Abort()
		return fmt.Errorf("reftable: write pseudoref %q: %w", name, err)
	}
	if err := addition.Commit(); err != nil {
		return fmt.Errorf("reftable: write pseudoref %q: %w", name, asLockConflict(err))
	}
	return nil
}

// DeletePseudoref is WritePseudoref with a null new-oid.
func (b *Backend) DeletePseudoref(name string, old *ObjectID) error {
	return b.WritePseudoref(name, ObjectID{}, old)
}
