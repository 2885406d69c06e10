package refstore

import (
	"fmt"
	"sort"

	"github.com/untoldecay/reftable/internal/refhash"
	table "github.com/untoldecay/reftable/internal/reftable"
)

// DeleteRefs deletes every name in names in one segment (spec.md
// §4.8): names are sorted lexicographically, a deletion ref record is
// written for each, then a log record per name carrying msg and
// whatever the merged view reported as that ref's value beforehand.
func (b *Backend) DeleteRefs(msg string, names []string) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: delete refs: %w", err)
	}
	id, err := b.committerIdentity()
	if err != nil {
		return fmt.Errorf("reftable: delete refs: %w", err)
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	err = b.stack.Add(func(wr *table.Writer) error {
		ts := wr.MinUpdateIndex()
		for _, name := range sorted {
			if err := wr.AddRef(table.RefRecord{Name: name, UpdateIndex: ts}); err != nil {
				return err
			}
		}
		for _, name := range sorted {
			rec, found := b.lookupMerged(name)
			var old refhash.ID
			if found && !rec.IsSymref && !rec.IsDeletion() {
				old = refhash.Copy(rec.Value)
			}
			log := table.LogRecord{
				RefName: name, UpdateIndex: ts, Old: old,
				Name: id.Name, Email: id.Email, TimeSec: id.When.Unix(), TZOffset: id.TZOffset,
				Message: msg,
			}
			if err := wr.AddLog(log); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reftable: delete refs: %w", asLockConflict(err))
	}
	return nil
}

// CreateSymref writes refname as a symref pointing at target (spec.md
// §4.8). A log record is emitted only if either refname's previous
// value or target's current value resolves to an object hash.
func (b *Backend) CreateSymref(refname, target, msg string) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: create symref: %w", err)
	}
	id, err := b.committerIdentity()
	if err != nil {
		return fmt.Errorf("reftable: create symref: %w", err)
	}

	prevRec, prevFound := b.lookupMerged(refname)
	targetRec, targetFound := b.lookupMerged(target)

	err = b.stack.Add(func(wr *table.Writer) error {
		ts := wr.MinUpdateIndex()
		if err := wr.AddRef(table.RefRecord{Name: refname, UpdateIndex: ts, IsSymref: true, Target: target}); err != nil {
			return err
		}

		var old, new refhash.ID
		haveLog := false
		if prevFound && !prevRec.IsSymref && !prevRec.IsDeletion() {
			old = refhash.Copy(prevRec.Value)
			haveLog = true
		}
		if targetFound && !targetRec.IsSymref && !targetRec.IsDeletion() {
			new = refhash.Copy(targetRec.Value)
			haveLog = true
		}
		if !haveLog {
			return nil
		}
		log := table.LogRecord{
			RefName: refname, UpdateIndex: ts, Old: old, New: new,
			Name: id.Name, Email: id.Email, TimeSec: id.When.Unix(), TZOffset: id.TZOffset,
			Message: msg,
		}
		return wr.AddLog(log)
	})
	if err != nil {
		return fmt.Errorf("reftable: create symref: %w", asLockConflict(err))
	}
	return nil
}

// Rename moves oldName's record to newName (spec.md §4.8), refusing if
// newName already has a live record. If the renamed ref carried a
// direct hash, two log records are written: a deletion under oldName
// and a creation under newName, both with msg. Renaming a symref's log
// semantics are an acknowledged open question (spec.md §9); this
// implementation writes no log record in that case, matching
// CreateSymref's "omit if nothing resolves to a hash" rule.
func (b *Backend) Rename(oldName, newName, msg string) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: rename: %w", err)
	}

	oldRec, found := b.lookupMerged(oldName)
	if !found || oldRec.IsDeletion() {
		return fmt.Errorf("reftable: rename: %w: %q", ErrNotFound, oldName)
	}
	if destRec, destFound := b.lookupMerged(newName); destFound && !destRec.IsDeletion() {
		return fmt.Errorf("reftable: rename: %q already exists", newName)
	}

	id, err := b.committerIdentity()
	if err != nil {
		return fmt.Errorf("reftable: rename: %w", err)
	}

	hadHash := !oldRec.IsSymref && !oldRec.Value.Zero()
	prevHash := refhash.Copy(oldRec.Value)
	names := []string{oldName, newName}
	sort.Strings(names)

	err = b.stack.Add(func(wr *table.Writer) error {
		ts := wr.MinUpdateIndex()
		for _, n := range names {
			if n == oldName {
				if err := wr.AddRef(table.RefRecord{Name: oldName, UpdateIndex: ts}); err != nil {
					return err
				}
				continue
			}
			newRec := oldRec.Clone()
			newRec.Name = newName
			newRec.UpdateIndex = ts
			if err := wr.AddRef(newRec); err != nil {
				return err
			}
		}
		if !hadHash {
			return nil
		}
		for _, n := range names {
			var log table.LogRecord
			if n == oldName {
				log = table.LogRecord{
					RefName: oldName, UpdateIndex: ts, Old: refhash.Copy(prevHash),
					Name: id.Name, Email: id.Email, TimeSec: id.When.Unix(), TZOffset: id.TZOffset,
					Message: msg,
				}
			} else {
				log = table.LogRecord{
					RefName: newName, UpdateIndex: ts, New: refhash.Copy(prevHash),
					Name: id.Name, Email: id.Email, TimeSec: id.When.Unix(), TZOffset: id.TZOffset,
					Message: msg,
				}
			}
			if err := wr.AddLog(log); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reftable: rename: %w", asLockConflict(err))
	}
	return nil
}
