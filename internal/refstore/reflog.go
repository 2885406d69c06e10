package refstore

import (
	"fmt"
	"time"

	"github.com/untoldecay/reftable/internal/identity"
	table "github.com/untoldecay/reftable/internal/reftable"
)

// ReflogEntry is one reflog record surfaced to a ForEachReflogEnt
// callback (spec.md §4.9).
type ReflogEntry struct {
	Old       ObjectID
	New       ObjectID
	Committer string // "Name <email> epoch +zone", per identity.Format
	TimeSec   int64
	TZOffset  int
	Message   string
}

// ReflogCallback is invoked once per entry; returning false stops
// iteration early.
type ReflogCallback func(ReflogEntry) bool

func entryFromRecord(rec table.LogRecord) ReflogEntry {
	id := identity.Identity{
		Name:     rec.Name,
		Email:    rec.Email,
		When:     time.Unix(rec.TimeSec, 0).UTC(),
		TZOffset: rec.TZOffset,
	}
	return ReflogEntry{
		Old:       rec.Old,
		New:       rec.New,
		Committer: identity.Format(id),
		TimeSec:   rec.TimeSec,
		TZOffset:  rec.TZOffset,
		Message:   rec.Message,
	}
}

// ForEachReflogEntNewestFirst streams refname's reflog entries in
// natural stream order (newest update-index first), stopping at the
// first record for a different ref or when cb returns false.
func (b *Backend) ForEachReflogEntNewestFirst(refname string, cb ReflogCallback) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: reflog %q: %w", refname, err)
	}
	m := b.stack.Merged()
	if m == nil {
		return nil
	}
	cur := m.SeekLog(refname)
	for {
		rec, ok := cur.Next()
		if !ok || rec.RefName != refname {
			return nil
		}
		if rec.IsTombstone() {
			continue
		}
		if !cb(entryFromRecord(rec)) {
			return nil
		}
	}
}

// ForEachReflogEntOldestFirst is ForEachReflogEntNewestFirst's reverse:
// entries are buffered, then delivered oldest update-index first.
func (b *Backend) ForEachReflogEntOldestFirst(refname string, cb ReflogCallback) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: reflog %q: %w", refname, err)
	}
	m := b.stack.Merged()
	if m == nil {
		return nil
	}
	cur := m.SeekLog(refname)
	var entries []ReflogEntry
	for {
		rec, ok := cur.Next()
		if !ok || rec.RefName != refname {
			break
		}
		if rec.IsTombstone() {
			continue
		}
		entries = append(entries, entryFromRecord(rec))
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if !cb(entries[i]) {
			return nil
		}
	}
	return nil
}

// PruneDecision reports whether a reflog entry should be expired.
type PruneDecision func(old, new ObjectID, email string, timeSec int64, tzOffset int, msg string) bool

// ReflogExpire scans refname's reflog and writes tombstones over every
// entry shouldPrune accepts, in a single new segment (spec.md §4.10). A
// tombstone carries the same update index as the entry it replaces, so
// the merged view's "later stack position wins on (RefName,
// UpdateIndex)" rule shadows the original without disturbing any other
// entry's ordering.
func (b *Backend) ReflogExpire(refname string, shouldPrune PruneDecision) error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := b.stack.Reload(); err != nil {
		return fmt.Errorf("reftable: reflog expire %q: %w", refname, err)
	}
	m := b.stack.Merged()
	if m == nil {
		return nil
	}

	var toPrune []uint64
	cur := m.SeekLog(refname)
	for {
		rec, ok := cur.Next()
		if !ok || rec.RefName != refname {
			break
		}
		if rec.IsTombstone() {
			continue
		}
		if shouldPrune(rec.Old, rec.New, rec.Email, rec.TimeSec, rec.TZOffset, rec.Message) {
			toPrune = append(toPrune, rec.UpdateIndex)
		}
	}
	if len(toPrune) == 0 {
		return nil
	}

	err := b.stack.Add(func(wr *table.Writer) error {
		for _, idx := range toPrune {
			if err := wr.AddLog(table.LogRecord{RefName: refname, UpdateIndex: idx}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reftable: reflog expire %q: %w", refname, asLockConflict(err))
	}
	return nil
}
