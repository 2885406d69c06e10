package refstore

import (
	"fmt"

	table "github.com/untoldecay/reftable/internal/reftable"
)

// ReflogRefIterator walks distinct ref names that carry reflog entries,
// in ascending name order (spec.md §4.3). It does not expose individual
// entries; use ForEachReflogEntNewestFirst/OldestFirst for that.
type ReflogRefIterator struct {
	cur  *table.LogCursor
	last string
	have bool
	done bool
	err  error
}

// BeginReflogRefIterator starts iteration at the first ref name that
// carries any reflog entry.
func BeginReflogRefIterator(b *Backend) *ReflogRefIterator {
	if b.initErr != nil {
		return &ReflogRefIterator{err: b.initErr, done: true}
	}
	if err := b.stack.Reload(); err != nil {
		return &ReflogRefIterator{err: fmt.Errorf("reftable: reflog ref iterator: %w", err), done: true}
	}
	m := b.stack.Merged()
	if m == nil {
		return &ReflogRefIterator{done: true}
	}
	return &ReflogRefIterator{cur: m.SeekLog("")}
}

// Advance returns the next distinct ref name carrying reflog entries.
func (it *ReflogRefIterator) Advance() (string, bool, error) {
	if it.err != nil {
		return "", false, it.err
	}
	if it.done {
		return "", false, nil
	}
	for {
		rec, ok := it.cur.Next()
		if !ok {
			it.done = true
			return "", false, nil
		}
		if it.have && rec.RefName == it.last {
			continue
		}
		it.have = true
		it.last = rec.RefName
		return rec.RefName, true, nil
	}
}

// Peel always fails on this iterator type: reflog-ref iteration yields
// names, not objects, so peeling one is a programmer error.
func (it *ReflogRefIterator) Peel() (ObjectID, error) {
	return ObjectID{}, fmt.Errorf("reftable: reflog ref iterator: %w", ErrMisuse)
}

// Abort releases the iterator. Idempotent.
func (it *ReflogRefIterator) Abort() error {
	it.done = true
	return nil
}
