package refstore

import (
	"fmt"

	table "github.com/untoldecay/reftable/internal/reftable"
)

// IterFlags controls a RefIterator's filtering (spec.md §4.2).
type IterFlags uint8

const (
	// IterPerWorktreeOnly restricts iteration to refs the host classifies
	// as RefPerWorktree.
	IterPerWorktreeOnly IterFlags = 1 << iota
	// IterIncludeBroken yields refs whose resolution is broken instead of
	// skipping them, marking RefEntry.Broken true.
	IterIncludeBroken
)

// RefEntry is one ref surfaced by a RefIterator.
type RefEntry struct {
	Name     string
	OID      ObjectID
	IsSymref bool
	Target   string
	Peeled   ObjectID // set only when the underlying record carried a peeled tag value
	Broken   bool
}

// RefIterator walks the merged view in ascending name order starting at
// a prefix, applying the host's resolution and filtering rules.
type RefIterator struct {
	b      *Backend
	prefix string
	flags  IterFlags
	cur    *table.RefCursor
	err    error
	done   bool
}

// BeginRefIterator starts iteration at the first ref name >= prefix.
func BeginRefIterator(b *Backend, prefix string, flags IterFlags) *RefIterator {
	if b.initErr != nil {
		return &RefIterator{b: b, err: b.initErr, done: true}
	}
	if err := b.stack.Reload(); err != nil {
		return &RefIterator{b: b, err: fmt.Errorf("reftable: ref iterator: %w", err), done: true}
	}
	m := b.stack.Merged()
	if m == nil {
		return &RefIterator{b: b, done: true}
	}
	return &RefIterator{b: b, prefix: prefix, flags: flags, cur: m.SeekRef(prefix)}
}

// Advance yields the next matching ref, implementing spec.md §4.2's
// per-record steps: prefix-bound end check, tombstone skip, worktree
// filter, and host-backed resolution with broken-ref handling.
func (it *RefIterator) Advance() (RefEntry, bool, error) {
	if it.err != nil {
		return RefEntry{}, false, it.err
	}
	if it.done {
		return RefEntry{}, false, nil
	}

	for {
		rec, ok := it.cur.Next()
		if !ok {
			it.done = true
			return RefEntry{}, false, nil
		}
		if it.prefix != "" && !hasPrefix(rec.Name, it.prefix) {
			it.done = true
			return RefEntry{}, false, nil
		}
		if rec.IsDeletion() {
			continue
		}
		if it.flags&IterPerWorktreeOnly != 0 && it.b.host.RefType(rec.Name) != RefPerWorktree {
			continue
		}

		entry := RefEntry{Name: rec.Name}
		if rec.IsSymref {
			entry.IsSymref = true
			entry.Target = rec.Target
			_, oid, outFlags, err := it.b.host.ResolveRefUnsafe(rec.Name, 0)
			if err != nil {
				return RefEntry{}, false, fmt.Errorf("reftable: ref iterator: resolve %q: %w", rec.Name, err)
			}
			broken := outFlags&ResolveOutBroken != 0
			if broken && it.flags&IterIncludeBroken == 0 {
				continue
			}
			if !broken {
				resolves, err := it.b.host.RefResolvesToObject(rec.Name, oid, 0)
				if err != nil {
					return RefEntry{}, false, fmt.Errorf("reftable: ref iterator: check %q: %w", rec.Name, err)
				}
				if !resolves {
					if it.flags&IterIncludeBroken == 0 {
						continue
					}
					broken = true
				}
			}
			entry.Broken = broken
			entry.OID = oid
			return entry, true, nil
		}

		entry.OID = rec.Value
		entry.Peeled = rec.TargetValue
		ok, err := it.b.host.RefResolvesToObject(rec.Name, rec.Value, 0)
		if err != nil {
			return RefEntry{}, false, fmt.Errorf("reftable: ref iterator: check %q: %w", rec.Name, err)
		}
		if !ok {
			if it.flags&IterIncludeBroken == 0 {
				continue
			}
			entry.Broken = true
		}
		return entry, true, nil
	}
}

// Abort releases the iterator. Idempotent.
func (it *RefIterator) Abort() error {
	it.done = true
	return nil
}

func hasPrefix(name, prefix string) bool {
	if len(name) < len(prefix) {
		return false
	}
	return name[:len(prefix)] == prefix
}
