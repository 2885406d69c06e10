package refstore

import (
	"fmt"
	"sort"

	"github.com/untoldecay/reftable/internal/refhash"
	table "github.com/untoldecay/reftable/internal/reftable"
)

// Update is one entry in a Transaction's ordered update set, matching
// spec.md §3's ref-update tuple.
type Update struct {
	RefName string
	Flags   UpdateFlags
	OldOID  ObjectID // meaningful only when Flags.Has(HaveOld)
	NewOID  ObjectID // meaningful only when Flags.Has(HaveNew)
	Message string
	Type    RefType

	// Parent is set on a child update synthesized by symref fix-up,
	// pointing back at the original update that named the symref.
	Parent *Update
}

type txState int

const (
	txOpen txState = iota
	txPrepared
	txClosed
)

// Transaction is an ordered batch of ref updates applied atomically in
// one new stack segment, per spec.md §4.4.
type Transaction struct {
	b        *Backend
	updates  []*Update
	state    txState
	addition *table.Addition
}

// NewTransaction returns an empty transaction against b.
func (b *Backend) NewTransaction() *Transaction {
	return &Transaction{b: b}
}

// AddUpdate appends u to the transaction's update set. Must be called
// before Prepare.
func (t *Transaction) AddUpdate(u *Update) {
	t.updates = append(t.updates, u)
}

// Prepare reloads the stack, opens a new addition, and expands symref
// writes into explicit child updates (spec.md §4.4 "Prepare", §4.5).
func (t *Transaction) Prepare() error {
	if t.b.initErr != nil {
		return t.b.initErr
	}
	if err := t.b.stack.Reload(); err != nil {
		t.state = txClosed
		return fmt.Errorf("reftable: transaction prepare: %w", err)
	}

	// A zero-update transaction commits no segment at all (spec.md §9
	// open-question decision, recorded in DESIGN.md): skip opening an
	// addition entirely rather than writing an empty one.
	if len(t.updates) == 0 {
		t.state = txPrepared
		return nil
	}

	addition, err := t.b.stack.NewAddition()
	if err != nil {
		t.state = txClosed
		return fmt.Errorf("reftable: transaction prepare: %w", asLockConflict(err))
	}
	t.addition = addition

	if err := t.fixupSymrefs(); err != nil {
		addition.Abort()
		t.addition = nil
		t.state = txClosed
		return fmt.Errorf("reftable: transaction prepare: %w", err)
	}
	t.state = txPrepared
	return nil
}

// fixupSymrefs implements spec.md §4.5: for every update present at
// entry (newly appended children are not re-scanned), if the refname
// currently names a symref and the update doesn't carry NO_DEREF, a
// child update targeting the real referent is synthesized and the
// original is downgraded to a log-only marker.
func (t *Transaction) fixupSymrefs() error {
	n := len(t.updates)
	for i := 0; i < n; i++ {
		u := t.updates[i]
		rec, found := t.b.lookupMerged(u.RefName)
		if !found || !rec.IsSymref {
			continue
		}
		if u.Flags.Has(NoDeref) {
			continue
		}

		child := &Update{
			RefName: rec.Target,
			Flags:   u.Flags,
			OldOID:  u.OldOID,
			NewOID:  u.NewOID,
			Message: u.Message,
			Parent:  u,
		}
		t.updates = append(t.updates, child)
		u.Flags = (u.Flags | NoDeref | LogOnly) &^ HaveOld
	}
	return nil
}

// checkPreconditions implements spec.md §4.4 Finish step 1, sharing
// checkOldOID with the pseudoref fast path.
func (t *Transaction) checkPreconditions() error {
	for _, u := range t.updates {
		if !u.Flags.Has(HaveOld) {
			continue
		}
		rec, found := t.b.lookupMerged(u.RefName)
		if err := checkOldOID(rec, found, u.OldOID); err != nil {
			return fmt.Errorf("%s: %w", u.RefName, err)
		}
	}
	return nil
}

// writeSegment implements spec.md §4.6: two-phase emission of a
// sorted batch of ref records followed by log records, all sharing one
// update index.
func (t *Transaction) writeSegment(wr *table.Writer) error {
	ts := wr.MinUpdateIndex()

	sorted := make([]*Update, len(t.updates))
	copy(sorted, t.updates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RefName < sorted[j].RefName })

	id, err := t.b.committerIdentity()
	if err != nil {
		return fmt.Errorf("parse committer identity: %w", err)
	}

	for _, u := range sorted {
		if u.Flags.Has(LogOnly) || !u.Flags.Has(HaveNew) {
			continue
		}
		rec := table.RefRecord{Name: u.RefName, UpdateIndex: ts}
		if !u.NewOID.Zero() {
			rec.Value = refhash.Copy(u.NewOID)
			if peeled, ok, perr := t.b.host.PeelObject(u.NewOID); perr == nil && ok {
				rec.TargetValue = refhash.Copy(peeled)
			}
		}
		if err := wr.AddRef(rec); err != nil {
			return err
		}
	}

	for _, u := range sorted {
		log := table.LogRecord{
			RefName:     u.RefName,
			UpdateIndex: ts,
			Old:         refhash.Copy(u.OldOID),
			New:         refhash.Copy(u.NewOID),
			Name:        id.Name,
			Email:       id.Email,
			TimeSec:     id.When.Unix(),
			TZOffset:    id.TZOffset,
			Message:     u.Message,
		}
		if err := wr.AddLog(log); err != nil {
			return err
		}
	}
	return nil
}

// Finish implements spec.md §4.4 "Finish": precondition checks, the
// writer callback, and commit.
func (t *Transaction) Finish() error {
	if t.state != txPrepared {
		return fmt.Errorf("reftable: transaction finish: %w", ErrMisuse)
	}
	if t.addition == nil {
		// Zero-update transaction: nothing to check or commit.
		t.state = txClosed
		return nil
	}

	if err := t.checkPreconditions(); err != nil {
		t.addition.Abort()
		t.addition = nil
		t.state = txClosed
		return fmt.Errorf("reftable: transaction failure: %w", err)
	}
	if err := t.writeSegment(t.addition.Writer()); err != nil {
		t.addition.Abort()
		t.addition = nil
		t.state = txClosed
		return fmt.Errorf("reftable: transaction failure: %w", err)
	}
	if err := t.addition.Commit(); err != nil {
		t.addition = nil
		t.state = txClosed
		return fmt.Errorf("reftable: transaction failure: %w", asLockConflict(err))
	}
	t.addition = nil
	t.state = txClosed
	return nil
}

// Abort destroys the addition unconditionally and always succeeds.
func (t *Transaction) Abort() error {
	if t.addition != nil {
		t.addition.Abort()
		t.addition = nil
	}
	t.state = txClosed
	return nil
}

// InitialCommit is Prepare followed by Finish, with no additional
// semantics.
func (t *Transaction) InitialCommit() error {
	if err := t.Prepare(); err != nil {
		return err
	}
	return t.Finish()
}
