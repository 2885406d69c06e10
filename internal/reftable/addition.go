package reftable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/untoldecay/reftable/internal/reflock"
)

// Addition is a pending append to the stack: reserving the next
// update index and an exclusive claim on tables.list, accepting
// exactly one writer-produced table, and on Commit publishing it
// atomically or on Abort discarding it untouched. This is the
// two-phase primitive the transaction engine needs — Prepare opens
// one and runs symref fix-up, then either Finish checks old-oid
// preconditions, writes to it and commits, or Abort walks away.
type Addition struct {
	st      *Stack
	lock    *reflock.Lock
	names   []string
	next    uint64
	suffix  string
	tmpPath string
	f       *os.File
	wr      *Writer
	done    bool
}

// NewAddition opens a new addition against st. It fails with
// ErrLockConflict if another writer currently holds the manifest lock
// or has advanced the stack past what st last reloaded.
func (st *Stack) NewAddition() (*Addition, error) {
	lock := reflock.New(st.listPath + ".lock")
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, reflock.ErrLocked) {
			return nil, ErrLockConflict
		}
		return nil, err
	}

	ok, err := st.upToDate()
	if err != nil {
		lock.Unlock()
		os.Remove(lock.Path())
		return nil, err
	}
	if !ok {
		lock.Unlock()
		os.Remove(lock.Path())
		return nil, ErrLockConflict
	}

	st.mu.Lock()
	names := make([]string, len(st.stack))
	for i, r := range st.stack {
		names[i] = r.Name()
	}
	next := st.nextUpdateIndexLocked()
	st.mu.Unlock()

	suffix := newSuffix()
	tmpPath := filepath.Join(st.dir, ".tmp-add-"+suffix)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		lock.Unlock()
		os.Remove(lock.Path())
		return nil, err
	}

	wr := NewWriter(f, st.algo, st.blockSize)
	wr.SetLimits(next, next)

	return &Addition{
		st:      st,
		lock:    lock,
		names:   names,
		next:    next,
		suffix:  suffix,
		tmpPath: tmpPath,
		f:       f,
		wr:      wr,
	}, nil
}

// Writer exposes the table writer the caller populates before Commit.
func (a *Addition) Writer() *Writer { return a.wr }

// NextUpdateIndex is the update index this addition's table will
// carry once committed.
func (a *Addition) NextUpdateIndex() uint64 { return a.next }

// Commit finalizes the table written through Writer and publishes it
// by rewriting tables.list. On any failure the addition is left
// aborted; the stack is unchanged.
func (a *Addition) Commit() error {
	if a.done {
		return fmt.Errorf("reftable: addition already closed")
	}
	a.done = true
	defer func() {
		a.lock.Unlock()
		os.Remove(a.lock.Path())
	}()

	if err := a.wr.Close(); err != nil {
		a.f.Close()
		os.Remove(a.tmpPath)
		return err
	}
	if err := a.f.Sync(); err != nil {
		a.f.Close()
		os.Remove(a.tmpPath)
		return err
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.tmpPath)
		return err
	}
	if a.wr.MinUpdateIndex() < a.next {
		os.Remove(a.tmpPath)
		return ErrLockConflict
	}

	tn := tableName{Min: a.wr.MinUpdateIndex(), Max: a.wr.MaxUpdateIndex(), Suffix: a.suffix}
	destName := tn.String()
	destPath := filepath.Join(a.st.dir, destName)
	if err := os.Rename(a.tmpPath, destPath); err != nil {
		os.Remove(a.tmpPath)
		return err
	}
	syncDir(a.st.dir)

	names := append(append([]string(nil), a.names...), destName)
	if err := a.st.writeManifest(a.lock, names); err != nil {
		os.Remove(destPath)
		return err
	}
	return a.st.Reload()
}

// Abort discards the addition's pending table without publishing
// anything. Safe to call even if the writer callback never ran, and a
// no-op if Commit already ran.
func (a *Addition) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.f.Close()
	os.Remove(a.tmpPath)
	a.lock.Unlock()
	os.Remove(a.lock.Path())
	return nil
}
