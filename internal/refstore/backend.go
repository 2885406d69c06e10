// Package refstore implements the transactional ref-storage backend on
// top of the internal/reftable stack library: backend lifecycle,
// transactions with symref fix-up, pseudorefs, single-shot mutations,
// reflog enumeration and expiry, iteration, and raw reads.
package refstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/untoldecay/reftable/internal/identity"
	"github.com/untoldecay/reftable/internal/refhash"
	table "github.com/untoldecay/reftable/internal/reftable"
	"github.com/untoldecay/reftable/internal/tracelog"
)

// Config is the store's fixed configuration, set once at Create time.
type Config struct {
	// BlockSize is the advisory block size recorded in new tables'
	// headers. Zero defaults to 4096.
	BlockSize uint32
	// Algorithm selects the object-hash width (SHA-1 or SHA-256) this
	// store's records use.
	Algorithm refhash.Algorithm
}

// Backend owns one on-disk reftable store rooted at path. Initialization
// never fails the constructor: any failure is recorded as a sticky
// error that every subsequent operation short-circuits to.
type Backend struct {
	path     string
	tableDir string
	host     Host
	stack    *table.Stack
	initErr  error
	trace    *tracelog.Logger
}

// Create opens (or lays out) a reftable store at path. host supplies
// the generic ref-resolution, object, and committer-identity callbacks
// this backend needs; trace may be nil to disable diagnostic tracing.
func Create(path string, host Host, cfg Config, trace *tracelog.Logger) *Backend {
	b := &Backend{
		path:     path,
		tableDir: filepath.Join(path, "reftable"),
		host:     host,
		trace:    trace,
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 4096
	}
	if cfg.Algorithm == 0 {
		cfg.Algorithm = refhash.SHA1
	}

	if err := os.MkdirAll(b.tableDir, 0755); err != nil {
		b.initErr = fmt.Errorf("reftable: create %s: %w", b.tableDir, err)
		return b
	}
	st, err := table.NewStack(b.tableDir, cfg.Algorithm, cfg.BlockSize)
	if err != nil {
		b.initErr = fmt.Errorf("reftable: open stack at %s: %w", b.tableDir, err)
		return b
	}
	b.stack = st
	b.trace.Tracef("backend opened path=%s", path)
	return b
}

// Err returns the sticky initialization error, or nil if Create
// succeeded.
func (b *Backend) Err() error { return b.initErr }

// InitDb lays out the on-disk sentinel files spec.md §4.1 describes.
// It never fails because a directory or marker file already exists.
func (b *Backend) InitDb() error {
	if b.initErr != nil {
		return b.initErr
	}
	if err := os.MkdirAll(b.tableDir, 0755); err != nil {
		return fmt.Errorf("reftable: init: %w", err)
	}
	headPath := filepath.Join(b.path, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/.invalid"), 0644); err != nil {
		return fmt.Errorf("reftable: init: write HEAD: %w", err)
	}
	refsDir := filepath.Join(b.path, "refs")
	if err := os.MkdirAll(refsDir, 0755); err != nil {
		return fmt.Errorf("reftable: init: %w", err)
	}
	marker := []byte("this repository uses the reftable format")
	if err := os.WriteFile(filepath.Join(refsDir, "heads"), marker, 0644); err != nil {
		return fmt.Errorf("reftable: init: write refs/heads: %w", err)
	}
	return nil
}

// Stats reports cumulative compaction work done by this backend's
// stack. Zero value on a backend carrying a sticky init error.
func (b *Backend) Stats() table.CompactionStats {
	if b.stack == nil {
		return table.CompactionStats{}
	}
	return b.stack.Stats
}

// Close releases the backend's stack handle. Safe to call on a
// backend with a sticky init error (no-op).
func (b *Backend) Close() error {
	if b.stack == nil {
		return nil
	}
	return b.stack.Close()
}

// lookupMerged returns refname's current record from the last-reloaded
// merged view without triggering a new reload itself; callers that
// need freshness reload first.
func (b *Backend) lookupMerged(refname string) (table.RefRecord, bool) {
	m := b.stack.Merged()
	if m == nil {
		return table.RefRecord{}, false
	}
	return m.Lookup(refname)
}

func (b *Backend) committerIdentity() (identity.Identity, error) {
	return identity.Split(b.host.CommitterInfo())
}
