// Package reftable is a transactional, append-only ref-storage backend
// modeled on git's reftable format: sorted, immutable tables stacked
// into a log-structured store, with atomic multi-ref transactions,
// symref dereferencing fix-up, prefix-ordered ref iteration, reflog
// enumeration and expiry, and automatic compaction after each write.
//
// This package is a thin facade over internal/refstore, which holds
// the actual implementation. Most callers only need Backend, Config,
// Host, and Transaction.
package reftable

import (
	"github.com/untoldecay/reftable/internal/refhash"
	table "github.com/untoldecay/reftable/internal/reftable"
	"github.com/untoldecay/reftable/internal/refstore"
	"github.com/untoldecay/reftable/internal/tracelog"
)

// Algorithm selects the object-hash width a store's records use.
type Algorithm = refhash.Algorithm

const (
	SHA1   = refhash.SHA1
	SHA256 = refhash.SHA256
)

// ObjectID is an object hash. A zero value denotes "no object".
type ObjectID = refhash.ID

// NewObjectID copies raw bytes into an ObjectID.
func NewObjectID(raw []byte) ObjectID { return refhash.New(raw) }

// Config is a store's fixed configuration, set once at Create time.
type Config = refstore.Config

// Backend owns one on-disk reftable store.
type Backend = refstore.Backend

// Host is everything a Backend needs from its surrounding repository.
type Host = refstore.Host

// RefType classifies a ref name the way the host's namespace rules do.
type RefType = refstore.RefType

const (
	RefNormal      = refstore.RefNormal
	RefPerWorktree = refstore.RefPerWorktree
	RefPseudoref   = refstore.RefPseudoref
)

// ResolveOutBroken is the out-flag bit ResolveRefUnsafe sets when a
// symref chain could not be resolved to an object.
const ResolveOutBroken = refstore.ResolveOutBroken

// TraceLogger is the rotating diagnostic trace sink a Backend may log
// to. A nil *TraceLogger disables tracing.
type TraceLogger = tracelog.Logger

// TraceConfig configures a TraceLogger's rotation policy.
type TraceConfig = tracelog.Config

// NewTraceLogger returns a TraceLogger per cfg.
func NewTraceLogger(cfg TraceConfig) *TraceLogger { return tracelog.New(cfg) }

// Create opens (or lays out) a reftable store at path.
func Create(path string, host Host, cfg Config, trace *TraceLogger) *Backend {
	return refstore.Create(path, host, cfg, trace)
}

// UpdateFlags carries the per-update bits of a transaction Update:
// HAVE_OLD, HAVE_NEW, NO_DEREF, LOG_ONLY.
type UpdateFlags = refstore.UpdateFlags

const (
	HaveOld = refstore.HaveOld
	HaveNew = refstore.HaveNew
	NoDeref = refstore.NoDeref
	LogOnly = refstore.LogOnly
)

// Update is one entry in a Transaction's ordered update set.
type Update = refstore.Update

// Transaction is an ordered batch of ref updates applied atomically in
// one new stack segment.
type Transaction = refstore.Transaction

// IterFlags controls a RefIterator's filtering.
type IterFlags = refstore.IterFlags

const (
	IterPerWorktreeOnly = refstore.IterPerWorktreeOnly
	IterIncludeBroken   = refstore.IterIncludeBroken
)

// RefEntry is one ref surfaced by a RefIterator.
type RefEntry = refstore.RefEntry

// RefIterator walks the merged ref view in ascending name order.
type RefIterator = refstore.RefIterator

// BeginRefIterator starts iteration at the first ref name >= prefix.
func BeginRefIterator(b *Backend, prefix string, flags IterFlags) *RefIterator {
	return refstore.BeginRefIterator(b, prefix, flags)
}

// ReflogRefIterator walks distinct ref names carrying reflog entries.
type ReflogRefIterator = refstore.ReflogRefIterator

// BeginReflogRefIterator starts iteration over every ref name that
// carries any reflog entry.
func BeginReflogRefIterator(b *Backend) *ReflogRefIterator {
	return refstore.BeginReflogRefIterator(b)
}

// ReflogEntry is one reflog record surfaced to a ReflogCallback.
type ReflogEntry = refstore.ReflogEntry

// ReflogCallback is invoked once per reflog entry.
type ReflogCallback = refstore.ReflogCallback

// PruneDecision reports whether a reflog entry should be expired.
type PruneDecision = refstore.PruneDecision

// RawReadResult is the literal record behind a ref name.
type RawReadResult = refstore.RawReadResult

// Vtable exposes the fixed dispatch surface a host's ref-storage vtable
// binds to, including the entries this backend makes unreachable or
// unconditional.
type Vtable = refstore.Vtable

// NewVtable wraps b for vtable dispatch.
func NewVtable(b *Backend) *Vtable { return refstore.NewVtable(b) }

// Sentinel errors. Compare with errors.Is.
var (
	ErrNotFound     = refstore.ErrNotFound
	ErrBrokenRef    = refstore.ErrBrokenRef
	ErrMisuse       = refstore.ErrMisuse
	ErrLockConflict = refstore.ErrLockConflict
)

// CompactionStats reports cumulative work done by a Backend's
// automatic (after each write) and on-demand compaction. Call
// Backend.Stats to read it.
type CompactionStats = table.CompactionStats
