package refstore

import "github.com/untoldecay/reftable/internal/refhash"

// ObjectID is the object hash type host callbacks and stored records
// use. A zero-value ObjectID means "no object" (absent payload).
type ObjectID = refhash.ID

// RefType classifies a ref name the way the host's namespace rules do
// (spec.md §6 ref_type).
type RefType int

const (
	RefNormal RefType = iota
	RefPerWorktree
	RefPseudoref
)

// ResolveOutBroken is the out-flag bit ResolveRefUnsafe sets when a
// symref chain could not be resolved to an object.
const ResolveOutBroken = 1 << 0

// Host is everything this backend needs from the surrounding
// repository: generic ref resolution, object existence/peeling, and
// committer identity. Matches spec.md §6 "Host callbacks required"
// one-for-one.
type Host interface {
	// ResolveRefUnsafe chases refname (following symrefs unless flags
	// requests otherwise), returning the resolved name, the object it
	// points at, and out-flags describing how resolution went.
	ResolveRefUnsafe(refname string, flags int) (resolved string, oid ObjectID, outFlags int, err error)
	// RefType classifies refname.
	RefType(refname string) RefType
	// RefResolvesToObject reports whether oid names an object that
	// actually exists and is reachable the way refname expects.
	RefResolvesToObject(refname string, oid ObjectID, flags int) (bool, error)
	// PeelObject dereferences a tag object down to the object it
	// points at; ok is false if oid is not a peelable tag.
	PeelObject(oid ObjectID) (peeled ObjectID, ok bool, err error)
	// ReadRef resolves refname without symref chasing, used by the
	// pseudoref fast path's old-oid precondition.
	ReadRef(refname string) (ObjectID, error)
	// CommitterInfo returns the current committer identity string, in
	// the "Name <email> epoch +zone" form internal/identity.Split parses.
	CommitterInfo() string
}
