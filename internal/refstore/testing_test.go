package refstore

import (
	"crypto/sha1"
	"fmt"
	"testing"

	"github.com/untoldecay/reftable/internal/refhash"
)

// fakeHost is a minimal Host double good enough to drive the backend
// through symref chains and object-existence checks in tests, without
// pulling in a real object database.
type fakeHost struct {
	b *Backend

	// objects is the set of hashes (hex string) this host considers to
	// exist, consulted by RefResolvesToObject.
	objects map[string]bool
	// peeled maps a tag hash (hex string) to the object it peels to.
	peeled map[string]ObjectID
	// worktreeRefs marks ref names RefType should classify as per-worktree.
	worktreeRefs map[string]bool

	committer string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		objects:      map[string]bool{},
		peeled:       map[string]ObjectID{},
		worktreeRefs: map[string]bool{},
		committer:    "Test Committer <committer@example.com> 1700000000 +0000",
	}
}

func (h *fakeHost) addObject(oid ObjectID) {
	if !oid.Zero() {
		h.objects[oid.String()] = true
	}
}

func (h *fakeHost) ResolveRefUnsafe(refname string, flags int) (string, ObjectID, int, error) {
	name := refname
	for i := 0; i < 10; i++ {
		res, err := h.b.RawRead(name)
		if err != nil {
			return name, ObjectID{}, ResolveOutBroken, nil
		}
		if !res.Found || res.Broken {
			return name, ObjectID{}, ResolveOutBroken, nil
		}
		if !res.IsSymref {
			return name, res.OID, 0, nil
		}
		name = res.Referent
	}
	return name, ObjectID{}, ResolveOutBroken, nil
}

func (h *fakeHost) RefType(refname string) RefType {
	if h.worktreeRefs[refname] {
		return RefPerWorktree
	}
	return RefNormal
}

func (h *fakeHost) RefResolvesToObject(refname string, oid ObjectID, flags int) (bool, error) {
	if oid.Zero() {
		return false, nil
	}
	return h.objects[oid.String()], nil
}

func (h *fakeHost) PeelObject(oid ObjectID) (ObjectID, bool, error) {
	p, ok := h.peeled[oid.String()]
	return p, ok, nil
}

func (h *fakeHost) ReadRef(refname string) (ObjectID, error) {
	res, err := h.b.RawRead(refname)
	if err != nil {
		return ObjectID{}, err
	}
	if res.IsSymref {
		return ObjectID{}, fmt.Errorf("refstore test: %q is a symref", refname)
	}
	return res.OID, nil
}

func (h *fakeHost) CommitterInfo() string { return h.committer }

func newTestBackend(t *testing.T) (*Backend, *fakeHost) {
	t.Helper()
	host := newFakeHost()
	b := Create(t.TempDir(), host, Config{}, nil)
	if err := b.Err(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	host.b = b
	if err := b.InitDb(); err != nil {
		t.Fatalf("InitDb: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, host
}

// oidFromString derives a deterministic 20-byte (SHA-1-sized) ObjectID
// from seed, so tests can name objects without a real object database.
func oidFromString(seed string) ObjectID {
	sum := sha1.Sum([]byte(seed))
	return refhash.New(sum[:])
}
