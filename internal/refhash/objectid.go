// Package refhash holds the object-ID representation shared by every
// reftable record. It is deliberately agnostic to the host's actual hash
// algorithm: the host tells us at Create time whether object IDs are
// SHA-1 or SHA-256, and everything downstream just compares byte slices.
package refhash

import (
	"bytes"
	"fmt"
)

// Algorithm identifies the hash function used for object IDs in a store.
type Algorithm uint8

const (
	// SHA1 is the legacy 20-byte object hash.
	SHA1 Algorithm = iota + 1
	// SHA256 is the 32-byte object hash.
	SHA256
)

// Size returns the number of raw bytes an object ID occupies for this
// algorithm.
func (a Algorithm) Size() int {
	switch a {
	case SHA1:
		return 20
	case SHA256:
		return 32
	default:
		panic(fmt.Sprintf("refhash: unknown algorithm %d", a))
	}
}

// WireID is the 4-byte tag stored in a reftable header/footer.
func (a Algorithm) WireID() [4]byte {
	switch a {
	case SHA1:
		return [4]byte{'s', 'h', 'a', '1'}
	case SHA256:
		return [4]byte{'s', '2', '5', '6'}
	default:
		panic(fmt.Sprintf("refhash: unknown algorithm %d", a))
	}
}

// ParseWireID maps a header's 4-byte hash tag back to an Algorithm.
func ParseWireID(id [4]byte) (Algorithm, error) {
	switch id {
	case SHA1.WireID():
		return SHA1, nil
	case SHA256.WireID():
		return SHA256, nil
	default:
		return 0, fmt.Errorf("refhash: unsupported hash id %q", id[:])
	}
}

// ID is an object hash, sized for whichever Algorithm the owning store
// was opened with. A zero-value ID (len 0) represents "no object" —
// used both for deletion markers and for old-oid "must not exist"
// preconditions.
type ID struct {
	bytes []byte
}

// New copies raw into a new ID. The caller retains ownership of raw.
func New(raw []byte) ID {
	if len(raw) == 0 {
		return ID{}
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return ID{bytes: cp}
}

// Zero reports whether this ID carries no object (absent payload).
func (id ID) Zero() bool {
	return len(id.bytes) == 0
}

// Bytes returns the raw hash bytes. Callers must not mutate the result.
func (id ID) Bytes() []byte {
	return id.bytes
}

// Equal reports whether two IDs denote the same object (or are both zero).
func Equal(a, b ID) bool {
	return bytes.Equal(a.bytes, b.bytes)
}

// Copy returns an independent copy of id, per the "records returned by
// the library are owned by the backend and must be cleared before reuse"
// resource rule in the design: owned records never alias a reader's
// internal buffers.
func Copy(id ID) ID {
	return New(id.bytes)
}

// String renders the ID as lowercase hex, or "<zero>" for an absent ID.
func (id ID) String() string {
	if id.Zero() {
		return "<zero>"
	}
	return fmt.Sprintf("%x", id.bytes)
}
