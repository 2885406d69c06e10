package refstore

import (
	"errors"
	"fmt"

	table "github.com/untoldecay/reftable/internal/reftable"
)

// Sentinel errors, matching spec.md §7's error-kind taxonomy. Callers
// compare with errors.Is.
var (
	// ErrNotFound is returned by RawRead when a refname has no record.
	ErrNotFound = errors.New("reftable: no such ref")
	// ErrBrokenRef marks a record with no usable payload (a tombstone
	// surfaced through a path that expects a live ref).
	ErrBrokenRef = errors.New("reftable: broken ref")
	// ErrMisuse marks a programmatic-misuse error: calling an
	// operation the backend declares unreachable or unsupported.
	ErrMisuse = errors.New("reftable: misuse")
	// ErrLockConflict marks an old-oid precondition mismatch or a
	// concurrent-writer collision detected at commit time. Both cases
	// are retryable: every writing entry point reloads the stack when it
	// starts, before it checks preconditions or opens an addition.
	ErrLockConflict = errors.New("reftable: lock conflict")
)

// asLockConflict rewrites a stack-library lock failure into this
// package's ErrLockConflict sentinel so callers never need to know
// about internal/reftable's own error type.
func asLockConflict(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, table.ErrLockConflict) {
		return fmt.Errorf("%w: %v", ErrLockConflict, err)
	}
	return err
}
