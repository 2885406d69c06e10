package refstore

// Vtable exposes the fixed dispatch surface a host's ref-storage vtable
// binds to (spec.md §6): the operations above, plus the handful of
// entries that exist on the vtable only as stubs because this backend
// makes them unreachable or unconditional.
type Vtable struct {
	*Backend
}

// NewVtable wraps b for vtable dispatch.
func NewVtable(b *Backend) *Vtable {
	return &Vtable{Backend: b}
}

// CopyRef is unreachable on this backend; every caller goes through
// Rename instead. Per spec.md, it is a bug if this is ever invoked.
func (v *Vtable) CopyRef(oldName, newName, msg string) error {
	panic("reftable: copy_ref is unreachable")
}

// ReflogExists always reports true: this backend carries no concept of
// a ref missing its reflog.
func (v *Vtable) ReflogExists(refname string) bool {
	return true
}

// CreateReflog is a no-op: every ref's reflog is implicitly present.
func (v *Vtable) CreateReflog(refname string) error {
	return nil
}

// DeleteReflog is a no-op. Use ReflogExpire with a predicate that
// always prunes to actually clear a ref's entries.
func (v *Vtable) DeleteReflog(refname string) error {
	return nil
}
