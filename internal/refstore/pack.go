package refstore

import "fmt"

// PackRefs compacts the entire stack into a single table (spec.md
// §4.11). It is a no-op returning nil on a backend carrying a sticky
// init error, where the other Backend methods return that error.
func (b *Backend) PackRefs() error {
	if b.initErr != nil {
		return nil
	}
	if err := b.stack.CompactAll(); err != nil {
		return fmt.Errorf("reftable: pack refs: %w", err)
	}
	b.trace.Tracef("pack refs complete: %s", b.Stats())
	return nil
}
