//go:build unix

package reftable

import "golang.org/x/sys/unix"

// syncDir fsyncs a directory's entry metadata after a rename, so a
// commit survives a crash between the rename and the next fsync of an
// unrelated file. This matters for tables.list: the rename that makes
// a new table visible is only durable once the directory entry itself
// is flushed.
func syncDir(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
