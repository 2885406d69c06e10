package refstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeleteRefs(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("delete-me")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid})
	tx.AddUpdate(&Update{RefName: "refs/heads/topic", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	require.NoError(t, b.DeleteRefs("cleanup", []string{"refs/heads/topic"}))

	_, err := b.RawRead("refs/heads/topic")
	require.True(t, errors.Is(err, ErrBrokenRef))

	res, err := b.RawRead("refs/heads/main")
	require.NoError(t, err)
	require.True(t, res.Found)
}

func TestCreateSymref(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("symref-target")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	require.NoError(t, b.CreateSymref("HEAD", "refs/heads/main", "symbolic-ref HEAD"))

	res, err := b.RawRead("HEAD")
	require.NoError(t, err)
	require.True(t, res.IsSymref)
	require.Equal(t, "refs/heads/main", res.Referent)

	var entries []ReflogEntry
	require.NoError(t, b.ForEachReflogEntNewestFirst("HEAD", func(e ReflogEntry) bool {
		entries = append(entries, e)
		return true
	}))
	require.Len(t, entries, 1)
}

func TestRename(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("rename-me")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/old", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	require.NoError(t, b.Rename("refs/heads/old", "refs/heads/new", "rename old to new"))

	_, err := b.RawRead("refs/heads/old")
	require.True(t, errors.Is(err, ErrBrokenRef))

	res, err := b.RawRead("refs/heads/new")
	require.NoError(t, err)
	require.False(t, res.IsSymref)
}

func TestRenameRefusesExistingDestination(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("rename-collision")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/a", Flags: HaveNew, NewOID: oid})
	tx.AddUpdate(&Update{RefName: "refs/heads/b", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	err := b.Rename("refs/heads/a", "refs/heads/b", "collide")
	require.Error(t, err)
}
