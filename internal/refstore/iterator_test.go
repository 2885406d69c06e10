package refstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefIteratorWalksPrefixInOrder(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("iter")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/a", Flags: HaveNew, NewOID: oid})
	tx.AddUpdate(&Update{RefName: "refs/heads/b", Flags: HaveNew, NewOID: oid})
	tx.AddUpdate(&Update{RefName: "refs/tags/v1", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	it := BeginRefIterator(b, "refs/heads/", IterFlags(0))
	var names []string
	for {
		e, ok, err := it.Advance()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"refs/heads/a", "refs/heads/b"}, names)
}

func TestRefIteratorSkipsTombstones(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("iter-tombstone")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/a", Flags: HaveNew, NewOID: oid})
	tx.AddUpdate(&Update{RefName: "refs/heads/b", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	require.NoError(t, b.DeleteRefs("remove a", []string{"refs/heads/a"}))

	it := BeginRefIterator(b, "refs/heads/", IterFlags(0))
	e, ok, err := it.Advance()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refs/heads/b", e.Name)

	_, ok, err = it.Advance()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefIteratorBrokenFiltering(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("iter-broken")
	// Deliberately do not register oid as an existing object.

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/broken", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	it := BeginRefIterator(b, "refs/heads/", IterFlags(0))
	_, ok, err := it.Advance()
	require.NoError(t, err)
	require.False(t, ok, "broken ref should be skipped by default")

	host.addObject(oid)
	it = BeginRefIterator(b, "refs/heads/", IterIncludeBroken)
	e, ok, err := it.Advance()
	require.NoError(t, err)
	require.True(t, ok)
	_ = e
}

func TestReflogRefIterator(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("reflog-iter")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid, Message: "first"})
	require.NoError(t, tx.InitialCommit())

	it := BeginReflogRefIterator(b)
	name, ok, err := it.Advance()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refs/heads/main", name)

	_, err = it.Peel()
	require.Error(t, err)
}
