package refstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawReadNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.RawRead("refs/heads/nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRawReadDirectHash(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("raw-direct")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())

	res, err := b.RawRead("refs/heads/main")
	require.NoError(t, err)
	require.False(t, res.IsSymref)
	require.True(t, res.Found)
}

func TestRawReadSymref(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("raw-symref")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.InitialCommit())
	require.NoError(t, b.CreateSymref("HEAD", "refs/heads/main", "point"))

	res, err := b.RawRead("HEAD")
	require.NoError(t, err)
	require.True(t, res.IsSymref)
	require.Equal(t, "refs/heads/main", res.Referent)
}

func TestPackRefs(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("pack-me")
	host.addObject(oid)

	for i := 0; i < 3; i++ {
		tx := b.NewTransaction()
		tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid, Message: "update"})
		require.NoError(t, tx.InitialCommit())
	}

	require.NoError(t, b.PackRefs())

	res, err := b.RawRead("refs/heads/main")
	require.NoError(t, err)
	require.True(t, res.Found)
}
