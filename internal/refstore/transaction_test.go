package refstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/reftable/internal/refhash"
)

func TestTransactionInitialCommit(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("commit-1")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid, Message: "create main"})
	require.NoError(t, tx.InitialCommit())

	res, err := b.RawRead("refs/heads/main")
	require.NoError(t, err)
	require.False(t, res.IsSymref)
	require.True(t, refhash.Equal(res.OID, oid))
}

func TestTransactionOldOIDPrecondition(t *testing.T) {
	b, host := newTestBackend(t)
	first := oidFromString("first")
	second := oidFromString("second")
	host.addObject(first)
	host.addObject(second)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: first})
	require.NoError(t, tx.InitialCommit())

	t.Run("matching old oid succeeds", func(t *testing.T) {
		tx := b.NewTransaction()
		tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveOld | HaveNew, OldOID: first, NewOID: second})
		require.NoError(t, tx.InitialCommit())
	})

	t.Run("stale old oid fails", func(t *testing.T) {
		tx := b.NewTransaction()
		tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveOld | HaveNew, OldOID: first, NewOID: second})
		err := tx.InitialCommit()
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrLockConflict))
	})
}

func TestTransactionSymrefFixup(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("fixup-target")
	host.addObject(oid)

	require.NoError(t, b.CreateSymref("HEAD", "refs/heads/main", "point HEAD at main"))

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "HEAD", Flags: HaveNew, NewOID: oid, Message: "commit via HEAD"})
	require.NoError(t, tx.InitialCommit())

	res, err := b.RawRead("refs/heads/main")
	require.NoError(t, err)
	require.False(t, res.IsSymref)
	require.True(t, refhash.Equal(res.OID, oid))

	head, err := b.RawRead("HEAD")
	require.NoError(t, err)
	require.True(t, head.IsSymref)
	require.Equal(t, "refs/heads/main", head.Referent)
}

func TestTransactionZeroUpdateIsNoOp(t *testing.T) {
	b, _ := newTestBackend(t)
	tx := b.NewTransaction()
	require.NoError(t, tx.InitialCommit())
}

func TestTransactionAbortDiscardsPending(t *testing.T) {
	b, host := newTestBackend(t)
	oid := oidFromString("abort-me")
	host.addObject(oid)

	tx := b.NewTransaction()
	tx.AddUpdate(&Update{RefName: "refs/heads/main", Flags: HaveNew, NewOID: oid})
	require.NoError(t, tx.Prepare())
	require.NoError(t, tx.Abort())

	_, err := b.RawRead("refs/heads/main")
	require.True(t, errors.Is(err, ErrNotFound))
}
