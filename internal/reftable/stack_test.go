package reftable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/reftable/internal/refhash"
)

func TestStackAddAndReload(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStack(dir, refhash.SHA1, 4096)
	require.NoError(t, err)
	defer st.Close()

	oid := refhash.New(bytesOf(20, 0x55))
	err = st.Add(func(wr *Writer) error {
		return wr.AddRef(RefRecord{Name: "refs/heads/main", UpdateIndex: wr.MinUpdateIndex(), Value: oid})
	})
	require.NoError(t, err)

	m := st.Merged()
	require.NotNil(t, m)
	rec, ok := m.Lookup("refs/heads/main")
	require.True(t, ok)
	require.True(t, refhash.Equal(rec.Value, oid))
}

func TestStackAdditionTwoPhase(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStack(dir, refhash.SHA1, 4096)
	require.NoError(t, err)
	defer st.Close()

	a, err := st.NewAddition()
	require.NoError(t, err)
	require.Equal(t, uint64(1), a.NextUpdateIndex())
	require.NoError(t, a.Abort())

	// Aborting must leave the stack empty and reusable.
	names, err := st.readNames()
	require.NoError(t, err)
	require.Empty(t, names)

	a, err = st.NewAddition()
	require.NoError(t, err)
	require.NoError(t, a.Writer().AddRef(RefRecord{Name: "refs/heads/x", UpdateIndex: a.NextUpdateIndex()}))
	require.NoError(t, a.Commit())

	require.NoError(t, st.Reload())
	_, ok := st.Merged().Lookup("refs/heads/x")
	require.True(t, ok)
}

func TestStackCompactAll(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStack(dir, refhash.SHA1, 4096)
	require.NoError(t, err)
	defer st.Close()

	oid := refhash.New(bytesOf(20, 0x66))
	for i := 0; i < 5; i++ {
		err := st.Add(func(wr *Writer) error {
			return wr.AddRef(RefRecord{Name: "refs/heads/main", UpdateIndex: wr.MinUpdateIndex(), Value: oid})
		})
		require.NoError(t, err)
	}

	require.NoError(t, st.CompactAll())
	require.NoError(t, st.Reload())

	names, err := st.readNames()
	require.NoError(t, err)
	require.Len(t, names, 1)

	rec, ok := st.Merged().Lookup("refs/heads/main")
	require.True(t, ok)
	require.True(t, refhash.Equal(rec.Value, oid))
}

func TestCompactAllDropsLogTombstones(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStack(dir, refhash.SHA1, 4096)
	require.NoError(t, err)
	defer st.Close()

	oid := refhash.New(bytesOf(20, 0x77))
	var keepIndex uint64
	require.NoError(t, st.Add(func(wr *Writer) error {
		keepIndex = wr.MinUpdateIndex()
		return wr.AddLog(LogRecord{RefName: "refs/heads/main", UpdateIndex: keepIndex, New: oid, Message: "keep me"})
	}))

	// A later segment tombstones the entry written above, the same way
	// ReflogExpire does: same ref name, same update index, no old/new.
	require.NoError(t, st.Add(func(wr *Writer) error {
		return wr.AddLog(LogRecord{RefName: "refs/heads/main", UpdateIndex: keepIndex})
	}))

	cur := st.Merged().SeekLog("refs/heads/main")
	rec, ok := cur.Next()
	require.True(t, ok)
	require.True(t, rec.IsTombstone(), "tombstone must shadow the original entry before compaction")

	require.NoError(t, st.CompactAll())
	require.NoError(t, st.Reload())

	names, err := st.readNames()
	require.NoError(t, err)
	require.Len(t, names, 1)

	st.mu.Lock()
	tabs := append([]*Reader(nil), st.stack...)
	st.mu.Unlock()
	require.Len(t, tabs, 1)
	require.Empty(t, tabs[0].logs, "full-stack compaction must physically discard tombstoned log records, not just shadow them")
}

func TestSuggestCompactionSegment(t *testing.T) {
	seg := suggestCompactionSegment([]uint64{1, 1, 1, 100})
	require.NotNil(t, seg)
	require.Equal(t, 0, seg.start)
	require.Equal(t, 3, seg.end)
}
