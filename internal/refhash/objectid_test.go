package refhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroID(t *testing.T) {
	var id ID
	require.True(t, id.Zero())
	require.Equal(t, "<zero>", id.String())
}

func TestNewAndEqual(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	a := New(raw)
	b := New(raw)
	require.False(t, a.Zero())
	require.True(t, Equal(a, b))

	raw[0] = 9
	require.NotEqual(t, raw[0], a.Bytes()[0], "New must copy, not alias")
}

func TestCopyIsIndependent(t *testing.T) {
	a := New([]byte{1, 2, 3})
	c := Copy(a)
	require.True(t, Equal(a, c))
	c.Bytes()[0] = 0xff
	require.True(t, Equal(a, a))
	require.False(t, Equal(a, c))
}

func TestAlgorithmSizeAndWireID(t *testing.T) {
	require.Equal(t, 20, SHA1.Size())
	require.Equal(t, 32, SHA256.Size())

	got, err := ParseWireID(SHA1.WireID())
	require.NoError(t, err)
	require.Equal(t, SHA1, got)

	_, err = ParseWireID([4]byte{'n', 'o', 'p', 'e'})
	require.Error(t, err)
}
