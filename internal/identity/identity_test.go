package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	id, err := Split("Jane Doe <jane@example.com> 1700000000 +0200")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", id.Name)
	require.Equal(t, "jane@example.com", id.Email)
	require.Equal(t, int64(1700000000), id.When.Unix())
	require.Equal(t, 7200, id.TZOffset)
}

func TestSplitNegativeOffset(t *testing.T) {
	id, err := Split("J D <j@d.com> 1700000000 -0500")
	require.NoError(t, err)
	require.Equal(t, -18000, id.TZOffset)
}

func TestSplitMalformed(t *testing.T) {
	_, err := Split("not a valid identity string")
	require.Error(t, err)

	_, err = Split("Jane Doe <jane@example.com> notanumber +0000")
	require.Error(t, err)
}

func TestFormatRoundTrips(t *testing.T) {
	raw := "Jane Doe <jane@example.com> 1700000000 +0200"
	id, err := Split(raw)
	require.NoError(t, err)
	require.Equal(t, raw, Format(id))
}
