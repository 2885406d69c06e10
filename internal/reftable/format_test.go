package reftable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/untoldecay/reftable/internal/refhash"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		putVarint(&buf, v)
		got, off, err := getVarint(buf.Bytes(), 0)
		require.NoError(t, err)
		require.Equal(t, len(buf.Bytes()), off)
		require.Equal(t, v, got)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := header{
		Version:        formatVersion,
		BlockSize:      4096,
		MinUpdateIndex: 1,
		MaxUpdateIndex: 42,
		HashID:         refhash.SHA1.WireID(),
	}
	buf := encodeHeader(h)
	got, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestEncodeDecodeRef(t *testing.T) {
	oid := refhash.New(bytesOf(20, 0x11))
	peeled := refhash.New(bytesOf(20, 0x22))

	cases := []RefRecord{
		{Name: "refs/heads/main", UpdateIndex: 1, Value: oid},
		{Name: "refs/tags/v1", UpdateIndex: 2, Value: oid, TargetValue: peeled},
		{Name: "HEAD", UpdateIndex: 3, IsSymref: true, Target: "refs/heads/main"},
		{Name: "refs/heads/deleted", UpdateIndex: 4},
	}
	for _, rec := range cases {
		var buf bytes.Buffer
		encodeRef(&buf, rec, 20)
		got, off, err := decodeRef(buf.Bytes(), 0, 20)
		require.NoError(t, err)
		require.Equal(t, len(buf.Bytes()), off)
		require.Equal(t, rec.Name, got.Name)
		require.Equal(t, rec.UpdateIndex, got.UpdateIndex)
		require.Equal(t, rec.IsSymref, got.IsSymref)
		require.Equal(t, rec.Target, got.Target)
		require.True(t, refhash.Equal(rec.Value, got.Value))
		require.True(t, refhash.Equal(rec.TargetValue, got.TargetValue))
	}
}

func TestEncodeDecodeLog(t *testing.T) {
	oldOID := refhash.New(bytesOf(20, 0x33))
	newOID := refhash.New(bytesOf(20, 0x44))

	rec := LogRecord{
		RefName:     "refs/heads/main",
		UpdateIndex: 7,
		Old:         oldOID,
		New:         newOID,
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		TimeSec:     1700000000,
		TZOffset:    -18000,
		Message:     "commit: test",
	}
	var buf bytes.Buffer
	encodeLog(&buf, rec, 20)
	got, off, err := decodeLog(buf.Bytes(), 0, 20)
	require.NoError(t, err)
	require.Equal(t, len(buf.Bytes()), off)
	require.Equal(t, rec.RefName, got.RefName)
	require.Equal(t, rec.UpdateIndex, got.UpdateIndex)
	require.Equal(t, rec.Name, got.Name)
	require.Equal(t, rec.Email, got.Email)
	require.Equal(t, rec.TimeSec, got.TimeSec)
	require.Equal(t, rec.TZOffset, got.TZOffset)
	require.Equal(t, rec.Message, got.Message)
	require.True(t, refhash.Equal(rec.Old, got.Old))
	require.True(t, refhash.Equal(rec.New, got.New))
}

func bytesOf(n int, b byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}
