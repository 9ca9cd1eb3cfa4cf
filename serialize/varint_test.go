package serialize

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 127, 128, 16383, 16384,
		1 << 20, 1<<21 - 1, 1 << 21,
		1 << 27, 1 << 28,
		1 << 34, 1 << 35,
		1 << 41, 1 << 42,
		1 << 48, 1 << 49,
		1 << 55, 1 << 56,
		^uint64(0),
	}
	for _, v := range values {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		require.NoError(t, WriteVarint(w, v))
		require.NoError(t, w.Flush())

		got, err := ReadVarint(bufio.NewReader(&buf))
		require.NoError(t, err)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestVarintOneByteForSmallValues(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteVarint(w, 42))
	require.NoError(t, w.Flush())
	require.Equal(t, 1, buf.Len())
	require.Equal(t, byte(42), buf.Bytes()[0])
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "hello, world", string(make([]byte, 300))} {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		require.NoError(t, WriteString(w, s))
		require.NoError(t, w.Flush())

		got, err := ReadString(bufio.NewReader(&buf))
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}
