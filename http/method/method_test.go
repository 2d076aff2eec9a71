package method

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, rest, ok := Parse("GET /api/v2/info HTTP/1.1")
	require.True(t, ok)
	require.Equal(t, GET, m)
	require.Equal(t, "/api/v2/info HTTP/1.1", rest)

	m, rest, ok = Parse("STREAM key=abc HTTP/1.1")
	require.True(t, ok)
	require.Equal(t, STREAM, m)
	require.Equal(t, "key=abc HTTP/1.1", rest)

	_, _, ok = Parse("PATCH /x HTTP/1.1")
	require.False(t, ok)

	// the separating space is part of the prefix
	_, _, ok = Parse("GET")
	require.False(t, ok)
}

func TestLabel(t *testing.T) {
	require.Equal(t, "DATA", GET.Label())
	require.Equal(t, "DATA", DELETE.Label())
	require.Equal(t, "OPTIONS", OPTIONS.Label())
	require.Equal(t, "STREAM", STREAM.Label())
	require.Equal(t, "FILECOPY", FILECOPY.Label())
}
