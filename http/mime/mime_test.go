package mime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForFilename(t *testing.T) {
	require.Equal(t, JS, ForFilename("/web/v2/main.js"))
	require.Equal(t, HTML, ForFilename("index.html"))
	require.Equal(t, JPG, ForFilename("photo.jpeg"))
	require.Equal(t, WOFF2, ForFilename("font.woff2"))
	require.Equal(t, OctetStream, ForFilename("Makefile"))
	require.Equal(t, OctetStream, ForFilename("archive.tar.zst"))
	require.Equal(t, OctetStream, ForFilename("trailing."))
	require.Equal(t, HTML, ForFilename("a.b.c.html"))
}
