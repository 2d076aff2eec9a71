package transport

import (
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWouldBlockNormalization(t *testing.T) {
	require.True(t, wouldBlock(syscall.EAGAIN))
	require.True(t, wouldBlock(syscall.EWOULDBLOCK))
	require.True(t, wouldBlock(syscall.EINTR))
	require.False(t, wouldBlock(io.EOF))
	require.False(t, wouldBlock(nil))
	require.False(t, wouldBlock(syscall.ECONNRESET))
}

func TestPlainPassesBytesThrough(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	plain := NewPlain(left)
	require.False(t, plain.Encrypted())

	go func() {
		_, _ = right.Write([]byte("ping"))
	}()

	buf := make([]byte, 8)
	n, err := plain.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	go func() {
		out := make([]byte, 8)
		_, _ = right.Read(out)
	}()

	n, err = plain.Write([]byte("pong"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestCorkIsNonFatalOnUnsupportedConns(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	plain := NewPlain(left)
	require.NoError(t, plain.Cork())
	require.NoError(t, plain.Uncork())

	// the package-level helpers decline quietly for non-corkable conns
	require.NoError(t, Cork(plain))
	require.NoError(t, Uncork(plain))
}
