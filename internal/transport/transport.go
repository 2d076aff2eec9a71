package transport

import (
	"errors"
	"io"
	"net"
)

// Would-block signals. An operation returning one of these has consumed or
// produced nothing; the caller records the pending direction in its wait
// flags and retries once the event loop re-arms it.
var (
	ErrWantRead  = errors.New("transport: operation wants the stream readable")
	ErrWantWrite = errors.New("transport: operation wants the stream writable")
)

// Conn is the unified byte stream of a client connection. Implementations
// wrap a plain socket, a TLS session or a unix-domain socket; the engine
// never looks past this interface.
type Conn interface {
	io.ReadWriteCloser

	// Encrypted reports whether the stream runs over TLS. Unix-domain
	// sockets are never encrypted.
	Encrypted() bool
	RemoteAddr() net.Addr
}

// Corker is implemented by transports that can delay transmission until a
// full packet's worth of data is queued. Failures to cork are non-fatal.
type Corker interface {
	Cork() error
	Uncork() error
}

// Cork enables the kernel cork when the transport supports it. It is a
// no-op for everything else.
func Cork(c Conn) error {
	if corker, ok := c.(Corker); ok {
		return corker.Cork()
	}

	return nil
}

func Uncork(c Conn) error {
	if corker, ok := c.(Corker); ok {
		return corker.Uncork()
	}

	return nil
}
