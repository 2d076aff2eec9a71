// Package dummy provides a scripted in-memory transport for engine tests.
package dummy

import (
	"bytes"
	"io"
	"net"

	"github.com/vigil-web/vigil/internal/transport"
)

// Conn replays a script of read chunks and captures everything written.
// After the script runs dry, reads report EOF.
type Conn struct {
	chunks  [][]byte
	written bytes.Buffer

	// WriteLimit caps the bytes accepted per Write; 0 means unlimited.
	// Lets tests exercise short writes.
	WriteLimit int
	// WantWriteEvery makes every n-th write fail with ErrWantWrite first,
	// exercising the would-block path. 0 disables.
	WantWriteEvery int

	writeCalls int
	encrypted  bool
	closed     bool
}

func NewConn(chunks ...[]byte) *Conn {
	return &Conn{chunks: chunks}
}

// NewStringConn scripts a single read chunk.
func NewStringConn(s string) *Conn {
	return NewConn([]byte(s))
}

func (c *Conn) Encrypted() bool {
	return c.encrypted
}

// MarkEncrypted makes the conn report a TLS stream.
func (c *Conn) MarkEncrypted() *Conn {
	c.encrypted = true
	return c
}

func (c *Conn) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}

	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeCalls++
	if c.WantWriteEvery > 0 && c.writeCalls%c.WantWriteEvery == 0 {
		return 0, transport.ErrWantWrite
	}

	if c.WriteLimit > 0 && len(p) > c.WriteLimit {
		p = p[:c.WriteLimit]
	}

	c.written.Write(p)
	return len(p), nil
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	return c.closed
}

func (c *Conn) Written() []byte {
	return c.written.Bytes()
}

func (c *Conn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40123}
}

var _ transport.Conn = new(Conn)
