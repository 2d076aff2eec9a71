package webclient

import (
	"errors"
	"io"

	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/internal/transport"
	"go.uber.org/zap"
)

// Send advances the response by one round. The compressed and the plain
// path share this single entry; the dispatch is the compression flag.
func (c *Client) Send() (int, error) {
	if c.resp.z.enabled {
		return c.sendDeflate()
	}

	if int64(c.resp.data.Len()) == c.resp.sent {
		// there is nothing to send. Either we have done everything, or we
		// temporarily ran dry while the file producer is still reading.

		if c.mode == method.FILECOPY && c.flags.Has(FlagWaitReceive) &&
			c.resp.rlen > int64(c.resp.data.Len()) {
			c.flags.Clear(FlagWaitSend)
			return 0, nil
		}

		if !c.flags.Has(FlagKeepAlive) {
			c.markDead()
			return 0, nil
		}

		c.requestDone()
		return 0, nil
	}

	n, err := c.conn.Write(c.resp.data.Bytes()[c.resp.sent:])
	if n > 0 {
		c.stats.sentBytes += int64(n)
		c.resp.sent += int64(n)
	}

	if err != nil {
		if errors.Is(err, transport.ErrWantWrite) || errors.Is(err, transport.ErrWantRead) {
			c.recordTLSWant(err)
			return n, nil
		}

		c.engine.Log.Debug("failed to send data to client", zapID(c), zap.Error(err))
		c.markDead()
		return n, err
	}

	return n, nil
}

// Receive reads from the slot's input: the socket while a request is being
// collected, the file while a static file is being copied.
func (c *Client) Receive() (int, error) {
	if c.mode == method.FILECOPY {
		return c.readFile()
	}

	readSize := c.engine.Config.NET.ReadBufferSize
	dst := c.resp.data.Extend(readSize)

	n, err := c.conn.Read(dst)
	if n > 0 {
		c.resp.data.Advance(n)
		c.stats.receivedBytes += int64(n)
	}

	if err != nil {
		switch {
		case errors.Is(err, transport.ErrWantRead), errors.Is(err, transport.ErrWantWrite):
			c.recordTLSWant(err)
			c.flags.Set(FlagWaitReceive)
			return n, nil
		case errors.Is(err, io.EOF):
			// the peer is gone; nothing more will arrive on this socket
			c.markDead()
			return n, err
		default:
			c.engine.Log.Debug("receive failed", zapID(c), zap.Error(err))
			c.markDead()
			return n, err
		}
	}

	return n, nil
}

// readFile is the file producer: it pulls the remaining bytes of the static
// file into the body buffer and wakes the send side. It only ever runs on
// the wait-receive path, never on write readiness.
func (c *Client) readFile() (int, error) {
	if c.resp.rlen <= int64(c.resp.data.Len()) {
		c.flags.Clear(FlagWaitReceive)
		return 0, nil
	}

	left := c.resp.rlen - int64(c.resp.data.Len())
	dst := c.resp.data.Extend(int(left))

	n, err := c.file.Read(dst)
	if n > 0 {
		c.resp.data.Advance(n)
		c.flags.Set(FlagWaitSend)

		if int64(c.resp.data.Len()) >= c.resp.rlen {
			c.flags.Clear(FlagWaitReceive)

			if c.file != nil {
				_ = c.file.Close()
				c.file = nil
			}
		}
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			// out of input data; let the copy drain to the client
			c.flags.Clear(FlagWaitReceive)

			if c.file != nil {
				_ = c.file.Close()
				c.file = nil
			}

			return n, nil
		}

		c.engine.Log.Debug("read of served file failed", zapID(c), zap.Error(err))
		c.markDead()
		return n, err
	}

	return n, nil
}

// Run drives the slot until the connection dies: receive while the slot
// wants to read, route once a request validates, send while a response is
// pending. Within the slot everything is sequential; would-block conditions
// from the transport just bounce control back here.
func (e *Engine) Run(c *Client) {
	defer c.Close()

	for !c.dead {
		if c.WantsRead() {
			if _, err := c.Receive(); err != nil {
				break
			}

			if c.mode != method.FILECOPY && !c.dead {
				c.ProcessRequest()
			}
		}

		if c.dead {
			break
		}

		if c.WantsSend() {
			if _, err := c.Send(); err != nil {
				break
			}
		}

		if !c.WantsRead() && !c.WantsSend() {
			break
		}
	}
}
