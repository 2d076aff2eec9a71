package webclient

import (
	"errors"

	"github.com/klauspost/compress/gzip"
	"github.com/vigil-web/vigil/config"
	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/internal/transport"
	"go.uber.org/zap"
)

// zbufferInitialSize is the starting capacity of the compressor output
// buffer. One deflate round fills it with whatever the flush produced.
const zbufferInitialSize = 16 * 1024

var chunkTrailer = []byte("\r\n0\r\n\r\n")

// deflater is the streaming gzip state of one response. The source body is
// fed through the writer round by round; each round's output becomes one
// HTTP chunk.
type deflater struct {
	writer *gzip.Writer
	// out accumulates the compressor output of the current round; have and
	// sent track how much of it is valid and how much already reached the
	// socket. sent <= have <= len(out) at all times.
	out  []byte
	have int
	sent int

	// pending holds chunk framing bytes a would-block left unsent. They go
	// out before any payload byte may follow them.
	pending       []byte
	trailerQueued bool

	initialized bool
	enabled     bool
	finished    bool

	totalIn  int64
	totalOut int64
}

// Write collects compressor output. It is the sink the gzip writer flushes
// into; never called by anything else.
func (z *deflater) Write(p []byte) (int, error) {
	z.out = append(z.out, p...)
	return len(p), nil
}

func (z *deflater) teardown() {
	if !z.initialized {
		return
	}

	*z = deflater{out: z.out[:0], pending: z.pending[:0]}
}

// enableDeflate arms gzip compression for the current response. Compression
// cannot start once body bytes were already sent, and arming twice is a
// no-op: the Accept-Encoding header may be revisited by the restartable
// parser.
func (c *Client) enableDeflate() {
	z := &c.resp.z

	if z.initialized {
		return
	}

	if c.resp.sent != 0 {
		c.engine.Log.Error("cannot enable compression in the middle of a conversation",
			zapID(c))
		return
	}

	level := c.engine.Config.Web.GzipLevel
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	if c.engine.Config.Web.GzipStrategy == config.GzipHuffmanOnly {
		level = gzip.HuffmanOnly
	}

	if z.out == nil {
		z.out = make([]byte, 0, zbufferInitialSize)
	}

	writer, err := gzip.NewWriterLevel(z, level)
	if err != nil {
		c.engine.Log.Error("failed to initialize gzip, proceeding without compression",
			zapID(c), zap.Error(err))
		return
	}

	z.writer = writer
	z.have = 0
	z.sent = 0
	z.initialized = true
	z.enabled = true
	c.flags.Set(FlagChunkedTransfer)
}

// producerComplete reports whether every source byte of the response is
// already in the body buffer, which lets the next deflate round finish the
// stream instead of sync-flushing it.
func (c *Client) producerComplete() bool {
	switch c.mode {
	case method.GET, method.POST, method.PUT, method.DELETE, method.OPTIONS:
		return true
	case method.FILECOPY:
		return !c.flags.Has(FlagWaitReceive) && int64(c.resp.data.Len()) == c.resp.rlen
	}

	return true
}

// sendDeflate advances the compressed send path by one round: push framing
// left over from a would-block, finalize if everything is out, otherwise
// compress the new source bytes into a fresh chunk and push the chunk to
// the socket.
func (c *Client) sendDeflate() (int, error) {
	z := &c.resp.z

	if len(z.pending) > 0 {
		blocked, err := c.drainFraming()
		if blocked || err != nil {
			return 0, err
		}
	}

	if int64(c.resp.data.Len()) == c.resp.sent && z.have == z.sent {
		// there is nothing left to compress or transmit

		if c.mode == method.FILECOPY && c.flags.Has(FlagWaitReceive) &&
			c.resp.rlen > int64(c.resp.data.Len()) {
			// more file data is on its way; sleep the send side
			c.flags.Clear(FlagWaitSend)
			return 0, nil
		}

		// finalize the chunked stream, but only if a chunk was ever opened
		if c.resp.sent != 0 && !z.trailerQueued {
			z.trailerQueued = true
			if _, err := c.queueFraming(chunkTrailer); err != nil {
				return 0, err
			}
		}

		if len(z.pending) > 0 {
			// the trailer is still in flight; come back for it
			c.flags.Set(FlagWaitSend)
			return 0, nil
		}

		if !c.flags.Has(FlagKeepAlive) {
			c.markDead()
			return 0, nil
		}

		c.requestDone()
		return 0, nil
	}

	if z.have == z.sent && !z.finished {
		// the previous chunk is fully on the wire; compress more input

		if c.resp.sent != 0 {
			// close the previous open chunk
			if _, err := c.queueFraming([]byte("\r\n")); err != nil {
				return 0, err
			}
		}

		source := c.resp.data.Bytes()[c.resp.sent:]
		z.out = z.out[:0]

		if _, err := z.writer.Write(source); err != nil {
			c.engine.Log.Error("compression failed, closing down client",
				zapID(c), zap.Error(err))
			c.markDead()
			return 0, err
		}

		// ask for the stream trailer if we have all the input
		var err error
		if c.producerComplete() {
			err = z.writer.Close()
			z.finished = true
		} else {
			err = z.writer.Flush()
		}
		if err != nil {
			c.engine.Log.Error("compression failed, closing down client",
				zapID(c), zap.Error(err))
			c.markDead()
			return 0, err
		}

		z.have = len(z.out)
		z.sent = 0
		z.totalIn += int64(len(source))
		z.totalOut += int64(z.have)

		// keep track of the bytes passed through the compressor
		c.resp.sent = int64(c.resp.data.Len())

		// open a new chunk
		var header [16]byte
		if _, err := c.queueFraming(appendHexLen(header[:0], z.have)); err != nil {
			return 0, err
		}
	}

	if len(z.pending) > 0 {
		// payload bytes may not overtake their chunk framing
		c.flags.Set(FlagWaitSend)
		return 0, nil
	}

	n, err := c.conn.Write(z.out[z.sent:z.have])
	if n > 0 {
		c.stats.sentBytes += int64(n)
		z.sent += n
	}

	if err != nil {
		if errors.Is(err, transport.ErrWantWrite) || errors.Is(err, transport.ErrWantRead) {
			c.recordTLSWant(err)
			c.flags.Set(FlagWaitSend)
			return n, nil
		}

		c.engine.Log.Debug("failed to send data to client", zapID(c), zap.Error(err))
		c.markDead()
		return n, err
	}

	return n, nil
}

// queueFraming appends a chunk framing sequence to the pending queue and
// tries to push the queue out right away.
func (c *Client) queueFraming(p []byte) (blocked bool, err error) {
	z := &c.resp.z
	z.pending = append(z.pending, p...)

	return c.drainFraming()
}

// drainFraming writes the queued framing bytes. A would-block records the
// pending direction and yields back to the event loop instead of spinning;
// whatever remains is retried on the next send round.
func (c *Client) drainFraming() (blocked bool, err error) {
	z := &c.resp.z

	for len(z.pending) > 0 {
		n, werr := c.conn.Write(z.pending)
		c.stats.sentBytes += int64(n)
		z.pending = z.pending[n:]

		if werr == nil {
			continue
		}

		if errors.Is(werr, transport.ErrWantWrite) || errors.Is(werr, transport.ErrWantRead) {
			c.recordTLSWant(werr)
			c.flags.Set(FlagWaitSend)
			return true, nil
		}

		c.markDead()
		return false, werr
	}

	z.pending = z.pending[:0]
	return false, nil
}

// appendHexLen renders the chunk-size line "{size-in-hex}\r\n".
func appendHexLen(dst []byte, n int) []byte {
	const digits = "0123456789ABCDEF"

	if n == 0 {
		dst = append(dst, '0')
	} else {
		var tmp [16]byte
		i := len(tmp)
		for n > 0 {
			i--
			tmp[i] = digits[n&0xF]
			n >>= 4
		}
		dst = append(dst, tmp[i:]...)
	}

	return append(dst, '\r', '\n')
}
