package webclient

import (
	"errors"
	"time"

	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/internal/transport"
	"go.uber.org/zap"
)

// ServerToken identifies the agent in the Server response header.
const ServerToken = "Vigil Embedded HTTP Server"

// rfc1123GMT is the Date header layout. The engine always reports GMT.
const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// headerSendRetries bounds the would-block spins of the first header write
// before the slot surrenders.
const headerSendRetries = 100

// buildHeader serializes the response header block, once per response.
func (c *Client) buildHeader() {
	if c.resp.code != status.OK {
		c.resp.data.NoCacheable()
	}

	if c.resp.data.Date.IsZero() {
		c.resp.data.Date = time.Now()
	}

	// set a proper expiration date, if not already set
	if c.resp.data.Expires.IsZero() {
		expires := c.resp.data.Date
		if c.resp.data.IsCacheable() {
			expires = expires.Add(24 * time.Hour)
		}
		c.resp.data.Expires = expires
	}

	out := c.resp.headerOutput

	if c.resp.code == status.HTTPSUpgrade {
		c.resp.code = status.MovedPermanently
		out.Appendf("HTTP/1.1 %d %s\r\nLocation: https://%s%s\r\n",
			int(c.resp.code), status.Text(c.resp.code),
			c.serverHost, c.urlAsReceived.String())
	} else {
		connection := "close"
		if c.flags.Has(FlagKeepAlive) {
			connection = "keep-alive"
		}

		out.Appendf("HTTP/1.1 %d %s\r\n"+
			"Connection: %s\r\n"+
			"Server: %s\r\n"+
			"Access-Control-Allow-Origin: %s\r\n"+
			"Access-Control-Allow-Credentials: true\r\n"+
			"Content-Type: %s\r\n"+
			"Date: %s\r\n",
			int(c.resp.code), status.Text(c.resp.code),
			connection,
			ServerToken,
			orStar(c.origin),
			c.resp.data.ContentType,
			c.resp.data.Date.UTC().Format(rfc1123GMT))
	}

	if xfo := c.engine.Config.Web.XFrameOptions; xfo != "" {
		out.Appendf("X-Frame-Options: %s\r\n", xfo)
	}

	if c.engine.Config.Web.RespectDoNotTrack {
		if c.resp.hasCookies || c.flags.Has(FlagTrackingRequired) {
			out.AppendString("Tk: T;cookies\r\n")
		} else {
			out.AppendString("Tk: N\r\n")
		}
	}

	if c.mode == method.OPTIONS {
		out.AppendString(
			"Access-Control-Allow-Methods: GET, OPTIONS\r\n" +
				"Access-Control-Allow-Headers: accept, x-requested-with, origin, content-type, cookie, pragma, cache-control, x-auth-token\r\n" +
				"Access-Control-Max-Age: 1209600\r\n")
	} else {
		cacheControl := "public"
		if !c.resp.data.IsCacheable() {
			cacheControl = "no-cache, no-store, must-revalidate\r\nPragma: no-cache"
		}

		out.Appendf("Cache-Control: %s\r\nExpires: %s\r\n",
			cacheControl, c.resp.data.Expires.UTC().Format(rfc1123GMT))
	}

	// copy a possibly available custom header
	if c.resp.header.Len() > 0 {
		out.Append(c.resp.header.Bytes())
	}

	// headers related to the transfer method
	if c.resp.z.enabled {
		out.AppendString("Content-Encoding: gzip\r\n")
	}

	if c.flags.Has(FlagChunkedTransfer) {
		out.AppendString("Transfer-Encoding: chunked\r\n")
	} else {
		if c.resp.data.Len() > 0 || c.resp.rlen > 0 {
			// we know the content length, put it
			length := int64(c.resp.data.Len())
			if length == 0 {
				length = c.resp.rlen
			}
			out.Appendf("Content-Length: %d\r\n", length)
		} else {
			// we don't know the content length, disable keep-alive so the
			// connection close delimits the body
			c.flags.Clear(FlagKeepAlive)
		}
	}

	out.AppendString("\r\n")
}

// sendHeader writes the serialized header block, corking the socket first so
// header and body share a packet where possible. The first write is special:
// it spins on would-block up to a fixed budget before surrendering.
func (c *Client) sendHeader() {
	c.buildHeader()
	c.cork()

	block := c.resp.headerOutput.Bytes()
	written := 0

	for attempt := 0; written < len(block); {
		n, err := c.conn.Write(block[written:])
		written += n

		if err == nil {
			continue
		}

		if errors.Is(err, transport.ErrWantWrite) || errors.Is(err, transport.ErrWantRead) {
			c.recordTLSWant(err)
			if attempt++; attempt > headerSendRetries {
				c.engine.Log.Error("cannot send HTTP headers to web client",
					zapID(c))
				break
			}
			continue
		}

		c.engine.Log.Error("HTTP headers failed to be sent, closing web client",
			zapID(c), zap.Int("written", written), zap.Error(err))
		c.markDead()
		return
	}

	c.stats.sentBytes += int64(written)
}

// recordTLSWant flips the TLS wait bits after an encrypted operation
// reported a pending direction, so the event loop re-arms correctly.
func (c *Client) recordTLSWant(err error) {
	if !c.conn.Encrypted() {
		return
	}

	switch {
	case errors.Is(err, transport.ErrWantRead):
		c.flags.Set(FlagTLSWaitReceive)
		c.flags.Clear(FlagTLSWaitSend)
	case errors.Is(err, transport.ErrWantWrite):
		c.flags.Set(FlagTLSWaitSend)
		c.flags.Clear(FlagTLSWaitReceive)
	default:
		c.flags.Clear(FlagTLSWaitReceive)
		c.flags.Clear(FlagTLSWaitSend)
	}
}

func orStar(origin string) string {
	if origin == "" {
		return "*"
	}

	return origin
}
