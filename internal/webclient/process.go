package webclient

import (
	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
)

// canAnything is the gate for ordinary requests: any one granted capability
// other than Stream lets the request proceed to routing, which applies the
// precise checks.
func (c *Client) canAnything() bool {
	return c.can(acl.Dashboard) ||
		c.can(acl.Registry) ||
		c.can(acl.Badges) ||
		c.can(acl.Mgmt) ||
		c.can(acl.AgentConf)
}

// ProcessRequest runs one validation pass over the accumulated request
// bytes and, once they form a complete request, routes it, prepares the
// response body and sends the header. Incomplete requests return quietly
// and wait for more reads.
func (c *Client) ProcessRequest() {
	e := c.engine

	c.timeoutInit()

	switch c.validate() {
	case ValidationOK:
		switch c.mode {
		case method.STREAM:
			if !c.can(acl.Stream) {
				c.PermissionDenied()
				break
			}

			if e.Stream == nil {
				c.resp.data.Reset()
				c.resp.data.ContentType = mime.Plain
				c.resp.data.AppendString("Streaming is not enabled on this agent.")
				c.resp.code = status.ServiceUnavailable
				break
			}

			c.resp.code = e.Stream(c, c.urlQueryDecoded.String())

		case method.OPTIONS:
			if !c.canAnything() {
				c.PermissionDenied()
				break
			}

			c.resp.data.Reset()
			c.resp.data.ContentType = mime.Plain
			c.resp.data.AppendString("OK")
			c.resp.code = status.OK

		default:
			if !c.canAnything() {
				c.PermissionDenied()
				break
			}

			c.classifyPath()
			c.resp.code = e.processURL(e.Registry.Root(), c, c.urlPathDecoded.String())
		}

	case ValidationIncomplete:
		if c.resp.data.Len() > e.Config.Web.MaxRequestSize {
			received := c.resp.data.Len()

			c.urlAsReceived.Reset()
			c.urlAsReceived.AppendString("too big request")

			c.resp.data.Reset()
			c.resp.data.Appendf(
				"Received request is too big (received %d bytes, max is %d bytes).\r\n",
				received, e.Config.Web.MaxRequestSize)
			c.resp.code = status.BadRequest
			break
		}

		// wait for more data. Reset to plain mode so a half-read STREAM
		// preamble does not divert the receive path.
		if c.mode == method.STREAM {
			c.mode = method.GET
		}
		return

	case ValidationRedirect:
		c.resp.data.Reset()
		c.resp.data.ContentType = mime.HTML
		c.resp.data.AppendString(
			"<!DOCTYPE html><html>" +
				"<body onload=\"window.location.href ='https://'+ window.location.hostname +" +
				" ':' + window.location.port + window.location.pathname + window.location.search\">" +
				"Redirecting to safety connection, case your browser does not support redirection, please" +
				" click <a onclick=\"window.location.href ='https://'+ window.location.hostname + ':' " +
				" + window.location.port + window.location.pathname + window.location.search\">here</a>." +
				"</body></html>")
		c.resp.code = status.HTTPSUpgrade

	case ValidationMalformedURL:
		c.resp.data.Reset()
		c.resp.data.AppendString("Malformed URL...\r\n")
		c.resp.code = status.BadRequest

	case ValidationExcessRequestData:
		c.resp.data.Reset()
		c.resp.data.AppendString("Excess data in request.\r\n")
		c.resp.code = status.BadRequest

	case ValidationTooManyReadRetries:
		// a client this slow gets no response at all
		c.markDead()
		return

	case ValidationNotSupported:
		c.resp.data.Reset()
		c.resp.data.AppendString("HTTP method requested is not supported...\r\n")
		c.resp.code = status.BadRequest
	}

	// a response that overran its budget while routing is replaced wholesale
	c.TimeoutCheckpointAndCheck()

	c.timeoutResponseReady()
	c.resp.sent = 0

	c.sendHeader()
	if c.dead {
		return
	}

	// enable sending immediately if we have data
	if c.resp.data.Len() > 0 {
		c.flags.Set(FlagWaitSend)
	} else {
		c.flags.Clear(FlagWaitSend)
	}

	if c.mode == method.FILECOPY && c.resp.rlen > 0 {
		c.flags.Set(FlagWaitReceive)
	}
}
