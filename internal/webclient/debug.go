//go:build vigil_internal_checks

package webclient

import (
	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
)

// internalChecksEndpoint serves the developer endpoints that only exist in
// internal-checks builds. All of them require the agentconf capability.
func (e *Engine) internalChecksEndpoint(c *Client, tok, rest string) (status.Code, bool) {
	switch tok {
	case "exit":
		if !c.can(acl.AgentConf) {
			return c.PermissionDenied(), true
		}

		c.resp.data.Reset()
		c.resp.data.ContentType = mime.Plain

		if e.Shutdown != nil {
			c.resp.data.AppendString("ok, will do...")
			e.Log.Error("web request to exit received")
			go e.Shutdown()
		} else {
			c.resp.data.AppendString("I am doing it already")
		}

		return status.OK, true

	case "debug":
		if !c.can(acl.AgentConf) {
			return c.PermissionDenied(), true
		}

		c.resp.data.Reset()
		c.resp.data.AppendString("debug which chart?\r\n")
		return status.BadRequest, true

	case "mirror":
		if !c.can(acl.AgentConf) {
			return c.PermissionDenied(), true
		}

		// replace the zero bytes with spaces and echo the request buffer
		// back as-is
		c.resp.data.CharReplace(0, ' ')
		return status.OK, true
	}

	return 0, false
}
