package webclient

import (
	"strings"

	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/registry"
)

// PermissionDenied writes the fixed 403 body.
func (c *Client) PermissionDenied() status.Code {
	c.resp.data.Reset()
	c.resp.data.ContentType = mime.Plain
	c.resp.data.AppendString("You are not allowed to access this resource.")
	c.resp.code = status.Forbidden
	return status.Forbidden
}

// BearerRequired writes the fixed 412 body.
func (c *Client) BearerRequired() status.Code {
	c.resp.data.Reset()
	c.resp.data.ContentType = mime.Plain
	c.resp.data.AppendString("An authorization bearer is required to access the resource.")
	c.resp.code = status.PreconditionFailed
	return status.PreconditionFailed
}

func (c *Client) badRequestMultipleVersions() status.Code {
	c.resp.data.Reset()
	c.resp.data.ContentType = mime.Plain
	c.resp.data.AppendString("Multiple dashboard versions given at the URL.")
	c.resp.code = status.BadRequest
	return status.BadRequest
}

func (c *Client) can(capability acl.Capability) bool {
	return c.engine.ACL.Can(c.peerIP, c.authBearer, capability)
}

// nextToken cuts the first path segment off path, skipping consecutive
// separators. found reports whether a separator was actually consumed, which
// the host switch uses to tell "/host/name" from "/host/name/".
func nextToken(path string) (token, rest string, found bool) {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
		found = true
	}

	slash := strings.IndexByte(path, '/')
	if slash == -1 {
		return path, "", found
	}

	return path[:slash], path[slash+1:], true
}

// processURL dispatches one decoded URL path: API, host switching, dashboard
// version prefixes, the configuration dump, the gated debug endpoints, and
// finally the static file resolver.
func (e *Engine) processURL(host *registry.Host, c *Client, path string) status.Code {
	// keep a copy of the decoded path, in case we need to serve it as a filename
	filename := path

	tok, rest, _ := nextToken(path)
	if tok != "" {
		switch tok {
		case "api":
			return e.apiRequest(host, c, rest)

		case "host", "node":
			return e.switchHost(host, c, rest, tok == "node", e.processURL)

		case "v0", "v1", "v2":
			if c.flags.Has(FlagPathWithVersion) {
				return c.badRequestMultipleVersions()
			}
			c.flags.Set(FlagPathWithVersion)
			switch tok {
			case "v0":
				c.flags.Set(FlagPathIsV0)
			case "v1":
				c.flags.Set(FlagPathIsV1)
			default:
				c.flags.Set(FlagPathIsV2)
			}
			return e.processURL(host, c, rest)

		case "agent.conf":
			if !c.can(acl.AgentConf) {
				return c.PermissionDenied()
			}
			c.resp.data.Reset()
			c.resp.data.ContentType = mime.Plain
			c.resp.data.AppendString(e.Config.Generate())
			return status.OK
		}

		if code, handled := e.internalChecksEndpoint(c, tok, rest); handled {
			return code
		}
	}

	c.resp.data.Reset()
	return e.sendFile(c, filename)
}

// apiRequest selects the API major version and hands the remainder over to
// the external dispatcher.
func (e *Engine) apiRequest(host *registry.Host, c *Client, path string) status.Code {
	tok, rest, _ := nextToken(path)
	if tok == "" {
		c.resp.data.Reset()
		c.resp.data.AppendString("Which API version?")
		return status.BadRequest
	}

	switch tok {
	case "v2":
		if e.APIv2 != nil {
			return e.APIv2(host, c, rest)
		}
	case "v1":
		if e.APIv1 != nil {
			return e.APIv1(host, c, rest)
		}
	}

	c.resp.data.Reset()
	c.resp.data.ContentType = mime.HTML
	c.resp.data.AppendString("Unsupported API version: ")
	c.resp.data.AppendHTMLEscape(tok)
	return status.NotFound
}

// switchHost resolves the /host/{name} and /node/{id} prefixes and recurses
// into fn for the selected host. Switching is only allowed one level deep.
func (e *Engine) switchHost(
	host *registry.Host, c *Client, path string, nodeID bool, fn URLHandler,
) status.Code {
	if host != e.Registry.Root() {
		c.resp.data.Reset()
		c.resp.data.AppendString("Nesting of hosts is not allowed.")
		return status.BadRequest
	}

	tok, rest, found := nextToken(path)
	if tok != "" {
		if target := e.Registry.Lookup(tok, nodeID); target != nil {
			if !found || (rest == "" && !strings.HasSuffix(path, "/")) {
				// no path remains after the host segment
				return c.appendSlashRedirect()
			}

			remaining := "/" + rest
			c.urlPathDecoded.Reset()
			c.urlPathDecoded.AppendString(remaining)
			return fn(target, c, remaining)
		}
	}

	c.resp.data.Reset()
	c.resp.data.ContentType = mime.HTML
	c.resp.data.AppendString("This agent does not maintain a database for host: ")
	c.resp.data.AppendHTMLEscape(tok)
	return status.NotFound
}

// appendSlashRedirect emits a relative 301 that re-requests the same URL
// with a trailing slash. It finds the last path component of the URL as
// received and appends '/' to it, keeping the query string; the browser
// resolves it against the directory it already knows it is in. Nothing is
// appended when the received URL already ends in a slash.
func (c *Client) appendSlashRedirect() status.Code {
	c.resp.header.AppendString("Location: ")

	url := c.urlAsReceived.String()
	if q := strings.IndexByte(url, '?'); q > 0 {
		segment := url[:q]
		if at := strings.LastIndexByte(segment, '/'); at != -1 {
			segment = segment[at+1:]
		}
		c.resp.header.AppendString(segment)
		if !strings.HasSuffix(url[:q], "/") {
			c.resp.header.AppendString("/")
		}
		c.resp.header.AppendString(url[q:])
	} else {
		segment := url
		if at := strings.LastIndexByte(segment, '/'); at != -1 {
			segment = segment[at+1:]
		}
		c.resp.header.AppendString(segment)
		if !strings.HasSuffix(url, "/") {
			c.resp.header.AppendString("/")
		}
	}

	c.resp.header.AppendString("\r\n")

	c.resp.data.Reset()
	c.resp.data.ContentType = mime.HTML
	c.resp.data.AppendString(
		"<!DOCTYPE html><html>" +
			"<body onload=\"window.location.href = window.location.origin + window.location.pathname + '/' + window.location.search + window.location.hash\">" +
			"Redirecting. In case your browser does not support redirection, please click " +
			"<a onclick=\"window.location.href = window.location.origin + window.location.pathname + '/' + window.location.search + window.location.hash\">here</a>." +
			"</body></html>")

	return status.MovedPermanently
}
