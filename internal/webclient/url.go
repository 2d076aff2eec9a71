package webclient

import (
	"strings"

	"github.com/vigil-web/vigil/http/method"
)

// decodeTarget percent-decodes the request-target and splits it into the
// decoded path and the decoded query string (with its leading '?'
// preserved). The raw target is kept as received for logging and redirect
// construction. Returns false on an invalid escape sequence.
func (c *Client) decodeTarget(target string) bool {
	decoded, ok := urlDecode(target)
	if !ok {
		return false
	}

	if c.urlAsReceived.Len() == 0 {
		// do not overwrite this if it is already filled
		c.urlAsReceived.AppendString(target)
	}

	c.urlPathDecoded.Reset()
	c.urlQueryDecoded.Reset()

	if c.mode == method.STREAM {
		// in stream mode there is no path, the whole target is the query
		c.urlQueryDecoded.AppendString(decoded)
		return true
	}

	if q := strings.IndexByte(decoded, '?'); q != -1 {
		c.urlQueryDecoded.AppendString(decoded[q:])
		decoded = decoded[:q]
	}

	c.urlPathDecoded.AppendString(decoded)

	return true
}

// classifyPath sets the path flags used by the router and the static file
// resolver: trailing slash and filename extension. The version flags are
// discovered later, while the router walks the path segments.
func (c *Client) classifyPath() {
	c.flags.Clear(pathFlagsMask)

	path := c.urlPathDecoded.String()

	if len(path) == 0 || path[len(path)-1] == '/' {
		c.flags.Set(FlagPathTrailingSlash)
	}

	// an extension is a dot in the last path segment
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			break
		}
		if path[i] == '.' {
			c.flags.Set(FlagPathFileExtension)
			break
		}
	}
}

// dashboardVersion returns the dashboard major version of the request path,
// or -1 when the path carries no version prefix.
func (c *Client) dashboardVersion() int {
	if !c.flags.Has(FlagPathWithVersion) {
		return -1
	}

	switch {
	case c.flags.Has(FlagPathIsV0):
		return 0
	case c.flags.Has(FlagPathIsV1):
		return 1
	case c.flags.Has(FlagPathIsV2):
		return 2
	}

	return -1
}

// urlDecode resolves %XX escapes. The decoded form never retains escape
// sequences; a truncated or non-hex escape fails the whole target.
func urlDecode(s string) (string, bool) {
	if !strings.ContainsRune(s, '%') {
		return s, true
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}

		if i+2 >= len(s) {
			return "", false
		}

		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", false
		}

		b.WriteByte(hi<<4 | lo)
		i += 2
	}

	return b.String(), true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}

	return 0, false
}
