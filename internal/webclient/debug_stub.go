//go:build !vigil_internal_checks

package webclient

import "github.com/vigil-web/vigil/http/status"

// internalChecksEndpoint is compiled out of release builds: the developer
// endpoints do not exist there at all.
func (e *Engine) internalChecksEndpoint(c *Client, tok, rest string) (status.Code, bool) {
	return 0, false
}
