package webclient

import (
	"time"

	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
)

// timeoutInit stamps the request-received time on the first processing pass
// of a request. Cleared when the slot is reset for the next one.
func (c *Client) timeoutInit() {
	if c.timings.in.IsZero() {
		c.timings.in = time.Now()
		c.timings.lastCheckpoint = c.timings.in
	}
}

// checkpoint rolls the checkpoint forward and returns the time since the
// previous one.
func (c *Client) checkpoint() time.Duration {
	now := time.Now()

	if c.timings.lastCheckpoint.IsZero() {
		c.timings.lastCheckpoint = c.timings.in
	}

	since := now.Sub(c.timings.lastCheckpoint)
	c.timings.lastCheckpoint = now

	return since
}

// timeoutResponseReady stamps the moment the response became ready to send.
func (c *Client) timeoutResponseReady() {
	c.checkpoint()
	c.timings.ready = c.timings.lastCheckpoint
}

// TimeoutCheckpointAndCheck rolls the checkpoint and, when the time since
// the request was received exceeds the slot's budget, replaces whatever
// response was in flight with a 504. Long-running handlers call this
// between expensive steps.
func (c *Client) TimeoutCheckpointAndCheck() bool {
	c.checkpoint()

	if c.timings.timeout == 0 || c.timings.in.IsZero() {
		return false
	}

	if c.timings.lastCheckpoint.Sub(c.timings.in) < c.timings.timeout {
		return false
	}

	c.resp.data.Reset()
	c.resp.data.ContentType = mime.Plain
	c.resp.data.AppendString("Query timeout exceeded")
	c.resp.code = status.GatewayTimeout

	return true
}
