package webclient

import (
	"bufio"
	"bytes"
	"net/http"
	"strings"

	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/config"
	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/internal/transport/dummy"
	"github.com/vigil-web/vigil/registry"
	"go.uber.org/zap"
)

func testRegistry() *registry.Registry {
	r := registry.New(&registry.Host{
		Hostname: "parent",
		GUID:     "0e1b2c3d-4f50-6172-8394-a5b6c7d8e9f0",
	})
	r.Add(&registry.Host{
		Hostname: "child-1",
		GUID:     "aabbccdd-eeff-0011-2233-445566778899",
		NodeID:   "node-abc",
	})

	return r
}

func newTestEngine(mutate ...func(*Engine)) *Engine {
	cfg := config.Default()
	cfg.Web.RootDir = "/nonexistent"

	e := &Engine{
		Config:    cfg,
		Registry:  testRegistry(),
		ACL:       acl.AllowAll{},
		Log:       zap.NewNop(),
		AccessLog: zap.NewNop(),
	}

	// a tiny stand-in API: /api/v1/info and /api/v2/info answer JSON
	infoHandler := func(body string) URLHandler {
		return func(host *registry.Host, c *Client, path string) status.Code {
			endpoint := strings.TrimLeft(path, "/")
			if at := strings.IndexAny(endpoint, "/?"); at != -1 {
				endpoint = endpoint[:at]
			}

			if endpoint != "info" {
				c.Response().Reset()
				c.Response().ContentType = mime.HTML
				c.Response().AppendString("Unknown API endpoint.")
				return status.NotFound
			}

			c.Response().Reset()
			c.Response().ContentType = mime.JSON
			c.Response().NoCacheable()
			c.Response().AppendString(body)
			return status.OK
		}
	}

	e.APIv1 = infoHandler(`{"version":"v1","hostname":"parent"}`)
	e.APIv2 = infoHandler(`{"version":"v2","hostname":"parent"}`)

	for _, m := range mutate {
		m(e)
	}

	return e
}

func newTestClient(e *Engine, conn *dummy.Conn) *Client {
	return e.NewClient(conn)
}

// feed appends raw request bytes to the receive buffer, the way Receive
// would after a socket read.
func feed(c *Client, data string) {
	c.resp.data.AppendString(data)
}

// drive pumps receive/process/send rounds until the slot goes quiet or
// dies, the way the connection loop does.
func drive(c *Client, conn *dummy.Conn) {
	for rounds := 0; rounds < 10_000; rounds++ {
		if c.dead {
			return
		}

		if c.WantsRead() {
			_, err := c.Receive()
			if err == nil && c.Mode() != method.FILECOPY && !c.dead {
				c.ProcessRequest()
			}
		}

		if c.dead {
			return
		}

		if c.WantsSend() {
			_, _ = c.Send()
		}

		if !c.WantsRead() && !c.WantsSend() {
			return
		}
	}
}

// parseResponse reads the captured wire bytes back as an HTTP/1.1 response.
func parseResponse(raw []byte, method string) (*http.Response, error) {
	req, err := http.NewRequest(method, "/", nil)
	if err != nil {
		return nil, err
	}

	return http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), req)
}
