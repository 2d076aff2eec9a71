package webclient

import (
	"time"

	"github.com/vigil-web/vigil/http/method"
	"go.uber.org/zap"
)

func zapID(c *Client) zap.Field {
	return zap.Uint64("id", c.id)
}

func zapFile(path string) zap.Field {
	return zap.String("file", path)
}

// logAccess emits the one-line record of a completed request: who, what,
// how many bytes each way, how well it compressed and how long each phase
// took. The URL is logged as received, with control characters blanked.
func (c *Client) logAccess() {
	now := time.Now()

	size := int64(c.resp.data.Len())
	if c.mode == method.FILECOPY {
		size = c.resp.rlen
	}

	sent := size
	if c.resp.z.enabled {
		sent = c.resp.z.totalOut
	}

	ratio := 0.0
	if size > 0 {
		ratio = -(float64(size-sent) / float64(size) * 100.0)
	}

	url := []byte(c.urlAsReceived.String())
	for i := range url {
		if url[i] < 0x20 || url[i] == 0x7f {
			url[i] = ' '
		}
	}

	c.engine.AccessLog.Info("request",
		zap.Uint64("id", c.id),
		zap.String("peer_ip", c.peerIP),
		zap.Int("peer_port", c.peerPort),
		zap.String("mode", c.mode.Label()),
		zap.Int64("sent_bytes", sent),
		zap.Int64("size_bytes", size),
		zap.Float64("ratio_pct", ratio),
		zap.Float64("prep_ms", durationMs(c.timings.ready.Sub(c.timings.in))),
		zap.Float64("sent_ms", durationMs(now.Sub(c.timings.ready))),
		zap.Float64("total_ms", durationMs(now.Sub(c.timings.in))),
		zap.Int("code", int(c.resp.code)),
		zap.ByteString("url", url),
	)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
