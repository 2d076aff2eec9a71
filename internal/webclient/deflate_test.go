package webclient

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/internal/transport/dummy"
	"github.com/vigil-web/vigil/registry"
)

// dechunk reassembles a chunked transfer body and returns the payload plus
// whether the terminating zero chunk was present.
func dechunk(t *testing.T, raw []byte) (payload []byte, terminated bool) {
	t.Helper()

	for len(raw) > 0 {
		eol := bytes.Index(raw, []byte("\r\n"))
		require.NotEqual(t, -1, eol, "chunk size line missing")

		size, err := strconv.ParseInt(string(raw[:eol]), 16, 64)
		require.NoError(t, err, "bad chunk size line")

		raw = raw[eol+2:]
		if size == 0 {
			return payload, true
		}

		require.GreaterOrEqual(t, int64(len(raw)), size)
		payload = append(payload, raw[:size]...)
		raw = raw[size:]

		require.True(t, bytes.HasPrefix(raw, []byte("\r\n")))
		raw = raw[2:]
	}

	return payload, false
}

func TestGzipChunkedRoundTrip(t *testing.T) {
	body := strings.Repeat(uniuri.NewLen(64), 160) // 10 KB, mildly compressible

	e := newTestEngine(func(e *Engine) {
		e.APIv2 = func(host *registry.Host, c *Client, path string) status.Code {
			c.Response().Reset()
			c.Response().ContentType = mime.JSON
			c.Response().NoCacheable()
			c.Response().AppendString(body)
			return status.OK
		}
	})

	conn := dummy.NewStringConn(
		"GET /api/v2/info HTTP/1.1\r\n" +
			"Host: h\r\n" +
			"Accept-Encoding: gzip\r\n" +
			"\r\n")
	c := newTestClient(e, conn)

	drive(c, conn)

	wire := conn.Written()
	headerEnd := bytes.Index(wire, []byte("\r\n\r\n"))
	require.NotEqual(t, -1, headerEnd)

	header := string(wire[:headerEnd])
	require.Contains(t, header, "Content-Encoding: gzip")
	require.Contains(t, header, "Transfer-Encoding: chunked")
	require.NotContains(t, header, "Content-Length:")

	chunked := wire[headerEnd+4:]
	require.True(t, bytes.HasSuffix(chunked, []byte("\r\n0\r\n\r\n")))

	compressed, terminated := dechunk(t, chunked)
	require.True(t, terminated)

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, body, string(decompressed))

	// every compressor output byte is accounted for on the wire
	require.EqualValues(t, c.resp.z.totalOut, len(compressed))
}

func TestGzipKeepAliveSlotReuse(t *testing.T) {
	e := newTestEngine()
	conn := dummy.NewStringConn(
		"GET /api/v1/info HTTP/1.1\r\n" +
			"Connection: keep-alive\r\n" +
			"Accept-Encoding: gzip\r\n" +
			"\r\n")
	c := newTestClient(e, conn)

	drive(c, conn)

	// the slot was reset for the next request on the same socket
	require.False(t, c.resp.z.enabled)
	require.Zero(t, c.resp.data.Len())
	require.Zero(t, c.urlAsReceived.Len())
	require.EqualValues(t, 2, c.UseCount())
	require.False(t, c.flags.Has(FlagChunkedTransfer))
}

func TestPlainSendCompletesAndCloses(t *testing.T) {
	e := newTestEngine()
	conn := dummy.NewStringConn("GET /api/v1/info HTTP/1.1\r\n\r\n")
	c := newTestClient(e, conn)

	drive(c, conn)

	// no keep-alive requested: the slot dies after the response
	require.True(t, c.Dead())

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "close", resp.Header.Get("Connection"))
}

func TestGzipFilecopyRoundTrip(t *testing.T) {
	e, _ := fileEngine(t)

	conn := dummy.NewStringConn(
		"GET /main.js HTTP/1.1\r\nAccept-Encoding: gzip\r\n\r\n")
	c := newTestClient(e, conn)

	drive(c, conn)

	wire := conn.Written()
	headerEnd := bytes.Index(wire, []byte("\r\n\r\n"))
	require.NotEqual(t, -1, headerEnd)
	require.Contains(t, string(wire[:headerEnd]), "Content-Encoding: gzip")

	compressed, terminated := dechunk(t, wire[headerEnd+4:])
	require.True(t, terminated)

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "console.log('flat')", string(decompressed))
}

// a transport that keeps signalling would-block must not lose or reorder
// chunk framing; the pending queue resumes it on the next round.
func TestGzipFramingSurvivesWantWrite(t *testing.T) {
	e := newTestEngine()
	conn := dummy.NewStringConn(
		"GET /api/v1/info HTTP/1.1\r\nAccept-Encoding: gzip\r\n\r\n")
	conn.WantWriteEvery = 2
	c := newTestClient(e, conn)

	drive(c, conn)

	wire := conn.Written()
	headerEnd := bytes.Index(wire, []byte("\r\n\r\n"))
	require.NotEqual(t, -1, headerEnd)

	compressed, terminated := dechunk(t, wire[headerEnd+4:])
	require.True(t, terminated)

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"v1","hostname":"parent"}`, string(body))
}

func TestEnableDeflateIsIdempotent(t *testing.T) {
	e := newTestEngine()
	c := newTestClient(e, dummy.NewConn())

	c.enableDeflate()
	w := c.resp.z.writer
	require.NotNil(t, w)

	c.enableDeflate()
	require.Same(t, w, c.resp.z.writer)
}

func TestEnableDeflateRefusedMidConversation(t *testing.T) {
	e := newTestEngine()
	c := newTestClient(e, dummy.NewConn())

	c.resp.data.AppendString("already sent")
	c.resp.sent = int64(c.resp.data.Len())

	c.enableDeflate()
	require.False(t, c.resp.z.enabled)
}

func TestAppendHexLen(t *testing.T) {
	require.Equal(t, "0\r\n", string(appendHexLen(nil, 0)))
	require.Equal(t, "A\r\n", string(appendHexLen(nil, 10)))
	require.Equal(t, "2710\r\n", string(appendHexLen(nil, 10000)))
}
