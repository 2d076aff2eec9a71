package webclient

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vigil-web/vigil/internal/transport/dummy"
)

func TestHeaderContainsRecognizedSet(t *testing.T) {
	conn := dummy.NewStringConn(
		"GET /api/v1/info HTTP/1.1\r\n" +
			"Origin: https://dash.example\r\n" +
			"Connection: keep-alive\r\n\r\n")
	e := newTestEngine()
	c := newTestClient(e, conn)

	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.Equal(t, ServerToken, resp.Header.Get("Server"))
	require.NotEmpty(t, resp.Header.Get("Date"))
	require.True(t, strings.HasSuffix(resp.Header.Get("Date"), "GMT"))
}

func TestHeaderOriginDefaultsToStar(t *testing.T) {
	conn := dummy.NewStringConn("GET /api/v1/info HTTP/1.1\r\n\r\n")
	e := newTestEngine()
	c := newTestClient(e, conn)

	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHeaderNonCacheableResponse(t *testing.T) {
	conn := dummy.NewStringConn("GET /api/v1/info HTTP/1.1\r\n\r\n")
	e := newTestEngine()
	c := newTestClient(e, conn)

	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	require.Equal(t, "no-cache", resp.Header.Get("Pragma"))
	require.NotEmpty(t, resp.Header.Get("Expires"))
}

func TestHeaderCacheableFile(t *testing.T) {
	e, _ := fileEngine(t)
	conn, _ := serveURL(t, e, "/main.js")

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "public", resp.Header.Get("Cache-Control"))

	expires, err := time.Parse(rfc1123GMT, resp.Header.Get("Expires"))
	require.NoError(t, err)
	date, err := time.Parse(rfc1123GMT, resp.Header.Get("Date"))
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, expires.Sub(date))
}

func TestHeaderXFrameOptions(t *testing.T) {
	e := newTestEngine(func(e *Engine) {
		cfg := *e.Config
		cfg.Web.XFrameOptions = "SAMEORIGIN"
		e.Config = &cfg
	})

	conn := dummy.NewStringConn("GET /api/v1/info HTTP/1.1\r\n\r\n")
	c := newTestClient(e, conn)
	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}

func TestHeaderTkWhenDNTRespected(t *testing.T) {
	e := newTestEngine(func(e *Engine) {
		cfg := *e.Config
		cfg.Web.RespectDoNotTrack = true
		e.Config = &cfg
	})

	conn := dummy.NewStringConn("GET /api/v1/info HTTP/1.1\r\nDNT: 1\r\n\r\n")
	c := newTestClient(e, conn)
	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, "N", resp.Header.Get("Tk"))
}

func TestHeaderTLSUpgrade(t *testing.T) {
	e := newTestEngine()
	conn := dummy.NewStringConn(
		"GET /index.html HTTP/1.1\r\nHost: agent.example\r\n\r\n")
	c := newTestClient(e, conn)
	c.flags.Set(FlagTLSForce)

	drive(c, conn)

	resp, err := parseResponse(conn.Written(), "GET")
	require.NoError(t, err)
	require.Equal(t, 301, resp.StatusCode)
	require.Equal(t, "https://agent.example/index.html", resp.Header.Get("Location"))

	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "Redirecting to safety connection")
}

func TestHeaderUnknownLengthDisablesKeepAlive(t *testing.T) {
	e := newTestEngine()
	c := newTestClient(e, dummy.NewConn())

	c.flags.Set(FlagKeepAlive)
	// no body, no remaining length, no chunked transfer
	c.resp.code = 200
	c.buildHeader()

	require.False(t, c.flags.Has(FlagKeepAlive))
	require.NotContains(t, c.resp.headerOutput.String(), "Content-Length")
}
