package webclient

import (
	"bytes"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/vigil-web/vigil/http/method"
	"go.uber.org/zap"
)

// Validation is the outcome of one pass of the request validator over the
// accumulating receive buffer.
type Validation uint8

const (
	ValidationOK Validation = iota
	ValidationIncomplete
	ValidationNotSupported
	ValidationMalformedURL
	ValidationExcessRequestData
	ValidationTooManyReadRetries
	// ValidationRedirect asks for a TLS upgrade of a plain-transport request.
	ValidationRedirect
)

// maxParseTries bounds how often the validator may run over a buffer whose
// terminator has still not arrived. Once it is exceeded, the client is given
// up on at the first pass that finds no new bytes since the previous one.
const maxParseTries = 10

var (
	crlfcrlf  = []byte("\r\n\r\n")
	httpProto = []byte(" HTTP/")
)

// validate runs the incremental request validation over the receive buffer.
// It is called after every read and is restartable: until it returns
// ValidationOK its effects are idempotent, so a request whose header block
// straddles many reads is re-examined from scratch each time, with the
// terminator search shortcut starting a few bytes behind the previous size
// so a boundary split between two reads is still found.
func (c *Client) validate() Validation {
	data := c.resp.data.Bytes()

	lastPos := c.parseLastSize
	c.parseTries++
	c.parseLastSize = len(data)

	searchFrom := 0
	if c.parseTries > 1 {
		if lastPos > 4 {
			searchFrom = lastPos - 4
		}
		if len(data) < searchFrom {
			searchFrom = 0
		}
	}

	terminator := bytes.Index(data[searchFrom:], crlfcrlf)
	if terminator != -1 {
		terminator += searchFrom
	}

	if terminator == -1 {
		if c.parseTries > maxParseTries && len(data) <= lastPos {
			c.engine.Log.Info("disabling slow client",
				zap.Int("attempts", c.parseTries),
				zap.Int("received_bytes", len(data)))
			c.parseTries = 0
			c.parseLastSize = 0
			c.flags.Clear(FlagWaitReceive)
			return ValidationTooManyReadRetries
		}

		c.flags.Set(FlagWaitReceive)
		return ValidationIncomplete
	}

	m, rest, ok := method.Parse(c.resp.data.String())
	if !ok {
		c.parseTries = 0
		c.parseLastSize = 0
		c.flags.Clear(FlagWaitReceive)
		return ValidationNotSupported
	}
	c.mode = m

	if m == method.STREAM && c.flags.Has(FlagTLSForce) && !c.conn.Encrypted() && !c.flags.Has(FlagUnixSocket) {
		c.parseTries = 0
		c.parseLastSize = 0
		c.flags.Clear(FlagWaitReceive)
		c.engine.Log.Error(
			"the server is configured to always use encrypted connections, "+
				"please enable TLS on the child",
			zap.String("hostname", streamHostname(rest)))
		return ValidationNotSupported
	}

	// the request-target runs up to " HTTP/"
	protoAt := bytes.Index([]byte(rest), httpProto)
	if protoAt == -1 {
		c.flags.Set(FlagWaitReceive)
		return ValidationIncomplete
	}

	encodedTarget := rest[:protoAt]

	// trailing bytes past the terminator have to be a body this method can
	// carry; anything else is excess request data
	trailing := data[terminator+4:]
	switch m {
	case method.POST, method.PUT, method.STREAM:
		if len(trailing) > 0 {
			c.postPayload = append(c.postPayload[:0], trailing...)
		}
	default:
		if len(bytes.TrimSpace(trailing)) > 0 {
			c.parseTries = 0
			c.parseLastSize = 0
			c.flags.Clear(FlagWaitReceive)
			return ValidationExcessRequestData
		}
	}

	// walk the header lines between the request line and the terminator
	headerAt := bytes.Index(data, []byte("\r\n"))
	if headerAt == -1 || headerAt > terminator {
		c.flags.Set(FlagWaitReceive)
		return ValidationIncomplete
	}

	lines := data[headerAt+2 : terminator]
	for len(lines) > 0 {
		line := lines
		if eol := bytes.Index(lines, []byte("\r\n")); eol != -1 {
			line, lines = lines[:eol], lines[eol+2:]
		} else {
			lines = nil
		}

		c.interpretHeader(string(line))
	}

	if !c.decodeTarget(encodedTarget) {
		c.parseTries = 0
		c.parseLastSize = 0
		c.flags.Clear(FlagWaitReceive)
		return ValidationMalformedURL
	}

	c.parseTries = 0
	c.parseLastSize = 0
	c.flags.Clear(FlagWaitReceive)

	if c.flags.Has(FlagTLSForce) && !c.conn.Encrypted() && !c.flags.Has(FlagUnixSocket) &&
		c.mode != method.STREAM {
		return ValidationRedirect
	}

	return ValidationOK
}

// recognized request header names. The set is fixed; everything else is
// carried over the wire and ignored.
const (
	hdrOrigin         = "Origin"
	hdrConnection     = "Connection"
	hdrAcceptEncoding = "Accept-Encoding"
	hdrDNT            = "DNT"
	hdrUserAgent      = "User-Agent"
	hdrAuthToken      = "X-Auth-Token"
	hdrHost           = "Host"
	hdrForwardedHost  = "X-Forwarded-Host"
)

func (c *Client) interpretHeader(line string) {
	colon := strings.IndexByte(line, ':')
	if colon == -1 {
		return
	}

	name := line[:colon]
	value := strings.TrimLeft(line[colon+1:], " ")

	switch {
	case strcomp.EqualFold(name, hdrOrigin):
		c.origin = value

	case strcomp.EqualFold(name, hdrConnection):
		if containsFold(value, "keep-alive") {
			c.flags.Set(FlagKeepAlive)
		}

	case strcomp.EqualFold(name, hdrDNT):
		if !c.engine.Config.Web.RespectDoNotTrack {
			break
		}
		if strings.HasPrefix(value, "1") {
			c.flags.Set(FlagDoNotTrack)
		} else if strings.HasPrefix(value, "0") {
			c.flags.Clear(FlagDoNotTrack)
		}

	case strcomp.EqualFold(name, hdrUserAgent):
		c.userAgent = value

	case strcomp.EqualFold(name, hdrAuthToken):
		c.authBearer = value

	case strcomp.EqualFold(name, hdrHost):
		c.serverHost = value

	case strcomp.EqualFold(name, hdrAcceptEncoding):
		if c.engine.Config.Web.EnableGzip && containsFold(value, "gzip") {
			c.enableDeflate()
		}

	case strcomp.EqualFold(name, hdrForwardedHost):
		c.forwardedHost = value
	}
}

// containsFold reports whether substr occurs in s case-insensitively.
// The recognized values are all ASCII.
func containsFold(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}

	for i := 0; i+len(substr) <= len(s); i++ {
		if strcomp.EqualFold(s[i:i+len(substr)], substr) {
			return true
		}
	}

	return false
}

// streamHostname extracts the hostname= parameter of a STREAM query string
// for refusal logging.
func streamHostname(target string) string {
	const key = "hostname="

	at := strings.Index(target, key)
	if at == -1 {
		return "not available"
	}

	hostname := target[at+len(key):]
	if end := strings.IndexAny(hostname, "& "); end != -1 {
		hostname = hostname[:end]
	}

	if hostname == "" {
		return "not available"
	}

	return hostname
}
