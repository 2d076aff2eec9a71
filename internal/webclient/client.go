package webclient

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/config"
	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/http/status"
	"github.com/vigil-web/vigil/internal/buffer"
	"github.com/vigil-web/vigil/internal/transport"
	"github.com/vigil-web/vigil/registry"
	"go.uber.org/zap"
)

const (
	urlBufferInitialSize     = 1024
	responseInitialSize      = 4 * 1024
	headerScratchInitialSize = 256
)

// URLHandler serves one decoded URL path against a host. The engine's own
// router is one; the API dispatchers are the others.
type URLHandler func(host *registry.Host, c *Client, path string) status.Code

// StreamHandler hands a validated STREAM request over to the metrics
// ingestion side. It receives the decoded query string of the request.
type StreamHandler func(c *Client, decodedQuery string) status.Code

// Engine carries everything shared between client slots: configuration, the
// host registry, access control, the API dispatchers and the logs. It is
// immutable after construction; slots reference it concurrently.
type Engine struct {
	Config    *config.Config
	Registry  *registry.Registry
	ACL       acl.Checker
	APIv1     URLHandler
	APIv2     URLHandler
	Stream    StreamHandler
	Log       *zap.Logger
	AccessLog *zap.Logger

	// Shutdown, when set, is invoked by the internal-checks exit endpoint.
	Shutdown func()

	// MemoryAccounting tracks bytes held by client buffers process-wide.
	MemoryAccounting *int64

	ids   atomic.Uint64
	cache clientCache
}

// clientCache keeps destroyed slots around so their buffers can be handed
// to the next accepted connection instead of being reallocated.
type clientCache struct {
	mu    sync.Mutex
	slots []*Client
}

const clientCacheSize = 64

func (cc *clientCache) pop() *Client {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if len(cc.slots) == 0 {
		return nil
	}

	c := cc.slots[len(cc.slots)-1]
	cc.slots = cc.slots[:len(cc.slots)-1]

	return c
}

func (cc *clientCache) push(c *Client) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if len(cc.slots) >= clientCacheSize {
		return false
	}

	cc.slots = append(cc.slots, c)
	return true
}

// NewClient hands out a slot for a freshly accepted connection, reusing a
// cached one when available: the six buffers, the memory accounting pointer
// and the use-count survive the recycling, everything else starts zeroed.
func (e *Engine) NewClient(conn transport.Conn) *Client {
	c := e.cache.pop()
	if c == nil {
		c = &Client{
			engine: e,

			urlAsReceived:   buffer.New(urlBufferInitialSize, e.MemoryAccounting),
			urlPathDecoded:  buffer.New(urlBufferInitialSize, e.MemoryAccounting),
			urlQueryDecoded: buffer.New(urlBufferInitialSize, e.MemoryAccounting),
		}

		c.resp.data = buffer.New(responseInitialSize, e.MemoryAccounting)
		c.resp.header = buffer.New(headerScratchInitialSize, e.MemoryAccounting)
		c.resp.headerOutput = buffer.New(headerScratchInitialSize, e.MemoryAccounting)
	}

	c.id = e.ids.Add(1)
	c.useCount++
	c.conn = conn
	c.file = nil
	c.mode = method.GET
	c.flags = 0
	c.dead = false
	c.parseTries = 0
	c.parseLastSize = 0
	c.tcpCork = false
	c.resp.code = 0
	c.resp.rlen = 0
	c.resp.sent = 0
	c.resp.hasCookies = false
	c.timings = timings{timeout: e.Config.Web.Timeout}
	c.stats = statistics{}

	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		c.peerIP = addr.IP.String()
		c.peerPort = addr.Port
	} else {
		c.peerIP = conn.RemoteAddr().String()
		c.peerPort = 0
		c.flags.Set(FlagUnixSocket)
	}

	if e.Config.TLS.Force {
		c.flags.Set(FlagTLSForce)
	}

	c.flags.Set(FlagWaitReceive)

	return c
}

type response struct {
	code status.Code
	// header accumulates custom headers during routing; headerOutput is the
	// final serialized block.
	header       *buffer.Buffer
	headerOutput *buffer.Buffer
	// data doubles as the receive accumulator while parsing and as the
	// response body afterwards.
	data *buffer.Buffer
	// rlen is the declared remaining length of a file response; sent counts
	// body bytes written plainly or fed to the compressor.
	rlen int64
	sent int64

	hasCookies bool
	z          deflater
}

type timings struct {
	in             time.Time
	ready          time.Time
	lastCheckpoint time.Time
	timeout        time.Duration
}

type statistics struct {
	receivedBytes int64
	sentBytes     int64
}

// Client is one slot: the whole per-connection state, reused across
// sequential requests on the same keep-alive socket.
type Client struct {
	id       uint64
	useCount uint64

	engine *Engine
	conn   transport.Conn
	// file is the input descriptor while a static file is being copied.
	// nil means the input is the socket itself.
	file *os.File

	peerIP   string
	peerPort int

	mode  method.Method
	flags Flags
	dead  bool

	urlAsReceived   *buffer.Buffer
	urlPathDecoded  *buffer.Buffer
	urlQueryDecoded *buffer.Buffer

	// recognized request headers, empty when absent
	origin        string
	userAgent     string
	authBearer    string
	serverHost    string
	forwardedHost string

	parseTries    int
	parseLastSize int
	postPayload   []byte

	tcpCork bool

	resp    response
	timings timings
	stats   statistics
}

func (c *Client) ID() uint64            { return c.id }
func (c *Client) UseCount() uint64      { return c.useCount }
func (c *Client) Mode() method.Method   { return c.mode }
func (c *Client) Dead() bool            { return c.dead }
func (c *Client) PeerIP() string        { return c.peerIP }
func (c *Client) Origin() string        { return c.origin }
func (c *Client) UserAgent() string     { return c.userAgent }
func (c *Client) BearerToken() string   { return c.authBearer }
func (c *Client) ServerHost() string    { return c.serverHost }
func (c *Client) ForwardedHost() string { return c.forwardedHost }
func (c *Client) PostPayload() []byte   { return c.postPayload }

// Response exposes the body buffer to handlers. Handlers reset it before
// writing their payload.
func (c *Client) Response() *buffer.Buffer {
	return c.resp.data
}

// HeaderScratch exposes the custom-header accumulator. Lines appended here
// are copied verbatim into the final header block.
func (c *Client) HeaderScratch() *buffer.Buffer {
	return c.resp.header
}

func (c *Client) Code() status.Code {
	return c.resp.code
}

func (c *Client) SetCode(code status.Code) {
	c.resp.code = code
}

// MarkCookies records that the response carries Set-Cookie headers, which
// turns the Tk tracking status into T;cookies.
func (c *Client) MarkCookies() {
	c.resp.hasCookies = true
}

func (c *Client) QueryString() string {
	return c.urlQueryDecoded.String()
}

func (c *Client) PathDecoded() string {
	return c.urlPathDecoded.String()
}

func (c *Client) URLAsReceived() string {
	return c.urlAsReceived.String()
}

func (c *Client) WantsRead() bool {
	return c.flags.Has(FlagWaitReceive) || c.flags.Has(FlagTLSWaitReceive)
}

func (c *Client) WantsSend() bool {
	return c.flags.Has(FlagWaitSend) || c.flags.Has(FlagTLSWaitSend)
}

func (c *Client) KeepAlive() bool {
	return c.flags.Has(FlagKeepAlive)
}

func (c *Client) markDead() {
	c.dead = true
}

// requestDone finishes the current request and prepares the slot for the
// next one on the same socket: access log, uncork, file teardown, buffer
// truncation. Everything request-scoped resets, the byte statistics
// included; the six buffers, the connection and the use-count survive.
func (c *Client) requestDone() {
	c.uncork()

	if c.urlAsReceived.Len() > 0 {
		c.logAccess()
	}

	if c.mode == method.FILECOPY && c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}

	c.resetRequestState()

	c.useCount++
	c.mode = method.GET
	c.flags.Clear(FlagDoNotTrack)
	c.flags.Clear(FlagTrackingRequired)
	c.flags.Clear(FlagKeepAlive)
	c.flags.Clear(FlagChunkedTransfer)
	c.flags.Set(FlagWaitReceive)
	c.flags.Clear(FlagWaitSend)

	c.parseTries = 0
	c.parseLastSize = 0

	c.resp.hasCookies = false
	c.resp.rlen = 0
	c.resp.sent = 0
	c.resp.code = 0

	c.timings = timings{timeout: c.timings.timeout}
	c.stats = statistics{}
}

// resetRequestState truncates the buffers (retaining capacity), releases
// the recognized headers and tears down the compressor.
func (c *Client) resetRequestState() {
	c.urlAsReceived.Reset()
	c.urlPathDecoded.Reset()
	c.urlQueryDecoded.Reset()
	c.resp.data.Reset()
	c.resp.header.Reset()
	c.resp.headerOutput.Reset()

	c.origin = ""
	c.userAgent = ""
	c.authBearer = ""
	c.serverHost = ""
	c.forwardedHost = ""
	c.postPayload = nil

	c.resp.z.teardown()
	c.flags.Clear(pathFlagsMask)
}

// Close destroys the slot. Its descriptors are closed unconditionally; the
// carcass goes to the engine's cache so the next connection can reuse the
// buffers, unless the cache is already full.
func (c *Client) Close() {
	if c.urlAsReceived.Len() > 0 {
		c.logAccess()
	}

	if c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}

	_ = c.conn.Close()
	c.conn = nil

	c.resetRequestState()

	if c.engine.cache.push(c) {
		return
	}

	c.urlAsReceived.Release()
	c.urlPathDecoded.Release()
	c.urlQueryDecoded.Release()
	c.resp.data.Release()
	c.resp.header.Release()
	c.resp.headerOutput.Release()
}

func (c *Client) cork() {
	if c.tcpCork || c.dead {
		return
	}

	if err := transport.Cork(c.conn); err != nil {
		c.engine.Log.Warn("failed to enable TCP_CORK on socket",
			zap.Uint64("id", c.id), zap.Error(err))
		return
	}

	c.tcpCork = true
}

func (c *Client) uncork() {
	if !c.tcpCork {
		return
	}

	c.tcpCork = false
	if err := transport.Uncork(c.conn); err != nil {
		c.engine.Log.Warn("failed to disable TCP_CORK on socket",
			zap.Uint64("id", c.id), zap.Error(err))
	}
}
