package buffer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/indigo-web/utils/uf"
	"github.com/vigil-web/vigil/http/mime"
)

// Buffer is a growable append-only byte buffer carrying the metadata of the
// payload it holds: content type, last-modified and expiration dates and the
// cacheability bit. One buffer doubles as the receive accumulator while a
// request is being parsed and as the response body afterwards.
type Buffer struct {
	data        []byte
	ContentType mime.MIME
	Date        time.Time
	Expires     time.Time
	noCacheable bool
	accounting  *int64
}

func New(initialSize int, accounting *int64) *Buffer {
	if accounting != nil {
		atomic.AddInt64(accounting, int64(initialSize))
	}

	return &Buffer{
		data:        make([]byte, 0, initialSize),
		ContentType: mime.Plain,
		accounting:  accounting,
	}
}

func (b *Buffer) Len() int {
	return len(b.data)
}

func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the live contents. The slice is invalidated by any append.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) String() string {
	return uf.B2S(b.data)
}

// Reset truncates to zero length, retaining capacity and clearing the
// payload metadata.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.ContentType = mime.Plain
	b.Date = time.Time{}
	b.Expires = time.Time{}
	b.noCacheable = false
}

// NeedBytes ensures there is room for at least n more bytes. Growth is
// unconditional; running out of memory is fatal by design of the runtime.
func (b *Buffer) NeedBytes(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}

	grown := make([]byte, len(b.data), len(b.data)+n)
	copy(grown, b.data)

	if b.accounting != nil {
		atomic.AddInt64(b.accounting, int64(cap(grown)-cap(b.data)))
	}

	b.data = grown
}

func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

func (b *Buffer) AppendString(s string) {
	b.data = append(b.data, s...)
}

func (b *Buffer) AppendByte(c byte) {
	b.data = append(b.data, c)
}

func (b *Buffer) Appendf(format string, args ...any) {
	b.data = fmt.Appendf(b.data, format, args...)
}

// Write implements io.Writer so the buffer can be a sink for encoders.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// AppendHTMLEscape appends s with the characters significant to HTML
// replaced by their entities. Used for error bodies that echo client input.
func (b *Buffer) AppendHTMLEscape(s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			b.AppendString("&amp;")
		case '<':
			b.AppendString("&lt;")
		case '>':
			b.AppendString("&gt;")
		case '"':
			b.AppendString("&quot;")
		case '\'':
			b.AppendString("&#39;")
		default:
			b.data = append(b.data, s[i])
		}
	}
}

// CharReplace substitutes every occurrence of from in the current contents.
func (b *Buffer) CharReplace(from, to byte) {
	for i := range b.data {
		if b.data[i] == from {
			b.data[i] = to
		}
	}
}

// Truncate drops everything past length n. No-op when n exceeds the length.
func (b *Buffer) Truncate(n int) {
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// Extend ensures room for n more bytes and returns the n-byte region past the
// current length for a reader to fill; the length is unchanged. Commit the
// actually filled prefix via Advance.
func (b *Buffer) Extend(n int) []byte {
	b.NeedBytes(n)
	return b.data[len(b.data) : len(b.data)+n]
}

func (b *Buffer) Advance(n int) {
	b.data = b.data[:len(b.data)+n]
}

// Cacheable marks the payload as eligible for client-side caching.
func (b *Buffer) Cacheable() {
	b.noCacheable = false
}

func (b *Buffer) NoCacheable() {
	b.noCacheable = true
}

func (b *Buffer) IsCacheable() bool {
	return !b.noCacheable
}

// Release returns the accounted capacity. The buffer must not be used after.
func (b *Buffer) Release() {
	if b.accounting != nil {
		atomic.AddInt64(b.accounting, -int64(cap(b.data)))
	}

	b.data = nil
}
