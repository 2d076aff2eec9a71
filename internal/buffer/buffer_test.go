package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReset(t *testing.T) {
	b := New(16, nil)
	b.AppendString("hello")
	b.Append([]byte(", world"))
	b.AppendByte('!')
	require.Equal(t, "hello, world!", b.String())

	b.Reset()
	require.Zero(t, b.Len())
	require.GreaterOrEqual(t, b.Cap(), 16)
}

func TestAppendf(t *testing.T) {
	b := New(8, nil)
	b.Appendf("code %d %s", 404, "Not Found")
	require.Equal(t, "code 404 Not Found", b.String())
}

func TestHTMLEscape(t *testing.T) {
	b := New(8, nil)
	b.AppendHTMLEscape(`<script>alert("x&y")</script>`)
	require.Equal(t, "&lt;script&gt;alert(&quot;x&amp;y&quot;)&lt;/script&gt;", b.String())
}

func TestCharReplace(t *testing.T) {
	b := New(8, nil)
	b.AppendString("a\x00b\x00c")
	b.CharReplace(0, ' ')
	require.Equal(t, "a b c", b.String())
}

func TestExtendAdvance(t *testing.T) {
	b := New(4, nil)
	dst := b.Extend(10)
	require.Len(t, dst, 10)
	n := copy(dst, "12345")
	b.Advance(n)
	require.Equal(t, "12345", b.String())
}

func TestAccounting(t *testing.T) {
	var counter int64
	b := New(4, &counter)
	require.EqualValues(t, 4, counter)

	b.NeedBytes(1024)
	require.GreaterOrEqual(t, counter, int64(1024))

	b.Release()
	require.EqualValues(t, 0, counter)
}

func TestNoDataLossOnGrowth(t *testing.T) {
	b := New(1, nil)
	for i := 0; i < 1000; i++ {
		b.AppendByte(byte('a' + i%26))
	}
	require.Equal(t, 1000, b.Len())
	require.Equal(t, byte('a'), b.Bytes()[0])
	require.Equal(t, byte('a'+999%26), b.Bytes()[999])
}
