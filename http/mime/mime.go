package mime

type MIME = string

const (
	HTML        MIME = "text/html; charset=utf-8"
	Plain       MIME = "text/plain; charset=utf-8"
	JSON        MIME = "application/json; charset=utf-8"
	JS          MIME = "application/javascript; charset=utf-8"
	CSS         MIME = "text/css; charset=utf-8"
	XML         MIME = "text/xml; charset=utf-8"
	XSL         MIME = "text/xsl; charset=utf-8"
	AppXML      MIME = "application/xml; charset=utf-8"
	OctetStream MIME = "application/octet-stream"
	SVG         MIME = "image/svg+xml"
	TTF         MIME = "application/x-font-truetype"
	OTF         MIME = "application/x-font-opentype"
	WOFF        MIME = "application/font-woff"
	WOFF2       MIME = "application/font-woff2"
	EOT         MIME = "application/vnd.ms-fontobject"
	PNG         MIME = "image/png"
	JPG         MIME = "image/jpeg"
	GIF         MIME = "image/gif"
	ICO         MIME = "image/x-icon"
	BMP         MIME = "image/bmp"
	ICNS        MIME = "image/icns"
)

// Extension maps a lowercase filename extension (without the dot) to the
// content type served for it. Anything not present here is served as an
// octet stream. Built once at load; never mutated afterwards.
var Extension = map[string]MIME{
	"html":  HTML,
	"js":    JS,
	"css":   CSS,
	"xml":   XML,
	"xsl":   XSL,
	"txt":   Plain,
	"svg":   SVG,
	"ttf":   TTF,
	"otf":   OTF,
	"woff2": WOFF2,
	"woff":  WOFF,
	"eot":   EOT,
	"png":   PNG,
	"jpg":   JPG,
	"jpeg":  JPG,
	"gif":   GIF,
	"bmp":   BMP,
	"ico":   ICO,
	"icns":  ICNS,
}

// ForFilename derives the content type from the extension after the last
// dot of the filename.
func ForFilename(filename string) MIME {
	lastDot := -1
	for i := 0; i < len(filename); i++ {
		if filename[i] == '.' {
			lastDot = i
		}
	}

	if lastDot == -1 || lastDot == len(filename)-1 {
		return OctetStream
	}

	if mime, found := Extension[filename[lastDot+1:]]; found {
		return mime
	}

	return OctetStream
}
