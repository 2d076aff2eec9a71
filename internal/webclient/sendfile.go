package webclient

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/http/method"
	"github.com/vigil-web/vigil/http/mime"
	"github.com/vigil-web/vigil/http/status"
)

// acceptableFilenameChar is the whitelist for static file paths. Anything
// else refuses the request before the filesystem is ever touched.
func acceptableFilenameChar(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z':
		return true
	case ch >= 'A' && ch <= 'Z':
		return true
	case ch >= '0' && ch <= '9':
		return true
	case ch == '/' || ch == '.' || ch == '-' || ch == '_':
		return true
	}

	return false
}

// findFileToServe maps the sanitized URL path to a filesystem target. The
// resolution depends on whether the path carries a filename extension and a
// dashboard version prefix; a miss on the primary candidate falls back
// exactly once. Directories resolve to their index.html.
func (c *Client) findFileToServe(filename string) (resolved string, info fs.FileInfo, isDir, found bool) {
	root := c.engine.Config.Web.RootDir
	version := c.dashboardVersion()
	hasExtension := c.flags.Has(FlagPathFileExtension)

	versionDir := ""
	if version != -1 {
		versionDir = "v0"
		switch version {
		case 1:
			versionDir = "v1"
		case 2:
			versionDir = "v2"
		}
	}

	const (
		fallbackNone = iota
		fallbackPlainPath
		fallbackVersionRoot
		fallbackWebRoot
	)

	fallback := fallbackNone

	switch {
	case hasExtension && version == -1:
		resolved = filepath.Join(root, filename)
	case hasExtension:
		// try the versioned variant first, the flat layout second
		resolved = filepath.Join(root, versionDir, filename)
		fallback = fallbackPlainPath
	case version != -1 && filename != "":
		// a versioned path without extension is first tried as a real
		// directory, then as the version's dashboard entry point
		resolved = filepath.Join(root, filename)
		fallback = fallbackVersionRoot
	case version != -1:
		resolved = filepath.Join(root, versionDir)
	default:
		resolved = filepath.Join(root, filename)
		fallback = fallbackWebRoot
	}

	var err error
	if info, err = os.Stat(resolved); err != nil {
		switch fallback {
		case fallbackPlainPath:
			resolved = filepath.Join(root, filename)
		case fallbackVersionRoot:
			if filename != "" {
				c.flags.Set(FlagPathTrailingSlash)
			}
			resolved = filepath.Join(root, versionDir)
		case fallbackWebRoot:
			if filename != "" {
				c.flags.Set(FlagPathTrailingSlash)
			}
			resolved = root
		default:
			return resolved, nil, false, false
		}

		if info, err = os.Stat(resolved); err != nil {
			return resolved, nil, false, false
		}
	}

	if info.IsDir() {
		resolved = filepath.Join(resolved, "index.html")
		if info, err = os.Stat(resolved); err != nil {
			return resolved, nil, true, false
		}

		isDir = true
	}

	return resolved, info, isDir, true
}

// sendFile resolves a URL path under the web root and arms the slot for the
// file-copy send: the file becomes the input descriptor while the socket
// stays the output.
func (e *Engine) sendFile(c *Client, filename string) status.Code {
	if !c.can(acl.Dashboard) {
		return c.PermissionDenied()
	}

	filename = strings.TrimLeft(filename, "/")

	for i := 0; i < len(filename); i++ {
		if !acceptableFilenameChar(filename[i]) {
			c.resp.data.Reset()
			c.resp.data.ContentType = mime.HTML
			c.resp.data.AppendString("Filename contains invalid characters: ")
			c.resp.data.AppendHTMLEscape(filename)
			return status.BadRequest
		}
	}

	if strings.Contains(filename, "..") {
		c.resp.data.Reset()
		c.resp.data.ContentType = mime.HTML
		c.resp.data.AppendString("Relative filenames are not supported: ")
		c.resp.data.AppendHTMLEscape(filename)
		return status.BadRequest
	}

	resolved, info, isDir, found := c.findFileToServe(filename)
	if !found {
		c.resp.data.Reset()
		c.resp.data.ContentType = mime.HTML
		c.resp.data.AppendString("File does not exist, or is not accessible: ")
		c.resp.data.AppendHTMLEscape(resolved)
		return status.NotFound
	}

	if isDir && !c.flags.Has(FlagPathTrailingSlash) {
		return c.appendSlashRedirect()
	}

	file, err := os.OpenFile(resolved, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN) {
			e.Log.Error("file is busy, sending 307 to force a retry",
				zapID(c), zapFile(resolved))
			c.resp.header.AppendString("Location: /")
			c.resp.header.AppendString(filename)
			c.resp.header.AppendString("\r\n")
			c.resp.data.Reset()
			c.resp.data.ContentType = mime.HTML
			c.resp.data.AppendString("File is currently busy, please try again later: ")
			c.resp.data.AppendHTMLEscape(resolved)
			return status.TemporaryRedirect
		}

		e.Log.Error("cannot open file", zapID(c), zapFile(resolved))
		c.resp.data.Reset()
		c.resp.data.ContentType = mime.HTML
		c.resp.data.AppendString("Cannot open file: ")
		c.resp.data.AppendHTMLEscape(resolved)
		return status.NotFound
	}

	c.file = file
	c.mode = method.FILECOPY
	c.flags.Set(FlagWaitReceive)
	c.flags.Clear(FlagWaitSend)

	c.resp.data.Reset()
	c.resp.data.NeedBytes(int(info.Size()))
	c.resp.rlen = info.Size()
	c.resp.data.ContentType = mime.ForFilename(resolved)
	c.resp.data.Date = info.ModTime()
	c.resp.data.Cacheable()

	return status.OK
}
