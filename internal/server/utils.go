package server

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// uriToPath converts a file:// URI to a cleaned absolute path. Everything
// behind the server boundary works with paths, not URIs.
func uriToPath(uri protocol.DocumentUri) (string, error) {
	parsed, err := url.Parse(string(uri))
	if err != nil {
		return "", fmt.Errorf("failed to parse uri %s: %w", uri, err)
	}
	if parsed.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", parsed.Scheme)
	}
	path := parsed.Path
	// Windows drive-letter URIs arrive as /C:/dir/file.
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.Clean(filepath.FromSlash(path)), nil
}
