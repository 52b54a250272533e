package parsers

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnrecognizedFormat means the file is neither a Netscape bookmark
// document nor a known JSON bookmark shape.
var ErrUnrecognizedFormat = errors.New("unrecognized bookmark format")

// Parse detects the export format and returns the flat list of raw
// bookmark entries. The filename extension decides first; unknown
// extensions fall back to content sniffing: a leading '{' or '[' means
// JSON, a leading doctype or html tag means the Netscape HTML format.
func Parse(content []byte, filename string) ([]RawBookmark, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return ParseJSON(content)
	case ".html", ".htm":
		return ParseNetscape(content)
	}

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, ErrUnrecognizedFormat
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return ParseJSON(content)
	}

	head := strings.ToLower(string(trimmed[:min(len(trimmed), 1024)]))
	if strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") {
		return ParseNetscape(content)
	}

	return nil, ErrUnrecognizedFormat
}
