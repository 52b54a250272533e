package parsers

import (
	"strconv"
	"strings"
	"time"
)

// DefaultGroup is the sentinel folder path for bookmarks that sit at the
// top level of an export. It is never materialized as a real folder;
// bookmarks grouped under it are attached to the root.
const DefaultGroup = "default collection"

// RawBookmark is one entry lifted out of a browser export before any
// validation has happened. FolderPath is a slash-delimited chain of the
// enclosing folder names; empty means the bookmark was not inside any
// folder.
type RawBookmark struct {
	Title      string
	URL        string
	Icon       string
	AddedAt    time.Time
	FolderPath string
}

// Seconds between the WebKit epoch (1601-01-01) and the Unix epoch.
const webkitToUnixDelta = 11644473600

// epochTime converts a numeric timestamp of unknown unit. Browsers
// disagree on the format: ten digits or fewer is Unix seconds, sixteen
// or more is WebKit microseconds since 1601 (Chrome's native file),
// anything between is treated as milliseconds. A present-but-invalid
// value resolves to the current time; timestamps never fail a parse.
func epochTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return time.Now()
	}
	switch {
	case len(raw) <= 10:
		return time.Unix(n, 0)
	case len(raw) >= 16:
		return time.Unix(n/1e6-webkitToUnixDelta, (n%1e6)*1000)
	default:
		return time.UnixMilli(n)
	}
}
