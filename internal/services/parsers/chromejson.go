package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// chromeExport is Chrome's native bookmark file: a set of named roots
// ("bookmark_bar", "other", "synced"), each a folder node.
type chromeExport struct {
	Roots map[string]jsonNode `json:"roots"`
}

type jsonNode struct {
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	DateAdded epochValue `json:"date_added"`
	Children  []jsonNode `json:"children"`
}

// epochValue accepts the timestamp both as the string Chrome writes and
// as a bare JSON number.
type epochValue string

func (e *epochValue) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "null" {
		s = ""
	}
	*e = epochValue(s)
	return nil
}

// ParseJSON parses a JSON bookmark export. The payload is classified
// up front into one of two shapes before any node handling: a Chrome
// roots tree, or a bare array of nodes treated as the children of an
// unnamed root.
func ParseJSON(content []byte) ([]RawBookmark, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var nodes []jsonNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, fmt.Errorf("failed to parse bookmark JSON: %w", err)
		}
		var out []RawBookmark
		for _, n := range nodes {
			collectNode(n, nil, &out)
		}
		return out, nil
	}

	var export chromeExport
	if err := json.Unmarshal(trimmed, &export); err != nil {
		return nil, fmt.Errorf("failed to parse bookmark JSON: %w", err)
	}
	if export.Roots == nil {
		return nil, fmt.Errorf("bookmark JSON has no roots object: %w", ErrUnrecognizedFormat)
	}

	// Roots iterate in sorted key order so repeated parses of the same
	// file yield the same entry order.
	keys := make([]string, 0, len(export.Roots))
	for k := range export.Roots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []RawBookmark
	for _, key := range keys {
		root := export.Roots[key]
		rootName := root.Name
		if rootName == "" {
			rootName = key
		}
		for _, child := range root.Children {
			collectNode(child, []string{rootName}, &out)
		}
	}
	return out, nil
}

func collectNode(n jsonNode, path []string, out *[]RawBookmark) {
	switch n.Type {
	case "url":
		if n.URL == "" {
			return
		}
		title := n.Name
		if title == "" {
			title = n.Title
		}
		*out = append(*out, RawBookmark{
			Title:      title,
			URL:        n.URL,
			AddedAt:    epochTime(string(n.DateAdded)),
			FolderPath: strings.Join(path, "/"),
		})
	case "folder":
		sub := append(append([]string{}, path...), n.Name)
		for _, child := range n.Children {
			collectNode(child, sub, out)
		}
	}
}
