package parsers

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ParseNetscape parses the Netscape bookmark file format exported by
// Chrome, Firefox, Safari and Edge: <DT><A> anchors nested inside
// <DT><H3> folder headers inside <DL> lists, arbitrarily deep. Folder
// attribution follows the real element tree: entering the list that
// belongs to an H3 pushes that folder name onto the path, leaving it
// pops. Anchors with javascript: hrefs are dropped.
func ParseNetscape(content []byte) ([]RawBookmark, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmark HTML: %w", err)
	}

	w := &netscapeWalker{claimed: make(map[*html.Node]bool)}
	w.walk(doc, nil)
	return w.bookmarks, nil
}

type netscapeWalker struct {
	bookmarks []RawBookmark
	// claimed marks DL lists already attributed to a folder header so
	// the enclosing walk does not visit them again at the wrong path.
	claimed map[*html.Node]bool
}

func (w *netscapeWalker) walk(n *html.Node, path []string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "dl":
			if !w.claimed[n] {
				w.processList(n, path)
			}
			return
		case "a":
			// Some exports place anchors outside any DL.
			w.addAnchor(n, path)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, path)
	}
}

func (w *netscapeWalker) processList(dl *html.Node, path []string) {
	for child := dl.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		switch child.Data {
		case "dt":
			w.processItem(child, path)
		case "dl":
			if !w.claimed[child] {
				w.processList(child, path)
			}
		}
	}
}

// processItem handles one DT: either a folder header (an H3 with a
// nested DL holding the folder's contents) or a bookmark anchor.
func (w *netscapeWalker) processItem(dt *html.Node, path []string) {
	for child := dt.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		switch child.Data {
		case "h3":
			name := textContent(child)
			sub := append(append([]string{}, path...), name)
			if list := w.claimFolderList(dt, child); list != nil {
				w.processList(list, sub)
			}
		case "a":
			w.addAnchor(child, path)
		case "dl":
			// A folder list left unclaimed here had no H3 in front of
			// it; its entries belong to the current folder.
			if !w.claimed[child] {
				w.processList(child, path)
			}
		}
	}
}

// claimFolderList finds the DL that holds a folder's contents. Exports
// that never close their DT tags parse with the DL as a sibling of the
// H3 inside the same DT; exports with explicit closing tags put it right
// after the DT. The sibling scan stops at the next DT so one folder can
// never steal a sibling folder's list.
func (w *netscapeWalker) claimFolderList(dt, h3 *html.Node) *html.Node {
	for s := h3.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == "dl" {
			w.claimed[s] = true
			return s
		}
	}
	for s := dt.NextSibling; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode {
			continue
		}
		if s.Data == "dl" {
			w.claimed[s] = true
			return s
		}
		if s.Data == "dt" {
			break
		}
	}
	return nil
}

func (w *netscapeWalker) addAnchor(a *html.Node, path []string) {
	bm := RawBookmark{FolderPath: strings.Join(path, "/")}
	for _, attr := range a.Attr {
		switch strings.ToLower(attr.Key) {
		case "href":
			bm.URL = attr.Val
		case "add_date":
			bm.AddedAt = epochTime(attr.Val)
		case "icon":
			bm.Icon = attr.Val
		}
	}
	if bm.URL == "" || strings.HasPrefix(strings.ToLower(bm.URL), "javascript:") {
		return
	}
	bm.Title = textContent(a)
	w.bookmarks = append(w.bookmarks, bm)
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return strings.TrimSpace(b.String())
}
