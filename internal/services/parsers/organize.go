package parsers

// FolderGroup is one folder path and the bookmarks that belong to it,
// in source order.
type FolderGroup struct {
	Path      string
	Bookmarks []RawBookmark
}

// Organize groups entries by folder path, preserving the order in which
// paths first appear. Folder creation depends on that order so parents
// materialize before their children. Entries with no folder path fall
// under the DefaultGroup sentinel. No validation happens here: a bad
// bookmark must not disqualify its whole folder, so URL and title checks
// are deferred to insertion time.
func Organize(entries []RawBookmark) []FolderGroup {
	index := make(map[string]int)
	var groups []FolderGroup
	for _, entry := range entries {
		path := entry.FolderPath
		if path == "" {
			path = DefaultGroup
		}
		i, ok := index[path]
		if !ok {
			i = len(groups)
			index[path] = i
			groups = append(groups, FolderGroup{Path: path})
		}
		groups[i].Bookmarks = append(groups[i].Bookmarks, entry)
	}
	return groups
}
