package parsers

import "testing"

func TestOrganizeGroupsByFirstSeenOrder(t *testing.T) {
	entries := []RawBookmark{
		{Title: "a1", URL: "https://a1.example", FolderPath: "Work"},
		{Title: "b1", URL: "https://b1.example", FolderPath: ""},
		{Title: "a2", URL: "https://a2.example", FolderPath: "Work"},
		{Title: "c1", URL: "https://c1.example", FolderPath: "Work/Deep"},
	}

	groups := Organize(entries)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(groups), groups)
	}

	if groups[0].Path != "Work" || len(groups[0].Bookmarks) != 2 {
		t.Errorf("group 0 = %q with %d bookmarks, want Work with 2", groups[0].Path, len(groups[0].Bookmarks))
	}
	if groups[1].Path != DefaultGroup || len(groups[1].Bookmarks) != 1 {
		t.Errorf("group 1 = %q with %d bookmarks, want %q with 1", groups[1].Path, len(groups[1].Bookmarks), DefaultGroup)
	}
	if groups[2].Path != "Work/Deep" {
		t.Errorf("group 2 = %q, want Work/Deep", groups[2].Path)
	}

	// Within a group, entry order is preserved.
	if groups[0].Bookmarks[0].Title != "a1" || groups[0].Bookmarks[1].Title != "a2" {
		t.Errorf("group 0 order wrong: %+v", groups[0].Bookmarks)
	}
}

func TestOrganizeEmpty(t *testing.T) {
	if groups := Organize(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}
