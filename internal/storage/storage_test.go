package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCollectionLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	exists, err := store.CollectionExists(ctx, "nope")
	if err != nil {
		t.Fatalf("CollectionExists failed: %v", err)
	}
	if exists {
		t.Fatal("unknown collection reported as existing")
	}

	c, err := store.CreateCollection(ctx, "Dev", "development links")
	if err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if c.ID == "" || c.Name != "Dev" {
		t.Fatalf("unexpected collection: %+v", c)
	}

	exists, err = store.CollectionExists(ctx, c.ID)
	if err != nil || !exists {
		t.Fatalf("created collection not found: exists=%v err=%v", exists, err)
	}

	collections, err := store.ListCollections(ctx)
	if err != nil || len(collections) != 1 {
		t.Fatalf("ListCollections: got %d, err %v", len(collections), err)
	}
}

func TestFolderFindOrCreate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	found, err := store.FindFolder(ctx, "Work", nil, nil)
	if err != nil {
		t.Fatalf("FindFolder failed: %v", err)
	}
	if found != nil {
		t.Fatal("found a folder that was never created")
	}

	created, err := store.CreateFolder(ctx, "Work", nil, nil)
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	found, err = store.FindFolder(ctx, "Work", nil, nil)
	if err != nil || found == nil {
		t.Fatalf("created folder not found: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("FindFolder returned %s, want %s", found.ID, created.ID)
	}
}

func TestCreateFolderDuplicateReturnsExisting(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first, err := store.CreateFolder(ctx, "Work", nil, nil)
	if err != nil {
		t.Fatalf("first CreateFolder failed: %v", err)
	}

	// Same identity triple: the unique index fires and the existing
	// row comes back instead of an error.
	second, err := store.CreateFolder(ctx, "Work", nil, nil)
	if err != nil {
		t.Fatalf("duplicate CreateFolder failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate create returned new id %s, want %s", second.ID, first.ID)
	}

	folders, err := store.ListFolders(ctx)
	if err != nil || len(folders) != 1 {
		t.Fatalf("expected a single folder row, got %d (err %v)", len(folders), err)
	}
}

func TestFolderIdentityScopedByParent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	root, err := store.CreateFolder(ctx, "Work", nil, nil)
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	// Same name under a different parent is a distinct folder.
	child, err := store.CreateFolder(ctx, "Work", &root.ID, nil)
	if err != nil {
		t.Fatalf("nested CreateFolder failed: %v", err)
	}
	if child.ID == root.ID {
		t.Fatal("nested folder collapsed into its parent")
	}

	found, err := store.FindFolder(ctx, "Work", &root.ID, nil)
	if err != nil || found == nil || found.ID != child.ID {
		t.Fatalf("nested folder lookup: %+v, err %v", found, err)
	}
}

func TestTransactionCreateAndFindBookmark(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	opts := TxOptions{MaxWait: 2 * time.Second, Timeout: 5 * time.Second}

	err := store.InTransaction(ctx, opts, func(txCtx context.Context, tx ImportTx) error {
		existing, err := tx.FindBookmarkByURL(txCtx, "https://example.com", nil)
		if err != nil {
			return err
		}
		if existing != nil {
			t.Error("found bookmark before insert")
		}

		created, err := tx.CreateBookmark(txCtx, CreateBookmarkParams{
			Title:     "Example",
			URL:       "https://example.com",
			SortOrder: 0,
			AddedAt:   time.Unix(1700000000, 0),
		})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Error("created bookmark has no id")
		}

		// Visible inside the same transaction.
		found, err := tx.FindBookmarkByURL(txCtx, "https://example.com", nil)
		if err != nil {
			return err
		}
		if found == nil {
			t.Error("bookmark not visible inside its own transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTransaction failed: %v", err)
	}

	bookmarks, err := store.ListBookmarks(ctx)
	if err != nil || len(bookmarks) != 1 {
		t.Fatalf("after commit: %d bookmarks, err %v", len(bookmarks), err)
	}
	if bookmarks[0].Title != "Example" {
		t.Fatalf("unexpected bookmark: %+v", bookmarks[0])
	}
	// AddedAt backdates created_at.
	if bookmarks[0].CreatedAt.Unix() != 1700000000 {
		t.Errorf("CreatedAt = %v, want backdated to 1700000000", bookmarks[0].CreatedAt)
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	opts := TxOptions{MaxWait: 2 * time.Second, Timeout: 5 * time.Second}

	wantErr := context.DeadlineExceeded
	err := store.InTransaction(ctx, opts, func(txCtx context.Context, tx ImportTx) error {
		if _, err := tx.CreateBookmark(txCtx, CreateBookmarkParams{
			Title: "Doomed",
			URL:   "https://doomed.example",
		}); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	bookmarks, err := store.ListBookmarks(ctx)
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(bookmarks) != 0 {
		t.Fatalf("rolled-back insert persisted: %d bookmarks", len(bookmarks))
	}
}

func TestStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.CreateFolder(ctx, "Work", nil, nil); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	opts := TxOptions{MaxWait: 2 * time.Second, Timeout: 5 * time.Second}
	err := store.InTransaction(ctx, opts, func(txCtx context.Context, tx ImportTx) error {
		_, err := tx.CreateBookmark(txCtx, CreateBookmarkParams{Title: "A", URL: "https://a.example"})
		return err
	})
	if err != nil {
		t.Fatalf("InTransaction failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["total_bookmarks"] != 1 || stats["total_folders"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats["root_bookmarks"] != 1 {
		t.Fatalf("root_bookmarks = %d, want 1", stats["root_bookmarks"])
	}
}
