package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// Storage is the libSQL-backed persistence layer.
type Storage struct {
	db *sql.DB
}

// Collection groups bookmarks and folders for one tenant or topic.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Folder is one node of the bookmark folder tree. The ancestor chain
// must stay acyclic; identity is (name, parentId, collectionId), so a
// re-import finds rather than duplicates.
type Folder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ParentID     *string   `json:"parentId,omitempty"`
	CollectionID *string   `json:"collectionId,omitempty"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Bookmark is one saved link. A nil FolderID attaches it to the root.
type Bookmark struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	FolderID     *string   `json:"folderId,omitempty"`
	CollectionID *string   `json:"collectionId,omitempty"`
	IsFeatured   bool      `json:"isFeatured"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateBookmarkParams carries the fields for one bookmark insert.
type CreateBookmarkParams struct {
	Title        string
	URL          string
	Description  string
	Icon         string
	FolderID     *string
	CollectionID *string
	IsFeatured   bool
	SortOrder    int
	// AddedAt, when non-zero, backdates created_at to the export's own
	// timestamp.
	AddedAt time.Time
}

// New opens (or creates) the database at dbPath and ensures the schema.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = "linktree.db"
	}
	if !strings.Contains(dbPath, "://") && !strings.HasPrefix(dbPath, "file:") {
		dbPath = "file:" + dbPath
	}
	if !strings.Contains(dbPath, "?") {
		dbPath += "?_journal=WAL&_timeout=10000&_sync=NORMAL"
	}

	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection sidesteps most SQLite lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Storage{db: db}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) initializeSchema() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			sort_order INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id TEXT,
			collection_id TEXT,
			sort_order INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (parent_id) REFERENCES folders(id) ON DELETE CASCADE,
			FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT,
			icon TEXT,
			folder_id TEXT,
			collection_id TEXT,
			is_featured INTEGER DEFAULT 0,
			sort_order INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (folder_id) REFERENCES folders(id) ON DELETE SET NULL,
			FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
		)`,

		// Folder identity. COALESCE folds NULL parents/collections into
		// the index so the root level is covered too; concurrent imports
		// racing on the same path hit this constraint and the loser
		// refetches (see CreateFolder).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_identity
			ON folders(name, COALESCE(parent_id, ''), COALESCE(collection_id, ''))`,

		`CREATE INDEX IF NOT EXISTS idx_folders_parent_id ON folders(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_url ON bookmarks(url)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_folder_id ON bookmarks(folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_collection_id ON bookmarks(collection_id)`,
	}

	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("failed to execute schema: %s, error: %w", schema, err)
		}
	}
	return nil
}

// CollectionExists reports whether the collection id is known.
func (s *Storage) CollectionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up collection %s: %w", id, err)
	}
	return true, nil
}

// CreateCollection inserts a new collection.
func (s *Storage) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	c := &Collection{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return c, nil
}

// ListCollections returns every collection ordered by sort order.
func (s *Storage) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), sort_order, created_at
		 FROM collections ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		c := &Collection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// FindFolder looks up a folder by its identity triple. A nil parentID
// or collectionID matches NULL, not "any".
func (s *Storage) FindFolder(ctx context.Context, name string, parentID, collectionID *string) (*Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, collection_id, sort_order, created_at
		 FROM folders WHERE name = ? AND parent_id IS ? AND collection_id IS ?`,
		name, parentID, collectionID)

	f := &Folder{}
	err := row.Scan(&f.ID, &f.Name, &f.ParentID, &f.CollectionID, &f.SortOrder, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find folder %q: %w", name, err)
	}
	return f, nil
}

// CreateFolder inserts a folder. When a concurrent import already
// created the same (name, parent, collection) the unique index fires
// and the existing row is fetched and returned instead.
func (s *Storage) CreateFolder(ctx context.Context, name string, parentID, collectionID *string) (*Folder, error) {
	f := &Folder{
		ID:           uuid.New().String(),
		Name:         name,
		ParentID:     parentID,
		CollectionID: collectionID,
		CreatedAt:    time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, name, parent_id, collection_id, sort_order, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		f.ID, f.Name, f.ParentID, f.CollectionID, f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, ferr := s.FindFolder(ctx, name, parentID, collectionID)
			if ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return f, nil
}

// ListFolders returns every folder, parents before children.
func (s *Storage) ListFolders(ctx context.Context) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id, collection_id, sort_order, created_at
		 FROM folders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		f := &Folder{}
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.CollectionID, &f.SortOrder, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// ListBookmarks returns every bookmark in import order.
func (s *Storage) ListBookmarks(ctx context.Context) ([]*Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url, COALESCE(description, ''), COALESCE(icon, ''),
		        folder_id, collection_id, is_featured, sort_order, created_at, updated_at
		 FROM bookmarks ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*Bookmark
	for rows.Next() {
		b := &Bookmark{}
		err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.Description, &b.Icon,
			&b.FolderID, &b.CollectionID, &b.IsFeatured, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// Stats returns aggregate row counts for the stats endpoint.
func (s *Storage) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	queries := map[string]string{
		"total_bookmarks":    "SELECT COUNT(*) FROM bookmarks",
		"total_folders":      "SELECT COUNT(*) FROM folders",
		"total_collections":  "SELECT COUNT(*) FROM collections",
		"featured_bookmarks": "SELECT COUNT(*) FROM bookmarks WHERE is_featured = 1",
		"root_bookmarks":     "SELECT COUNT(*) FROM bookmarks WHERE folder_id IS NULL",
	}
	for name, query := range queries {
		var count int
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", name, err)
		}
		stats[name] = count
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
