package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// InTransaction runs fn in one transaction. Beginning the transaction is
// retried with exponential backoff for up to opts.MaxWait while the
// database is locked; the body then runs under an opts.Timeout deadline.
// Any error from fn rolls everything back.
func (s *Storage) InTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx ImportTx) error) error {
	var tx *sql.Tx
	begin := func() error {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = opts.MaxWait
	if err := backoff.Retry(begin, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := fn(runCtx, &importTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

type importTx struct {
	tx *sql.Tx
}

func (t *importTx) FindBookmarkByURL(ctx context.Context, url string, collectionID *string) (*Bookmark, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, title, url, COALESCE(description, ''), COALESCE(icon, ''),
		        folder_id, collection_id, is_featured, sort_order, created_at, updated_at
		 FROM bookmarks WHERE url = ? AND collection_id IS ?`,
		url, collectionID)

	b := &Bookmark{}
	err := row.Scan(&b.ID, &b.Title, &b.URL, &b.Description, &b.Icon,
		&b.FolderID, &b.CollectionID, &b.IsFeatured, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark by URL: %w", err)
	}
	return b, nil
}

func (t *importTx) CreateBookmark(ctx context.Context, params CreateBookmarkParams) (*Bookmark, error) {
	now := time.Now()
	createdAt := params.AddedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	b := &Bookmark{
		ID:           uuid.New().String(),
		Title:        params.Title,
		URL:          params.URL,
		Description:  params.Description,
		Icon:         params.Icon,
		FolderID:     params.FolderID,
		CollectionID: params.CollectionID,
		IsFeatured:   params.IsFeatured,
		SortOrder:    params.SortOrder,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookmarks (id, title, url, description, icon, folder_id, collection_id,
		                        is_featured, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.URL, b.Description, b.Icon, b.FolderID, b.CollectionID,
		b.IsFeatured, b.SortOrder, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bookmark %s: %w", b.URL, err)
	}
	return b, nil
}
