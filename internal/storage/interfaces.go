package storage

import (
	"context"
	"time"
)

// ImportStore is the persistence port the import pipeline runs against.
// It is passed explicitly into the orchestrator; nothing in the pipeline
// reaches for a global database handle.
type ImportStore interface {
	CollectionExists(ctx context.Context, id string) (bool, error)

	// FindFolder returns nil, nil when no folder matches
	// (name, parentID, collectionID).
	FindFolder(ctx context.Context, name string, parentID, collectionID *string) (*Folder, error)
	CreateFolder(ctx context.Context, name string, parentID, collectionID *string) (*Folder, error)

	// InTransaction runs fn inside one bounded transaction. fn must use
	// the supplied context on every call so the transaction's deadline
	// applies. Any error from fn rolls the whole batch back.
	InTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx ImportTx) error) error
}

// ImportTx is the slice of a transaction the import batches use.
type ImportTx interface {
	// FindBookmarkByURL returns nil, nil when no bookmark with that URL
	// exists in the given collection scope.
	FindBookmarkByURL(ctx context.Context, url string, collectionID *string) (*Bookmark, error)
	CreateBookmark(ctx context.Context, params CreateBookmarkParams) (*Bookmark, error)
}

// TxOptions bounds one batch transaction: MaxWait caps how long to keep
// retrying to begin it against a busy database, Timeout caps how long
// its body may run.
type TxOptions struct {
	MaxWait time.Duration
	Timeout time.Duration
}
