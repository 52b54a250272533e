package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marrywu6/linktree/internal/services/parsers"
	"github.com/marrywu6/linktree/internal/storage"
)

var (
	// ErrEmptyImport means the file parsed but contained no bookmarks.
	ErrEmptyImport = errors.New("no bookmarks found in file")
	// ErrMissingCollection means the caller requires collection scoping
	// but supplied no target collection.
	ErrMissingCollection = errors.New("target collection is required")
	// ErrUnknownCollection means the supplied target collection does not
	// exist.
	ErrUnknownCollection = errors.New("target collection does not exist")
)

// ImportResult summarizes one import run. Errors holds a bounded,
// human-readable sample; counters carry the full picture.
type ImportResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	Imported       int      `json:"imported"`
	Skipped        int      `json:"skipped"`
	FoldersCreated int      `json:"foldersCreated"`
	Errors         []string `json:"errors"`
}

// maxReportedErrors bounds the error sample returned to callers.
const maxReportedErrors = 10

// progressEvery is the processed-bookmark checkpoint cadence.
const progressEvery = 5

// EventType classifies one streamed progress frame.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one frame pushed to a streaming client. Progress is a
// percentage in [0,100], non-decreasing across a run.
type Event struct {
	Type     EventType      `json:"type"`
	Message  string         `json:"message"`
	Progress int            `json:"progress"`
	Stats    *ProgressStats `json:"stats,omitempty"`
	Result   *ImportResult  `json:"result,omitempty"`
}

// ProgressStats carries the running counters on checkpoint frames.
type ProgressStats struct {
	Processed int `json:"processed"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
}

// ImportOptions configure one run.
type ImportOptions struct {
	// CollectionID scopes folders and duplicate detection; nil means the
	// single-tenant root scope.
	CollectionID *string
	// PreserveFolders reconstructs the folder hierarchy; false flattens
	// everything to the root.
	PreserveFolders bool
	// BatchSize bounds how many bookmarks share one transaction.
	BatchSize int
	Tx        storage.TxOptions
	// Progress, when set, receives ordered events. Emission must not
	// block the run; the callback owns any buffering.
	Progress func(Event)
}

const (
	defaultBatchSize = 20
	defaultTxMaxWait = 8 * time.Second
	defaultTxTimeout = 12 * time.Second
)

// ImportService drives the import pipeline:
// parse -> organize -> materialize folders -> batched insert.
type ImportService struct {
	store storage.ImportStore
	log   *zap.Logger
}

// NewImportService creates an import service bound to a persistence port.
func NewImportService(store storage.ImportStore, log *zap.Logger) *ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportService{store: store, log: log}
}

// Import runs the whole pipeline over one uploaded export and returns
// the run summary. Fatal conditions (unrecognized format, empty file,
// unknown collection, cancellation) return an error; everything else
// degrades into the result's skip counter and error sample.
//
// Batches run in their own bounded transactions rather than one global
// transaction: exports can hold thousands of entries, and a single
// all-or-nothing transaction would blow lock budgets and roll back
// everything on one bad row.
func (s *ImportService) Import(ctx context.Context, content []byte, filename string, opts ImportOptions) (*ImportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Tx.MaxWait <= 0 {
		opts.Tx.MaxWait = defaultTxMaxWait
	}
	if opts.Tx.Timeout <= 0 {
		opts.Tx.Timeout = defaultTxTimeout
	}

	if opts.CollectionID != nil {
		exists, err := s.store.CollectionExists(ctx, *opts.CollectionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection: %w", err)
		}
		if !exists {
			return nil, ErrUnknownCollection
		}
	}

	emit := newProgressEmitter(opts.Progress)

	entries, err := parsers.Parse(content, filename)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyImport
	}
	emit.progress(5, "parsed bookmark file")
	emit.progress(10, fmt.Sprintf("found %d bookmarks", len(entries)))

	groups := parsers.Organize(entries)

	result := &ImportResult{TotalProcessed: len(entries)}
	var errs []string

	folderIDs := map[string]string{}
	if opts.PreserveFolders {
		emit.progress(15, "creating folder structure")
		folderIDs = s.materializeFolders(ctx, groups, opts.CollectionID, result, &errs, emit)
	}

	emit.progress(25, "importing bookmarks")

	processed := 0
	for _, group := range groups {
		var folderID *string
		if opts.PreserveFolders && group.Path != parsers.DefaultGroup {
			if id, ok := folderIDs[group.Path]; ok {
				folderID = &id
			}
			// Paths whose materialization failed fall back to the root.
		}

		for start := 0; start < len(group.Bookmarks); start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("import canceled: %w", err)
			}
			end := min(start+opts.BatchSize, len(group.Bookmarks))
			batch := group.Bookmarks[start:end]

			// Counters are staged per batch: a rolled-back transaction
			// must not leak imported counts or sortOrder positions.
			staged := stagedCounters{
				processed: processed,
				imported:  result.Imported,
				skipped:   result.Skipped,
			}
			var stagedErrs []string

			txErr := s.store.InTransaction(ctx, opts.Tx, func(txCtx context.Context, tx storage.ImportTx) error {
				for _, raw := range batch {
					staged.processed++
					s.importOne(txCtx, tx, raw, group.Path, folderID, opts.CollectionID, &staged, &stagedErrs)

					if staged.processed%progressEvery == 0 {
						pct := 25 + staged.processed*70/result.TotalProcessed
						emit.stats(pct,
							fmt.Sprintf("processed %d/%d bookmarks", staged.processed, result.TotalProcessed),
							ProgressStats{Processed: staged.processed, Imported: staged.imported, Skipped: staged.skipped})
					}
				}
				return nil
			})
			if txErr != nil {
				// The whole batch rolled back; count it skipped once,
				// record one error, move on to the next batch.
				processed += len(batch)
				result.Skipped += len(batch)
				errs = append(errs, fmt.Sprintf("batch failed: %v", txErr))
				s.log.Warn("import batch failed",
					zap.Int("batch_size", len(batch)),
					zap.String("folder", group.Path),
					zap.Error(txErr))
				continue
			}

			processed = staged.processed
			result.Imported = staged.imported
			result.Skipped = staged.skipped
			errs = append(errs, stagedErrs...)
		}
	}

	result.Errors = firstN(errs, maxReportedErrors)

	s.log.Info("import finished",
		zap.Int("total", result.TotalProcessed),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("folders_created", result.FoldersCreated))

	emit.complete(result)
	return result, nil
}

type stagedCounters struct {
	processed int
	imported  int
	skipped   int
}

// importOne validates, dedupes and inserts a single bookmark inside the
// current batch transaction. Every failure mode is a skip, never an
// abort; duplicates are expected on re-import and not worth an error
// entry.
func (s *ImportService) importOne(ctx context.Context, tx storage.ImportTx, raw parsers.RawBookmark,
	groupPath string, folderID, collectionID *string, staged *stagedCounters, errs *[]string) {

	cleanURL, ok := parsers.NormalizeURL(raw.URL)
	if !ok {
		staged.skipped++
		*errs = append(*errs, fmt.Sprintf("invalid URL: %s", raw.URL))
		return
	}

	title := parsers.CleanTitle(raw.Title)
	if title == "" {
		staged.skipped++
		*errs = append(*errs, fmt.Sprintf("empty title: %s", cleanURL))
		return
	}

	existing, err := tx.FindBookmarkByURL(ctx, cleanURL, collectionID)
	if err != nil {
		staged.skipped++
		*errs = append(*errs, fmt.Sprintf("import failed: %s", title))
		return
	}
	if existing != nil {
		staged.skipped++
		return
	}

	var description string
	if groupPath != parsers.DefaultGroup {
		description = "Imported from " + groupPath
	}

	_, err = tx.CreateBookmark(ctx, storage.CreateBookmarkParams{
		Title:        title,
		URL:          cleanURL,
		Description:  description,
		Icon:         raw.Icon,
		FolderID:     folderID,
		CollectionID: collectionID,
		SortOrder:    staged.imported,
		AddedAt:      raw.AddedAt,
	})
	if err != nil {
		staged.skipped++
		*errs = append(*errs, fmt.Sprintf("import failed: %s", title))
		return
	}
	staged.imported++
}

// materializeFolders find-or-creates every segment of every non-sentinel
// folder path, in encounter order so parents exist before children. A
// failing segment records one error and abandons the rest of its path;
// it never aborts the run.
func (s *ImportService) materializeFolders(ctx context.Context, groups []parsers.FolderGroup,
	collectionID *string, result *ImportResult, errs *[]string, emit *progressEmitter) map[string]string {

	folderIDs := make(map[string]string)

	paths := 0
	for _, g := range groups {
		if g.Path != parsers.DefaultGroup {
			paths++
		}
	}

	for _, g := range groups {
		if g.Path == parsers.DefaultGroup {
			continue
		}

		var parentID *string
		currentPath := ""
		for _, segment := range strings.Split(g.Path, "/") {
			if currentPath == "" {
				currentPath = segment
			} else {
				currentPath += "/" + segment
			}

			if id, ok := folderIDs[currentPath]; ok {
				reuse := id
				parentID = &reuse
				continue
			}

			folder, err := s.store.FindFolder(ctx, segment, parentID, collectionID)
			if err == nil && folder == nil {
				folder, err = s.store.CreateFolder(ctx, segment, parentID, collectionID)
				if err == nil {
					result.FoldersCreated++
					pct := 15 + result.FoldersCreated*10/max(paths, 1)
					emit.progress(pct, fmt.Sprintf("created folder %s", segment))
				}
			}
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("failed to create folder %s: %v", segment, err))
				s.log.Warn("folder materialization failed",
					zap.String("path", currentPath),
					zap.Error(err))
				break
			}

			folderIDs[currentPath] = folder.ID
			id := folder.ID
			parentID = &id
		}
	}
	return folderIDs
}

// progressEmitter enforces the non-decreasing progress contract and is
// a no-op when the caller did not ask for events.
type progressEmitter struct {
	fn   func(Event)
	last int
}

func newProgressEmitter(fn func(Event)) *progressEmitter {
	return &progressEmitter{fn: fn}
}

func (p *progressEmitter) emit(ev Event) {
	if p.fn == nil {
		return
	}
	if ev.Progress < p.last {
		ev.Progress = p.last
	}
	if ev.Progress > 100 {
		ev.Progress = 100
	}
	p.last = ev.Progress
	p.fn(ev)
}

func (p *progressEmitter) progress(pct int, msg string) {
	p.emit(Event{Type: EventProgress, Message: msg, Progress: pct})
}

func (p *progressEmitter) stats(pct int, msg string, stats ProgressStats) {
	p.emit(Event{Type: EventProgress, Message: msg, Progress: pct, Stats: &stats})
}

func (p *progressEmitter) complete(result *ImportResult) {
	p.emit(Event{Type: EventComplete, Message: "import complete", Progress: 100, Result: result})
}

func firstN(list []string, n int) []string {
	if list == nil {
		return []string{}
	}
	if len(list) > n {
		return list[:n]
	}
	return list
}
