package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marrywu6/linktree/internal/storage"
)

// CheckRunState represents the lifecycle of a bulk validity run.
type CheckRunState string

const (
	CheckIdle      CheckRunState = "idle"
	CheckRunning   CheckRunState = "running"
	CheckPaused    CheckRunState = "paused"
	CheckCompleted CheckRunState = "completed"
	CheckStopped   CheckRunState = "stopped"
)

// BulkCheckStatus is the externally visible snapshot of a run.
type BulkCheckStatus struct {
	Status   CheckRunState          `json:"status"`
	Current  int                    `json:"current"`
	Total    int                    `json:"total"`
	Progress float64                `json:"progress"`
	Results  map[string]CheckResult `json:"results,omitempty"`
}

const bulkCheckBatchSize = 10

// BulkChecker walks every stored bookmark and validates its URL in
// batches, with pause/resume/stop control. One run at a time.
type BulkChecker struct {
	checker *LinkChecker
	store   *storage.Storage
	log     *zap.Logger
	mu      sync.RWMutex

	status  CheckRunState
	current int
	total   int
	results map[string]CheckResult

	// gen fences runs: a goroutine from an earlier Start must not
	// touch state that now belongs to a later run.
	gen int

	pauseChan  chan struct{}
	resumeChan chan struct{}
	stopChan   chan struct{}
	cancel     context.CancelFunc
}

func NewBulkChecker(checker *LinkChecker, store *storage.Storage, log *zap.Logger) *BulkChecker {
	if log == nil {
		log = zap.NewNop()
	}
	return &BulkChecker{
		checker: checker,
		store:   store,
		log:     log,
		status:  CheckIdle,
		results: make(map[string]CheckResult),
	}
}

// Start kicks off a background run over all stored bookmarks. Control
// channels are created per run so a token buffered by a pause or stop
// of an earlier run cannot leak into this one.
func (bc *BulkChecker) Start(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.status == CheckRunning || bc.status == CheckPaused {
		return fmt.Errorf("validity check already in progress")
	}

	bookmarks, err := bc.store.ListBookmarks(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list bookmarks: %w", err)
	}

	bc.gen++
	bc.current = 0
	bc.total = len(bookmarks)
	bc.status = CheckRunning
	bc.results = make(map[string]CheckResult)
	bc.pauseChan = make(chan struct{}, 1)
	bc.resumeChan = make(chan struct{}, 1)
	bc.stopChan = make(chan struct{}, 1)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	bc.cancel = cancel

	go bc.checkAll(bc.gen, runCtx, bc.pauseChan, bc.resumeChan, bc.stopChan, bookmarks)

	return nil
}

func (bc *BulkChecker) Pause() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.status != CheckRunning {
		return fmt.Errorf("no running check to pause")
	}
	bc.status = CheckPaused
	select {
	case bc.pauseChan <- struct{}{}:
	default:
	}
	return nil
}

func (bc *BulkChecker) Resume() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.status != CheckPaused {
		return fmt.Errorf("no paused check to resume")
	}
	bc.status = CheckRunning
	select {
	case bc.resumeChan <- struct{}{}:
	default:
	}
	return nil
}

func (bc *BulkChecker) Stop() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.status != CheckRunning && bc.status != CheckPaused {
		return fmt.Errorf("no check to stop")
	}
	bc.status = CheckStopped
	if bc.cancel != nil {
		bc.cancel()
	}
	select {
	case bc.stopChan <- struct{}{}:
	default:
	}
	return nil
}

// GetStatus returns a snapshot of the current run.
func (bc *BulkChecker) GetStatus() BulkCheckStatus {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	progress := 0.0
	if bc.total > 0 {
		progress = float64(bc.current) / float64(bc.total) * 100
	}

	results := make(map[string]CheckResult, len(bc.results))
	for id, r := range bc.results {
		results[id] = r
	}

	return BulkCheckStatus{
		Status:   bc.status,
		Current:  bc.current,
		Total:    bc.total,
		Progress: progress,
		Results:  results,
	}
}

func (bc *BulkChecker) checkAll(gen int, ctx context.Context,
	pause, resume, stop <-chan struct{}, bookmarks []*storage.Bookmark) {

	defer func() {
		bc.mu.Lock()
		if bc.gen == gen && bc.status == CheckRunning {
			bc.status = CheckCompleted
		}
		bc.mu.Unlock()
	}()

	for start := 0; start < len(bookmarks); start += bulkCheckBatchSize {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		select {
		case <-pause:
			select {
			case <-resume:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		default:
		}

		end := min(start+bulkCheckBatchSize, len(bookmarks))
		batch := bookmarks[start:end]

		urls := make([]string, len(batch))
		for i, b := range batch {
			urls[i] = b.URL
		}
		summary := bc.checker.CheckAll(ctx, urls)

		bc.mu.Lock()
		if bc.gen != gen {
			bc.mu.Unlock()
			return
		}
		for i, b := range batch {
			bc.results[b.ID] = summary.Results[i]
		}
		bc.current = end
		bc.mu.Unlock()

		bc.log.Debug("validity batch done",
			zap.Int("checked", end),
			zap.Int("total", len(bookmarks)),
			zap.Int("broken", summary.Broken))

		if end < len(bookmarks) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}
