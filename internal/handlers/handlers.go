package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/marrywu6/linktree/internal/services"
	"github.com/marrywu6/linktree/internal/services/parsers"
	"github.com/marrywu6/linktree/internal/storage"
)

// Config carries the handler-level tunables.
type Config struct {
	MaxUploadBytes  int64
	ImportBatchSize int
	// ImportTx bounds transactions for the blocking import endpoint.
	ImportTx storage.TxOptions
	// StreamTx bounds transactions for the streaming endpoint, tighter
	// so a stuck batch cannot stall the event stream for long.
	StreamTx storage.TxOptions
	// Checker tunes the outbound reachability prober.
	Checker services.LinkCheckerConfig
}

func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:  50 << 20,
		ImportBatchSize: 20,
		ImportTx:        storage.TxOptions{MaxWait: 20 * time.Second, Timeout: 30 * time.Second},
		StreamTx:        storage.TxOptions{MaxWait: 8 * time.Second, Timeout: 12 * time.Second},
		Checker:         services.DefaultLinkCheckerConfig(),
	}
}

type Handler struct {
	importService *services.ImportService
	checker       *services.LinkChecker
	bulkChecker   *services.BulkChecker
	store         *storage.Storage
	log           *zap.Logger
	cfg           Config
}

func NewHandler(store *storage.Storage, log *zap.Logger, cfg Config) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg = DefaultConfig()
	}
	checker := services.NewLinkChecker(cfg.Checker)
	return &Handler{
		importService: services.NewImportService(store, log),
		checker:       checker,
		bulkChecker:   services.NewBulkChecker(checker, store, log),
		store:         store,
		log:           log,
		cfg:           cfg,
	}
}

// Register wires every route onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/bookmarks/import", h.ImportBookmarks)
	api.POST("/bookmarks/import/stream", h.ImportBookmarksStream)
	api.GET("/bookmarks", h.ListBookmarks)

	api.POST("/bookmarks/check-validity", h.CheckValidity)
	api.GET("/bookmarks/check-validity", h.CheckAllStored)
	api.GET("/bookmarks/check-validity/status", h.GetBulkCheckStatus)
	api.POST("/bookmarks/check-validity/start", h.StartBulkCheck)
	api.POST("/bookmarks/check-validity/pause", h.PauseBulkCheck)
	api.POST("/bookmarks/check-validity/resume", h.ResumeBulkCheck)
	api.POST("/bookmarks/check-validity/stop", h.StopBulkCheck)

	api.GET("/collections", h.ListCollections)
	api.POST("/collections", h.CreateCollection)
	api.GET("/folders", h.ListFolders)
	api.GET("/stats", h.GetStats)
	api.GET("/health", h.HealthCheck)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Error: msg})
}

// Import bookmarks from an uploaded export file
// (POST /api/bookmarks/import)
func (h *Handler) ImportBookmarks(c echo.Context) error {
	content, filename, err := h.readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	collectionID := c.FormValue("collectionId")
	if collectionID == "" {
		return fail(c, http.StatusBadRequest, services.ErrMissingCollection.Error())
	}

	opts := services.ImportOptions{
		CollectionID:    &collectionID,
		PreserveFolders: c.FormValue("createFolders") != "false",
		BatchSize:       h.cfg.ImportBatchSize,
		Tx:              h.cfg.ImportTx,
	}

	result, err := h.importService.Import(c.Request().Context(), content, filename, opts)
	if err != nil {
		return h.importError(c, err)
	}

	h.log.Info("import request served",
		zap.String("collection", collectionID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))

	return respond(c, http.StatusOK, result)
}

// Import bookmarks with server-sent progress events
// (POST /api/bookmarks/import/stream)
func (h *Handler) ImportBookmarksStream(c echo.Context) error {
	content, filename, err := h.readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	var collectionID *string
	if id := c.FormValue("collectionId"); id != "" {
		collectionID = &id
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	send := func(ev services.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(res, "data: %s\n\n", payload)
		res.Flush()
	}

	opts := services.ImportOptions{
		CollectionID:    collectionID,
		PreserveFolders: c.FormValue("createFolders") != "false",
		BatchSize:       h.cfg.ImportBatchSize,
		Tx:              h.cfg.StreamTx,
		Progress:        send,
	}

	if _, err := h.importService.Import(c.Request().Context(), content, filename, opts); err != nil {
		send(services.Event{Type: services.EventError, Message: err.Error()})
	}
	return nil
}

func (h *Handler) readUpload(c echo.Context) ([]byte, string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, "", errors.New("no file provided or invalid form data")
	}
	if file.Size > h.cfg.MaxUploadBytes {
		return nil, "", fmt.Errorf("file exceeds %d byte limit", h.cfg.MaxUploadBytes)
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", errors.New("failed to open uploaded file")
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, h.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, "", errors.New("failed to read uploaded file")
	}
	if int64(len(content)) > h.cfg.MaxUploadBytes {
		return nil, "", fmt.Errorf("file exceeds %d byte limit", h.cfg.MaxUploadBytes)
	}
	return content, file.Filename, nil
}

func (h *Handler) importError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownCollection):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrMissingCollection),
		errors.Is(err, services.ErrEmptyImport),
		errors.Is(err, parsers.ErrUnrecognizedFormat):
		return fail(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("import failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, err.Error())
	}
}

// List all bookmarks
// (GET /api/bookmarks)
func (h *Handler) ListBookmarks(c echo.Context) error {
	bookmarks, err := h.store.ListBookmarks(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to retrieve bookmarks")
	}
	return respond(c, http.StatusOK, bookmarks)
}

// Check validity of a supplied URL list
// (POST /api/bookmarks/check-validity)
func (h *Handler) CheckValidity(c echo.Context) error {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if len(req.URLs) == 0 {
		return fail(c, http.StatusBadRequest, "no URLs provided")
	}

	summary := h.checker.CheckAll(c.Request().Context(), req.URLs)
	return respond(c, http.StatusOK, summary)
}

// Check validity of every stored bookmark, synchronously
// (GET /api/bookmarks/check-validity)
func (h *Handler) CheckAllStored(c echo.Context) error {
	bookmarks, err := h.store.ListBookmarks(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to retrieve bookmarks")
	}

	urls := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		urls[i] = b.URL
	}
	summary := h.checker.CheckAll(c.Request().Context(), urls)
	return respond(c, http.StatusOK, summary)
}

// Start a bulk validity check over all stored bookmarks
// (POST /api/bookmarks/check-validity/start)
func (h *Handler) StartBulkCheck(c echo.Context) error {
	if err := h.bulkChecker.Start(c.Request().Context()); err != nil {
		return fail(c, http.StatusConflict, err.Error())
	}
	return respond(c, http.StatusOK, map[string]string{"status": "started"})
}

// (POST /api/bookmarks/check-validity/pause)
func (h *Handler) PauseBulkCheck(c echo.Context) error {
	if err := h.bulkChecker.Pause(); err != nil {
		return fail(c, http.StatusConflict, err.Error())
	}
	return respond(c, http.StatusOK, map[string]string{"status": "paused"})
}

// (POST /api/bookmarks/check-validity/resume)
func (h *Handler) ResumeBulkCheck(c echo.Context) error {
	if err := h.bulkChecker.Resume(); err != nil {
		return fail(c, http.StatusConflict, err.Error())
	}
	return respond(c, http.StatusOK, map[string]string{"status": "running"})
}

// (POST /api/bookmarks/check-validity/stop)
func (h *Handler) StopBulkCheck(c echo.Context) error {
	if err := h.bulkChecker.Stop(); err != nil {
		return fail(c, http.StatusConflict, err.Error())
	}
	return respond(c, http.StatusOK, map[string]string{"status": "stopped"})
}

// (GET /api/bookmarks/check-validity/status)
func (h *Handler) GetBulkCheckStatus(c echo.Context) error {
	return respond(c, http.StatusOK, h.bulkChecker.GetStatus())
}

// List collections
// (GET /api/collections)
func (h *Handler) ListCollections(c echo.Context) error {
	collections, err := h.store.ListCollections(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to retrieve collections")
	}
	return respond(c, http.StatusOK, collections)
}

// Create a collection
// (POST /api/collections)
func (h *Handler) CreateCollection(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return fail(c, http.StatusBadRequest, "collection name is required")
	}

	collection, err := h.store.CreateCollection(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to create collection")
	}
	return respond(c, http.StatusCreated, collection)
}

// List folders
// (GET /api/folders)
func (h *Handler) ListFolders(c echo.Context) error {
	folders, err := h.store.ListFolders(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to retrieve folders")
	}
	return respond(c, http.StatusOK, folders)
}

// System statistics
// (GET /api/stats)
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "failed to retrieve statistics")
	}
	return respond(c, http.StatusOK, stats)
}

// Health check
// (GET /api/health)
func (h *Handler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "up"
	status := "healthy"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "down"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	return respond(c, code, map[string]any{
		"status":    status,
		"timestamp": time.Now(),
		"services":  map[string]string{"database": dbStatus},
	})
}
