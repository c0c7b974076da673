package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/editor"
	"github.com/MarcoPoloResearchLab/folio/internal/metrics"
	"github.com/MarcoPoloResearchLab/folio/internal/relay"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/MarcoPoloResearchLab/folio/internal/uploads"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingEditor         = errors.New("editor dependency required")
	errMissingUploadStore    = errors.New("upload store dependency required")
	errMissingContentService = errors.New("content service dependency required")
)

// Dependencies wires the HTTP surface. LocalStorage, Relay, Metrics and
// StaticDir are optional.
type Dependencies struct {
	Editor         *editor.Editor
	Uploads        *uploads.Store
	ContentService *content.Service
	LocalStorage   *storage.LocalAdapter
	Relay          *relay.Client
	Metrics        *metrics.Metrics
	Events         *EventDispatcher
	StaticDir      string
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Editor == nil {
		return nil, errMissingEditor
	}
	if deps.Uploads == nil {
		return nil, errMissingUploadStore
	}
	if deps.ContentService == nil {
		return nil, errMissingContentService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.MaxMultipartMemory = deps.Uploads.MaxBytes()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(corsMiddleware())

	handler := &httpHandler{
		editor:    deps.Editor,
		uploads:   deps.Uploads,
		service:   deps.ContentService,
		local:     deps.LocalStorage,
		relay:     deps.Relay,
		metrics:   deps.Metrics,
		events:    events,
		clock:     clock,
		heartbeat: defaultHeartbeatTick,
		logger:    logger,
	}

	router.GET("/", handler.handlePage)
	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if staticDir := strings.TrimSpace(deps.StaticDir); staticDir != "" {
		router.Static("/assets", staticDir)
	}
	router.StaticFS(uploads.URLPrefix, deps.Uploads.FileSystem())

	api := router.Group("/api")
	api.POST("/upload", handler.handleUpload)
	api.POST("/upload-multiple", handler.handleUploadMultiple)
	api.GET("/images", handler.handleListImages)
	api.DELETE("/delete-image/:filename", handler.handleDeleteImage)
	api.POST("/save-content", handler.handleSaveContent)
	api.GET("/load-content", handler.handleLoadContent)
	api.GET("/backups", handler.handleListBackups)
	api.POST("/contact", handler.handleContact)

	edit := api.Group("/editor")
	edit.GET("/state", handler.handleEditorState)
	edit.GET("/events", handler.handleEditorEvents)
	edit.POST("/toggle", handler.handleToggle)
	edit.POST("/cards/:kind", handler.handleAddCard)
	edit.PUT("/cards/:kind/:handle/image", handler.handleReplaceCardImage)
	edit.PATCH("/cards/:kind/:handle/text", handler.handleEditCardText)
	edit.PATCH("/cards/:kind/:handle/link", handler.handleEditCardLink)
	edit.DELETE("/cards/:kind/:handle", handler.handleRemoveCard)
	edit.POST("/cards/:kind/:handle/move", handler.handleMoveCard)
	edit.PUT("/regions", handler.handleEditRegion)
	edit.PUT("/about-photo", handler.handleReplaceAboutPhoto)
	edit.POST("/carousels/:kind/advance", handler.handleAdvance)
	edit.POST("/viewport", handler.handleViewport)
	edit.GET("/snapshot", handler.handleSnapshot)
	edit.POST("/restore", handler.handleRestore)
	edit.POST("/save", handler.handleEditorSave)
	edit.POST("/load", handler.handleEditorLoad)
	edit.GET("/storage/usage", handler.handleStorageUsage)
	edit.DELETE("/storage", handler.handleStorageClear)

	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "route not found")
	})

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{"Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	editor    *editor.Editor
	uploads   *uploads.Store
	service   *content.Service
	local     *storage.LocalAdapter
	relay     *relay.Client
	metrics   *metrics.Metrics
	events    *EventDispatcher
	clock     func() time.Time
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) handlePage(c *gin.Context) {
	showAdminPanel := c.Query("admin") == "true"
	body, err := h.editor.Render(showAdminPanel)
	if err != nil {
		h.logger.Error("page render failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "render_failed", "failed to render page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) publish(eventType string, kinds ...content.CardKind) {
	h.events.Publish(Event{Type: eventType, Kinds: kinds, Timestamp: h.clock().UTC()})
}
