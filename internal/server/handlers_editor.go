package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/carousel"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/editor"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleEditorState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "state": h.editor.State()})
}

func (h *httpHandler) handleToggle(c *gin.Context) {
	enabled := h.editor.Toggle()
	h.events.Publish(Event{Type: EventEditMode, EditMode: &enabled, Timestamp: h.clock().UTC()})
	c.JSON(http.StatusOK, gin.H{"success": true, "editMode": enabled})
}

func (h *httpHandler) handleAddCard(c *gin.Context) {
	kind, ok := h.cardKind(c)
	if !ok {
		return
	}
	link, err := content.ParseLink(c.PostForm("link"))
	if err != nil {
		h.respondWithError(c, "add card", err)
		return
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "no_file", "no file uploaded")
		return
	}
	file, closeFile, err := openUpload(header)
	if err != nil {
		h.respondWithError(c, "read upload", err)
		return
	}
	defer closeFile()

	metadata := cards.Metadata{
		AltText:     strings.TrimSpace(c.PostForm("altText")),
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: strings.TrimSpace(c.PostForm("description")),
		Text:        strings.TrimSpace(c.PostForm("text")),
		Link:        link,
	}
	handle, err := h.editor.AddCard(c.Request.Context(), kind, file, metadata)
	if err != nil {
		h.respondWithError(c, "add card", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusCreated, gin.H{"success": true, "handle": handle})
}

func (h *httpHandler) handleReplaceCardImage(c *gin.Context) {
	kind, handle, ok := h.cardTarget(c)
	if !ok {
		return
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "no_file", "no file uploaded")
		return
	}
	file, closeFile, err := openUpload(header)
	if err != nil {
		h.respondWithError(c, "read upload", err)
		return
	}
	defer closeFile()

	ref, err := h.editor.ReplaceImage(c.Request.Context(), kind, handle, file)
	if err != nil {
		h.respondWithError(c, "replace image", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusOK, gin.H{"success": true, "image": ref})
}

type editTextRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *httpHandler) handleEditCardText(c *gin.Context) {
	kind, handle, ok := h.cardTarget(c)
	if !ok {
		return
	}
	var request editTextRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Field) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "field and value are required")
		return
	}
	if err := h.editor.EditText(kind, handle, cards.Field(request.Field), request.Value); err != nil {
		h.respondWithError(c, "edit text", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type editLinkRequest struct {
	Link string `json:"link"`
}

func (h *httpHandler) handleEditCardLink(c *gin.Context) {
	kind, handle, ok := h.cardTarget(c)
	if !ok {
		return
	}
	var request editLinkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "link is required")
		return
	}
	if err := h.editor.EditLink(kind, handle, request.Link); err != nil {
		h.respondWithError(c, "edit link", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleRemoveCard(c *gin.Context) {
	kind, handle, ok := h.cardTarget(c)
	if !ok {
		return
	}
	if err := h.editor.RemoveCard(kind, handle); err != nil {
		h.respondWithError(c, "remove card", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type moveCardRequest struct {
	Position *int `json:"position"`
}

func (h *httpHandler) handleMoveCard(c *gin.Context) {
	kind, handle, ok := h.cardTarget(c)
	if !ok {
		return
	}
	var request moveCardRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Position == nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "position is required")
		return
	}
	if err := h.editor.MoveCard(kind, handle, *request.Position); err != nil {
		h.respondWithError(c, "move card", err)
		return
	}
	h.publish(EventCardsChanged, kind)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type editRegionRequest struct {
	Locator     string `json:"locator"`
	RichContent string `json:"richContent"`
}

func (h *httpHandler) handleEditRegion(c *gin.Context) {
	var request editRegionRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Locator) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "locator is required")
		return
	}
	if err := h.editor.EditRegion(request.Locator, request.RichContent); err != nil {
		h.respondWithError(c, "edit region", err)
		return
	}
	h.publish(EventRegionChanged)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleReplaceAboutPhoto(c *gin.Context) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "no_file", "no file uploaded")
		return
	}
	file, closeFile, err := openUpload(header)
	if err != nil {
		h.respondWithError(c, "read upload", err)
		return
	}
	defer closeFile()

	ref, err := h.editor.ReplaceAboutPhoto(c.Request.Context(), file)
	if err != nil {
		h.respondWithError(c, "replace about photo", err)
		return
	}
	h.publish(EventRegionChanged)
	c.JSON(http.StatusOK, gin.H{"success": true, "image": ref})
}

type advanceRequest struct {
	Step int `json:"step"`
}

func (h *httpHandler) handleAdvance(c *gin.Context) {
	kind, ok := h.cardKind(c)
	if !ok {
		return
	}
	var request advanceRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Step == 0 {
		respondError(c, http.StatusBadRequest, "invalid_request", "step must be a non-zero integer")
		return
	}
	index, err := h.editor.Advance(kind, request.Step)
	if err != nil {
		h.respondWithError(c, "advance carousel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "currentIndex": index})
}

type geometryRequest struct {
	CardWidth     int `json:"cardWidth"`
	ViewportWidth int `json:"viewportWidth"`
}

type viewportRequest struct {
	WindowWidth int                        `json:"windowWidth"`
	Carousels   map[string]geometryRequest `json:"carousels"`
}

func (h *httpHandler) handleViewport(c *gin.Context) {
	var request viewportRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.WindowWidth < 0 {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid viewport measurements")
		return
	}
	viewport := editor.Viewport{
		WindowWidth: request.WindowWidth,
		Geometries:  make(map[content.CardKind]carousel.Geometry, len(request.Carousels)),
	}
	for rawKind, geometry := range request.Carousels {
		kind, err := content.ParseCardKind(rawKind)
		if err != nil {
			h.respondWithError(c, "resize viewport", err)
			return
		}
		if geometry.CardWidth < 0 || geometry.ViewportWidth < 0 {
			respondError(c, http.StatusBadRequest, "invalid_request", "widths must not be negative")
			return
		}
		viewport.Geometries[kind] = carousel.Geometry{
			CardWidth:     geometry.CardWidth,
			ViewportWidth: geometry.ViewportWidth,
			WindowWidth:   request.WindowWidth,
		}
	}
	if err := h.editor.ResizeViewport(viewport); err != nil {
		h.respondWithError(c, "resize viewport", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "carousels": h.editor.State().Carousels})
}

func (h *httpHandler) handleSnapshot(c *gin.Context) {
	doc, err := h.editor.Snapshot()
	if err != nil {
		h.respondWithError(c, "snapshot content", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

func (h *httpHandler) handleRestore(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}
	doc, err := content.DecodeDocument(payload)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_document", err.Error())
		return
	}
	report := h.editor.Restore(doc)
	h.publish(EventContentRestored, report.Collections...)
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (h *httpHandler) handleEditorSave(c *gin.Context) {
	receipt, err := h.editor.Save(c.Request.Context())
	if err != nil {
		h.respondWithError(c, "save content", err)
		return
	}
	h.publish(EventContentSaved)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Content saved successfully",
		"timestamp": receipt.Timestamp,
	})
}

func (h *httpHandler) handleEditorLoad(c *gin.Context) {
	report, found, err := h.editor.Load(c.Request.Context())
	if err != nil {
		h.respondWithError(c, "load content", err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"success": true, "found": false, "message": "No saved content found"})
		return
	}
	h.publish(EventContentRestored, report.Collections...)
	c.JSON(http.StatusOK, gin.H{"success": true, "found": true, "report": report})
}

func (h *httpHandler) handleStorageUsage(c *gin.Context) {
	if h.local == nil {
		respondError(c, http.StatusServiceUnavailable, "local_storage_not_configured", "local storage is not configured")
		return
	}
	usage, err := h.local.Usage(c.Request.Context())
	if err != nil {
		h.respondWithError(c, "measure storage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "usage": usage})
}

func (h *httpHandler) handleStorageClear(c *gin.Context) {
	if h.local == nil {
		respondError(c, http.StatusServiceUnavailable, "local_storage_not_configured", "local storage is not configured")
		return
	}
	confirmed := c.Query("confirm") == "true"
	if err := h.local.Clear(c.Request.Context(), confirmed); err != nil {
		h.respondWithError(c, "clear storage", err)
		return
	}
	h.logger.Warn("local storage cleared")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stored content cleared"})
}

func (h *httpHandler) handleEditorEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.events.Subscribe(ctx)
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	editMode := h.editor.EditMode()
	c.SSEvent("ready", Event{Type: "ready", EditMode: &editMode, Timestamp: h.clock().UTC()})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event := <-stream:
			c.SSEvent(event.Type, event)
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, Event{Type: eventHeartbeat, Timestamp: h.clock().UTC()})
			return true
		}
	})
}

func (h *httpHandler) cardKind(c *gin.Context) (content.CardKind, bool) {
	kind, err := content.ParseCardKind(c.Param("kind"))
	if err != nil {
		h.respondWithError(c, "resolve card kind", err)
		return "", false
	}
	return kind, true
}

func (h *httpHandler) cardTarget(c *gin.Context) (content.CardKind, appstate.Handle, bool) {
	kind, ok := h.cardKind(c)
	if !ok {
		return "", 0, false
	}
	value, err := strconv.ParseInt(c.Param("handle"), 10, 64)
	if err != nil || value <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_handle", "card handle must be a positive integer")
		return "", 0, false
	}
	return kind, appstate.Handle(value), true
}
