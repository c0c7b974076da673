package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/MarcoPoloResearchLab/folio/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	uploadField      = "image"
	multiUploadField = "images"
)

type uploadPayload struct {
	Success      bool   `json:"success"`
	URL          string `json:"url"`
	ImageURL     string `json:"imageUrl"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

func newUploadPayload(upload uploads.Upload) uploadPayload {
	return uploadPayload{
		Success:      true,
		URL:          upload.URL,
		ImageURL:     upload.URL,
		Filename:     upload.Filename,
		OriginalName: upload.OriginalName,
		Size:         upload.Size,
	}
}

func (h *httpHandler) handleUpload(c *gin.Context) {
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

	upload, err := h.uploads.Save(c.Request.Context(), file)
	h.observeUpload(upload.Size, err)
	if err != nil {
		h.respondWithError(c, "upload image", err)
		return
	}
	c.JSON(http.StatusOK, newUploadPayload(upload))
}

func (h *httpHandler) handleUploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File[multiUploadField]) == 0 {
		respondError(c, http.StatusBadRequest, "no_file", "no files uploaded")
		return
	}
	headers := form.File[multiUploadField]
	if len(headers) > h.uploads.MaxFiles() {
		respondError(c, http.StatusBadRequest, "too_many_files", "too many files in one upload")
		return
	}

	files := make([]imaging.File, 0, len(headers))
	for _, header := range headers {
		file, closeFile, err := openUpload(header)
		if err != nil {
			h.respondWithError(c, "read upload", err)
			return
		}
		defer closeFile()
		files = append(files, file)
	}

	stored, err := h.uploads.SaveAll(c.Request.Context(), files)
	for _, upload := range stored {
		h.observeUpload(upload.Size, nil)
	}
	if err != nil {
		h.observeUpload(0, err)
		h.respondWithError(c, "upload images", err)
		return
	}
	images := make([]uploadPayload, 0, len(stored))
	for _, upload := range stored {
		images = append(images, newUploadPayload(upload))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": images})
}

func (h *httpHandler) handleListImages(c *gin.Context) {
	images, err := h.uploads.List(c.Request.Context())
	if err != nil {
		h.respondWithError(c, "list images", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": images})
}

func (h *httpHandler) handleDeleteImage(c *gin.Context) {
	if err := h.uploads.Delete(c.Request.Context(), c.Param("filename")); err != nil {
		h.respondWithError(c, "delete image", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image deleted successfully"})
}

// handleSaveContent persists a pushed document and applies it to the live page.
func (h *httpHandler) handleSaveContent(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}
	doc, err := content.DecodeDocument(payload)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_document", err.Error())
		return
	}

	receipt, err := h.service.Save(c.Request.Context(), doc)
	if err != nil {
		h.respondWithError(c, "save content", err)
		return
	}
	report := h.editor.Restore(doc)
	if len(report.SkippedRegions) > 0 {
		h.logger.Warn("pushed content partially applied", zap.Int("regions_skipped", len(report.SkippedRegions)))
	}
	h.publish(EventContentRestored, report.Collections...)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Content saved successfully",
		"timestamp": receipt.Timestamp,
	})
}

func (h *httpHandler) handleLoadContent(c *gin.Context) {
	doc, err := h.service.Load(c.Request.Context())
	if err != nil {
		h.respondWithError(c, "load content", err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": nil, "message": "No saved content found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc, "message": "Content loaded successfully"})
}

type backupPayload struct {
	BackupID  string    `json:"backupId"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *httpHandler) handleListBackups(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	backups, err := h.service.ListBackups(c.Request.Context(), limit)
	if err != nil {
		h.respondWithError(c, "list backups", err)
		return
	}
	payload := make([]backupPayload, 0, len(backups))
	for _, backup := range backups {
		payload = append(payload, backupPayload{
			BackupID:  backup.BackupID,
			SizeBytes: backup.SizeBytes,
			CreatedAt: backup.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "backups": payload})
}

func (h *httpHandler) handleContact(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_form", "failed to parse form")
		return
	}
	if err := h.relay.Submit(c.Request.Context(), c.Request.PostForm); err != nil {
		h.respondWithError(c, "relay message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent"})
}

func (h *httpHandler) observeUpload(size int64, err error) {
	if h.metrics != nil {
		h.metrics.ObserveUpload(size, err)
	}
}

// openUpload adapts a multipart file to the ingestion input.
func openUpload(header *multipart.FileHeader) (imaging.File, func(), error) {
	if header == nil {
		return imaging.File{}, func() {}, errors.New("missing file header")
	}
	opened, err := header.Open()
	if err != nil {
		return imaging.File{}, func() {}, err
	}
	file := imaging.File{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Size:      header.Size,
		Content:   opened,
	}
	return file, func() { _ = opened.Close() }, nil
}
