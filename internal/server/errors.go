package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/editor"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/MarcoPoloResearchLab/folio/internal/relay"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/MarcoPoloResearchLab/folio/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message, "code": code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{target: imaging.ErrInvalidFileType, status: http.StatusBadRequest, code: "invalid_file_type"},
	{target: imaging.ErrFileTooLarge, status: http.StatusRequestEntityTooLarge, code: "file_too_large"},
	{target: imaging.ErrDecodeFailure, status: http.StatusBadRequest, code: "decode_failed"},
	{target: uploads.ErrNoFiles, status: http.StatusBadRequest, code: "no_file"},
	{target: uploads.ErrTooManyFiles, status: http.StatusBadRequest, code: "too_many_files"},
	{target: uploads.ErrInvalidFilename, status: http.StatusBadRequest, code: "invalid_filename"},
	{target: uploads.ErrNotFound, status: http.StatusNotFound, code: "image_not_found"},
	{target: cards.ErrEditModeDisabled, status: http.StatusConflict, code: "edit_mode_disabled"},
	{target: cards.ErrCardNotFound, status: http.StatusNotFound, code: "card_not_found"},
	{target: cards.ErrUnknownField, status: http.StatusBadRequest, code: "unknown_field"},
	{target: content.ErrInvalidURL, status: http.StatusBadRequest, code: "invalid_url"},
	{target: content.ErrInvalidCardKind, status: http.StatusNotFound, code: "invalid_card_kind"},
	{target: editor.ErrRegionNotEditable, status: http.StatusNotFound, code: "region_not_editable"},
	{target: editor.ErrNoStorage, status: http.StatusServiceUnavailable, code: "storage_not_configured"},
	{target: editor.ErrNoImageSink, status: http.StatusServiceUnavailable, code: "image_sink_not_configured"},
	{target: storage.ErrClearNotConfirmed, status: http.StatusBadRequest, code: "confirmation_required"},
	{target: relay.ErrNotConfigured, status: http.StatusServiceUnavailable, code: "relay_not_configured"},
}

// respondWithError maps domain errors to a status and a stable code.
func (h *httpHandler) respondWithError(c *gin.Context, operation string, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			respondError(c, mapping.status, mapping.code, err.Error())
			return
		}
	}

	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		switch storageErr.Kind {
		case storage.KindQuotaExceeded:
			respondError(c, http.StatusInsufficientStorage, "quota_exceeded", storageErr.Error())
		case storage.KindNetwork:
			respondError(c, http.StatusBadGateway, "storage_network", storageErr.Error())
		default:
			h.logger.Error("storage failure", zap.String("operation", operation), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "storage_failed", storageErr.Error())
		}
		return
	}

	var serviceErr *content.ServiceError
	if errors.As(err, &serviceErr) {
		h.logger.Error("content service failure", zap.String("operation", operation), zap.String("code", serviceErr.Code()))
		respondError(c, http.StatusInternalServerError, serviceErr.Code(), "failed to "+operation)
		return
	}

	h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	respondError(c, http.StatusInternalServerError, "internal_error", "failed to "+operation)
}
