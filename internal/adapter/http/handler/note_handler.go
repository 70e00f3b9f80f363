package handler

import (
	"net/http"

	"note-issuance-engine/internal/adapter/http/dto"
	"note-issuance-engine/internal/adapter/http/middleware"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
	"note-issuance-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// NoteHandler serves note lookups and holder redemptions.
type NoteHandler struct {
	notes      ports.NoteService
	redemption ports.RedemptionService
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes ports.NoteService, redemption ports.RedemptionService) *NoteHandler {
	return &NoteHandler{notes: notes, redemption: redemption}
}

// Attributes handles GET /api/v1/notes/:token_id.
func (h *NoteHandler) Attributes(c *gin.Context) {
	var uri dto.TokenURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	attrs, err := h.notes.Attributes(c.Request.Context(), uri.TokenID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, attrs)
}

// Metadata handles GET /api/v1/notes/:token_id/metadata. The rendered
// document is returned as-is, without the response envelope.
func (h *NoteHandler) Metadata(c *gin.Context) {
	var uri dto.TokenURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	doc, err := h.notes.Describe(c.Request.Context(), uri.TokenID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

// Redeem handles POST /api/v1/notes/:token_id/redeem for the holder
// identified by the bearer token.
func (h *NoteHandler) Redeem(c *gin.Context) {
	holder, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var uri dto.TokenURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	st, err := h.redemption.Redeem(c.Request.Context(), holder, uri.TokenID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, st)
}
