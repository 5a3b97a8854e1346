package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/response"
	"github.com/welldanyogia/webrana-cms-backend/internal/content"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
)

// ContentHandler exposes rich-text rewriting to the CMS editors
type ContentHandler struct {
	processor content.Processor
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(processor content.Processor) *ContentHandler {
	return &ContentHandler{processor: processor}
}

// ContentRequest carries a rich-text body and, for processing, its owner
type ContentRequest struct {
	Body      string `json:"body"`
	OwnerType string `json:"owner_type,omitempty"`
	OwnerID   uint   `json:"owner_id,omitempty"`
}

// ProcessResponse is the rewritten body plus the attachments it references
type ProcessResponse struct {
	Body        string              `json:"body"`
	Attachments []models.Attachment `json:"attachments"`
}

// ContentResponse is a rewritten body
type ContentResponse struct {
	Body string `json:"body"`
}

// AttachmentIDsResponse lists attachment ids found in a body
type AttachmentIDsResponse struct {
	IDs []uint `json:"ids"`
}

// Process handles POST /api/content/process. It associates every
// attachment the body references with the owner and returns the body
// with canonical URLs.
func (h *ContentHandler) Process(c echo.Context) error {
	var req ContentRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	owner, err := models.NewOwner(req.OwnerType, req.OwnerID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	body, attachments, err := h.processor.ProcessContent(c.Request().Context(), req.Body, owner)
	if err != nil {
		return response.Error(c, err)
	}
	if attachments == nil {
		attachments = []models.Attachment{}
	}

	return response.Success(c, ProcessResponse{Body: body, Attachments: attachments})
}

// Reconstruct handles POST /api/content/reconstruct, turning canonical
// URLs back into editor placeholders
func (h *ContentHandler) Reconstruct(c echo.Context) error {
	var req ContentRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	body, err := h.processor.ReconstructContent(c.Request().Context(), req.Body)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, ContentResponse{Body: body})
}

// AttachmentIDs handles POST /api/content/attachment-ids
func (h *ContentHandler) AttachmentIDs(c echo.Context) error {
	var req ContentRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	ids := h.processor.ExtractAttachmentIDs(req.Body)
	if ids == nil {
		ids = []uint{}
	}

	return response.Success(c, AttachmentIDsResponse{IDs: ids})
}
