package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/response"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/validator"
)

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	service  attachment.Service
	security *logger.SecurityLogger
	logger   *slog.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(service attachment.Service, security *logger.SecurityLogger, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service:  service,
		security: security,
		logger:   logger,
	}
}

// maxLoggedReason caps validation messages copied into security logs
const maxLoggedReason = 200

// AssociateRequest is the body of POST /api/attachments/associate
type AssociateRequest struct {
	AttachmentIDs  []uint `json:"attachment_ids"`
	OwnerType      string `json:"owner_type"`
	OwnerID        uint   `json:"owner_id"`
	IsFeatured     bool   `json:"is_featured"`
	IsContentImage bool   `json:"is_content_image"`
}

// AssociateResponse reports whether any attachment was associated
type AssociateResponse struct {
	Associated bool `json:"associated"`
}

// DeleteFilesResponse reports how many attachments were removed
type DeleteFilesResponse struct {
	Deleted int `json:"deleted"`
}

// Upload handles POST /api/attachments
func (h *AttachmentHandler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return response.BadRequest(c, "failed to read uploaded file")
	}

	att, err := h.service.UploadTemp(c.Request().Context(), attachment.UploadRequest{
		Content:      data,
		FileName:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get(echo.HeaderContentType),
		RelationType: c.FormValue("relation_type"),
	})
	if err != nil {
		if h.security != nil && apperrors.IsValidation(err) {
			h.security.RejectedUpload(c.RealIP(),
				validator.SanitizeFilename(fileHeader.Filename),
				validator.SanitizeString(err.Error(), maxLoggedReason))
		}
		return response.Error(c, err)
	}

	return response.Created(c, att)
}

// Associate handles POST /api/attachments/associate
func (h *AttachmentHandler) Associate(c echo.Context) error {
	var req AssociateRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.AttachmentIDs) == 0 {
		return response.BadRequest(c, "attachment_ids is required")
	}

	owner, err := models.NewOwner(req.OwnerType, req.OwnerID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	associated, err := h.service.AssociateAttachments(c.Request().Context(), req.AttachmentIDs, owner, attachment.AssociateOptions{
		IsFeatured:     req.IsFeatured,
		IsContentImage: req.IsContentImage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, AssociateResponse{Associated: associated})
}

// Get handles GET /api/attachments/:id
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	att, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, att)
}

// Content handles GET /api/attachments/:id/content, the target of editor
// placeholder URLs. Temporary and associated files are both served.
func (h *AttachmentHandler) Content(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	att, file, err := h.service.Open(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Close()

	c.Response().Header().Set("Cache-Control", "private, no-cache")
	return streamFile(c, att, file, c.QueryParam("download") != "")
}

// Delete handles DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

// ListByOwner handles GET /api/owners/:owner_type/:owner_id/attachments
func (h *AttachmentHandler) ListByOwner(c echo.Context) error {
	owner, err := ownerParam(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	attachments, err := h.service.GetByEntity(c.Request().Context(), owner)
	if err != nil {
		return response.Error(c, err)
	}

	return response.List(c, attachments, len(attachments))
}

// DeleteByOwner handles DELETE /api/owners/:owner_type/:owner_id/attachments
func (h *AttachmentHandler) DeleteByOwner(c echo.Context) error {
	owner, err := ownerParam(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	deleted, err := h.service.DeleteFiles(c.Request().Context(), owner)
	if err != nil {
		h.logger.Error("failed to delete owner attachments",
			slog.String("owner", owner.Key()),
			slog.Int("deleted", deleted),
			slog.Any("error", err))
		return response.Error(c, err)
	}

	return response.Success(c, DeleteFilesResponse{Deleted: deleted})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func ownerParam(c echo.Context) (models.Owner, error) {
	id, err := parseID(c.Param("owner_id"))
	if err != nil {
		return models.Owner{}, fmt.Errorf("invalid owner ID")
	}
	return models.NewOwner(c.Param("owner_type"), id)
}

// streamFile copies file to the response with the attachment's metadata
func streamFile(c echo.Context, att *models.Attachment, file io.Reader, download bool) error {
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	if att.OriginalFileName != "" {
		name := validator.SanitizeFilename(att.OriginalFileName)
		if formatted := mime.FormatMediaType(disposition, map[string]string{"filename": name}); formatted != "" {
			disposition = formatted
		}
	}

	h := c.Response().Header()
	contentType := att.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	h.Set(echo.HeaderContentType, contentType)
	h.Set(echo.HeaderContentDisposition, disposition)
	h.Set("X-Content-Type-Options", "nosniff")
	if att.FileSize > 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(att.FileSize, 10))
	}

	c.Response().WriteHeader(http.StatusOK)
	if c.Request().Method == http.MethodHead {
		return nil
	}

	// Headers are sent; a copy failure can only abort the connection
	_, err := io.Copy(c.Response(), file)
	return err
}
