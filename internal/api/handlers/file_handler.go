package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/response"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
)

// FileHandler serves stored files under the public URL prefix
type FileHandler struct {
	service  attachment.Service
	security *logger.SecurityLogger
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(service attachment.Service, security *logger.SecurityLogger) *FileHandler {
	return &FileHandler{service: service, security: security}
}

// Serve handles GET <prefix>/*. Only paths recorded on a live attachment
// are served; anything else is a 404.
func (h *FileHandler) Serve(c echo.Context) error {
	filePath := c.Param("*")
	if filePath == "" {
		return response.NotFound(c, "file not found")
	}

	att, file, err := h.service.OpenPath(c.Request().Context(), filePath)
	if err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			if h.security != nil {
				h.security.PathTraversalAttempt(c.RealIP(), c.Request().URL.Path, filePath)
			}
			return response.NotFound(c, "file not found")
		}
		return response.Error(c, err)
	}
	defer file.Close()

	// Canonical names are unique, so their bytes never change
	if h.service.Layout().IsTemp(att.FilePath) {
		c.Response().Header().Set("Cache-Control", "private, no-cache")
	} else {
		c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	c.Response().Header().Set("ETag", `"`+strings.ReplaceAll(att.FilePath, `"`, "")+`"`)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == c.Response().Header().Get("ETag") {
		return c.NoContent(http.StatusNotModified)
	}

	return streamFile(c, att, file, false)
}
