package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/response"
	"github.com/welldanyogia/webrana-cms-backend/internal/retention"
)

// Sweeper is the part of the retention scheduler the API drives
type Sweeper interface {
	ForceSweep() bool
	RunOnce(ctx context.Context) (retention.Report, error)
	LastReport() (retention.Report, bool)
}

// RetentionHandler triggers and reports retention sweeps
type RetentionHandler struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewRetentionHandler creates a new RetentionHandler
func NewRetentionHandler(sweeper Sweeper, logger *slog.Logger) *RetentionHandler {
	return &RetentionHandler{sweeper: sweeper, logger: logger}
}

// Sweep handles POST /api/retention/sweep. A running scheduler is woken
// up; otherwise the sweep runs inline and its report is returned.
func (h *RetentionHandler) Sweep(c echo.Context) error {
	if h.sweeper.ForceSweep() {
		return response.Accepted(c, "sweep scheduled")
	}

	report, err := h.sweeper.RunOnce(c.Request().Context())
	if errors.Is(err, retention.ErrSweepRunning) {
		return response.Conflict(c, err.Error())
	}
	if err != nil {
		h.logger.Error("manual retention sweep failed", slog.Any("error", err))
		return response.Error(c, err)
	}

	return response.Success(c, report)
}

// Report handles GET /api/retention/report
func (h *RetentionHandler) Report(c echo.Context) error {
	report, ok := h.sweeper.LastReport()
	if !ok {
		return response.NotFound(c, "no sweep has completed yet")
	}
	return response.Success(c, report)
}
