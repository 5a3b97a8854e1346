package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
)

func setupTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func TestSuccess_Returns200WithData(t *testing.T) {
	c, rec := setupTestContext()

	err := Success(c, map[string]string{"key": "value"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
}

func TestCreated_Returns201WithData(t *testing.T) {
	c, rec := setupTestContext()

	err := Created(c, map[string]int{"id": 1})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAccepted_Returns202(t *testing.T) {
	c, rec := setupTestContext()

	err := Accepted(c, "sweep scheduled")

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sweep scheduled", resp.Message)
}

func TestNoContent_Returns204(t *testing.T) {
	c, rec := setupTestContext()

	require.NoError(t, NoContent(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestList_ReturnsDataWithTotal(t *testing.T) {
	c, rec := setupTestContext()

	require.NoError(t, List(c, []string{"a", "b"}, 2))

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Meta.Total)
}

func TestError_ReturnsCorrectStatusCode(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         apperrors.NewValidationError("file exceeds %s", "10 MiB"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeInvalidInput,
			wantMessage: "file exceeds 10 MiB",
		},
		{
			name:        "not found",
			err:         apperrors.NewNotFoundError("attachment %d not found", 9),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperrors.CodeNotFound,
			wantMessage: "attachment 9 not found",
		},
		{
			name:        "conflict",
			err:         apperrors.NewConflictError("owner busy"),
			wantStatus:  http.StatusConflict,
			wantCode:    apperrors.CodeConflict,
			wantMessage: "owner busy",
		},
		{
			name:        "io",
			err:         apperrors.NewIOError("failed to save file", errors.New("disk full")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    apperrors.CodeIOError,
			wantMessage: "failed to save file: disk full",
		},
		{
			name:        "parse",
			err:         apperrors.NewParseError(errors.New("eof")),
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeParseError,
			wantMessage: "failed to parse content: eof",
		},
		{
			name:        "wrapped sentinel",
			err:         fmt.Errorf("lookup: %w", apperrors.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperrors.CodeNotFound,
			wantMessage: "lookup: resource not found",
		},
		{
			name:        "unknown error hides cause",
			err:         errors.New("pq: password authentication failed"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    apperrors.CodeInternalError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := setupTestContext()

			require.NoError(t, Error(c, tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Error)
		})
	}
}

func TestBadRequest_Returns400(t *testing.T) {
	c, rec := setupTestContext()

	require.NoError(t, BadRequest(c, "invalid input"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid input", resp.Error)
	assert.Equal(t, apperrors.CodeInvalidInput, resp.Code)
}

func TestConflict_Returns409(t *testing.T) {
	c, rec := setupTestContext()

	require.NoError(t, Conflict(c, "sweep already running"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetHTTPStatus_MapsCodesCorrectly(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeConflict, http.StatusConflict},
		{apperrors.CodeInvalidInput, http.StatusBadRequest},
		{apperrors.CodeParseError, http.StatusBadRequest},
		{apperrors.CodeIOError, http.StatusServiceUnavailable},
		{apperrors.CodeUnauthorized, http.StatusUnauthorized},
		{apperrors.CodeForbidden, http.StatusForbidden},
		{apperrors.CodeInternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, getHTTPStatus(tt.code))
		})
	}
}
