package handlers_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/chatfloor/dispatch/internal/assignment"
	"github.com/chatfloor/dispatch/internal/handlers"
)

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPendingRouteMarksPersona(t *testing.T) {
	// The pending marker lives in memory, so the handler runs without a
	// database behind the service.
	assignments := assignment.NewService(nil, nil, nil, nil, nil, nil, nil, 0)
	e := echo.New()
	handlers.NewClientHandler(assignments, nil, slog.Default()).Register(e)

	rec := postJSON(e, "/clients/pending", `{"client_id":"c-1","persona_id":"p-1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, assignments.HasPendingMessages("p-1"))
	require.False(t, assignments.HasPendingMessages("p-2"))
}

func TestPendingRouteRejectsIncompletePayload(t *testing.T) {
	assignments := assignment.NewService(nil, nil, nil, nil, nil, nil, nil, 0)
	e := echo.New()
	handlers.NewClientHandler(assignments, nil, slog.Default()).Register(e)

	rec := postJSON(e, "/clients/pending", `{"client_id":"c-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, assignments.HasPendingMessages(""))
}

func TestExtendRouteRejectsBadMinutes(t *testing.T) {
	assignments := assignment.NewService(nil, nil, nil, nil, nil, nil, nil, 0)
	e := echo.New()
	handlers.NewAssignmentHandler(assignments, slog.Default()).Register(e)

	rec := postJSON(e, "/assignments/a-1/extend", `{"minutes":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForceReleaseRouteRequiresResource(t *testing.T) {
	e := echo.New()
	handlers.NewLockHandler(nil, slog.Default()).Register(e)

	rec := postJSON(e, "/locks/force-release", `{"reason":"stuck"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
