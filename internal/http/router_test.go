package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/observer-pro/observer-back/internal/handlers"
	"github.com/observer-pro/observer-back/internal/repo"
	"github.com/observer-pro/observer-back/internal/service"
)

func newTestRouter(t *testing.T, origins []string) http.Handler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	users := repo.NewMemoryUserRepo()
	hub := handlers.NewHub(logger)
	svc := service.NewClassroomService(users, repo.NewMemoryRoomRepo(users), hub, service.Options{Logger: logger})
	t.Cleanup(svc.Close)
	return NewRouter(handlers.NewWebSocketHandler(svc, hub, 1<<20, logger), handlers.NewStatsHandler(svc), origins)
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/healthz", http.StatusOK},
		{"/api/v1/rooms", http.StatusOK},
		{"/roomstats/1000", http.StatusNotFound},
		{"/roomstats/abc", http.StatusBadRequest},
		{"/ws", http.StatusBadRequest}, // websocket以外のリクエスト
		{"/api/v1/room/create", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	router := newTestRouter(t, []string{"https://observer.dev"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	req.Header.Set("Origin", "https://observer.dev")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "https://observer.dev", rec.Header().Get("Access-Control-Allow-Origin"))
}
