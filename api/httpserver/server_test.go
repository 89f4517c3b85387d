package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type pingService struct{}

func (pingService) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestBaseServerDrain(t *testing.T) {
	srv, err := New(&HTTPServerConfig{ListenAddr: "127.0.0.1:0"}, pingService{})
	require.NoError(t, err)
	h := srv.Handler()

	code, body := get(t, h, "/livez")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"alive"}`, body)

	code, body = get(t, h, "/ping")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pong", body)

	code, _ = get(t, h, "/drain")
	require.Equal(t, http.StatusOK, code)
	require.False(t, srv.Ready())

	code, body = get(t, h, "/drain")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"already draining"}`, body)

	code, _ = get(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = get(t, h, "/ping")
	require.Equal(t, http.StatusServiceUnavailable, code)

	// Liveness is unaffected by draining.
	code, _ = get(t, h, "/livez")
	require.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/undrain")
	require.Equal(t, http.StatusOK, code)
	require.True(t, srv.Ready())
	code, _ = get(t, h, "/ping")
	require.Equal(t, http.StatusOK, code)
}

func TestBaseServerMiddlewares(t *testing.T) {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "1")
			next.ServeHTTP(w, r)
		})
	}
	srv, err := New(&HTTPServerConfig{Middlewares: []func(http.Handler) http.Handler{tag}}, pingService{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, "1", rec.Header().Get("X-Test"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	require.Equal(t, "1", rec.Header().Get("X-Test"))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
