package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store/memory"
)

type testServer struct {
	*httptest.Server
	hub   *core.Hub
	store *memory.DB
	auth  *auth.Service
}

// startTestServer serves the full router backed by an in-memory store.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Session.IdleTimeout = 0

	st := memory.New()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("testsecret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
	hub := core.NewHub(authService, st, core.Options{OutboundBuffer: 16}, &logger)

	ts := httptest.NewServer(NewRouter(hub, authService, st, &cfg, &logger))
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, hub: hub, store: st, auth: authService}
}

func (ts *testServer) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testServer) get(t *testing.T, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// registerToken registers a user over the API and returns the issued token.
func (ts *testServer) registerToken(t *testing.T, user, pass string) string {
	t.Helper()
	resp := ts.postJSON(t, "/api/register", "", CredentialsRequest{Username: user, Password: pass})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[AuthResponse](t, resp).Token
}
