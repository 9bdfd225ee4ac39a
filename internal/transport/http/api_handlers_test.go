package http

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ts := startTestServer(t)

	resp := ts.get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := startTestServer(t)

	token := ts.registerToken(t, "alice", "secret")
	claims, err := ts.auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	resp := ts.postJSON(t, "/api/register", "", CredentialsRequest{Username: "alice", Password: "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.postJSON(t, "/api/register", "", CredentialsRequest{Username: "bad name", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.postJSON(t, "/api/register", "", map[string]string{"username": "carol"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.postJSON(t, "/api/login", "", CredentialsRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.postJSON(t, "/api/login", "", CredentialsRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decodeJSON[AuthResponse](t, resp).Token)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := startTestServer(t)

	for _, path := range []string{"/api/online", "/api/stats", "/api/messages"} {
		resp := ts.get(t, path, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		resp = ts.get(t, path, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/online", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMessagesListing(t *testing.T) {
	ts := startTestServer(t)
	token := ts.registerToken(t, "alice", "secret")

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := ts.store.CreateMessage(ctx, "alice", text)
		require.NoError(t, err)
	}
	require.NoError(t, ts.store.UpdateMessage(ctx, 2, "[deleted]", true))

	resp := ts.get(t, "/api/messages", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeJSON[MessagesResponse](t, resp)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "one", page.Messages[0].Text)
	assert.True(t, page.Messages[1].Deleted)

	resp = ts.get(t, "/api/messages?limit=1&before=3", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decodeJSON[MessagesResponse](t, resp)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, int64(2), page.Messages[0].ID)

	resp = ts.get(t, "/api/messages?limit=zero", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.get(t, "/api/messages?before=-1", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
