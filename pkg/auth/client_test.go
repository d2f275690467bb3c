package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jackvaisey/user-service/pkg/config"
)

func TestIssueToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/tokens", r.URL.Path)

		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(42), req.UserID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: "jwt-for-42"})
	}))
	defer server.Close()

	client, err := NewClient(config.AuthConfig{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	token, err := client.IssueToken(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "jwt-for-42", token)
}

func TestIssueTokenSurfacesServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(config.AuthConfig{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.IssueToken(context.Background(), 42)
	require.Error(t, err)
}

func TestIssueTokenRejectsEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenResponse{})
	}))
	defer server.Close()

	client, err := NewClient(config.AuthConfig{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.IssueToken(context.Background(), 42)
	require.Error(t, err)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.AuthConfig{})
	require.Error(t, err)
}
