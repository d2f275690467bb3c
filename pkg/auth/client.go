package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackvaisey/user-service/pkg/config"
)

// Client calls the remote auth service that owns token issuance and
// validation. This service never mints or parses tokens itself.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.AuthConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("auth base URL is required")
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type tokenRequest struct {
	UserID int64 `json:"userId"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// IssueToken asks the auth service for a session token for userID.
func (c *Client) IssueToken(ctx context.Context, userID int64) (string, error) {
	body, err := json.Marshal(tokenRequest{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/tokens", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("auth service returned an empty token")
	}
	return payload.Token, nil
}
