package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// TokenRefresher exchanges the stored refresh token for a new access token
// and saves it. Without a refresh token it is a no-op that returns the
// current access token.
type TokenRefresher struct {
	client *http.Client
	url    string
	store  *Storage

	mu sync.Mutex
}

// NewTokenRefresher creates a TokenRefresher posting to url
func NewTokenRefresher(client *http.Client, url string, store *Storage) *TokenRefresher {
	return &TokenRefresher{client: client, url: url, store: store}
}

// Refresh implements Refresher
func (r *TokenRefresher) Refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.store.Credentials()
	if err != nil {
		return "", err
	}
	if creds.RefreshToken == "" || r.url == "" {
		return creds.AccessToken, nil
	}

	body, _ := json.Marshal(map[string]string{"refresh": creds.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &HTTPStatusError{URL: r.url, Status: resp.StatusCode, BodySnippet: string(bytes.TrimSpace(raw))}
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Access == "" {
		return "", fmt.Errorf("refresh response without access token")
	}

	if err := r.store.SetCredentials(Credentials{AccessToken: out.Access, RefreshToken: out.Refresh}); err != nil {
		return "", err
	}
	LogDebug("Access token refreshed")
	return out.Access, nil
}
