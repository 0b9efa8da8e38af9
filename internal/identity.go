package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Mode is the identity a turn runs under
type Mode string

const (
	ModeAuthenticated Mode = "authenticated"
	ModeGuest         Mode = "guest"
)

// TurnInput is what the user submits for one turn
type TurnInput struct {
	Message      string
	ChefUsername string
	Topic        string
	MealID       string
}

// IdentityResolver decides the target endpoint and credentials for a turn
type IdentityResolver struct {
	cfg       *Config
	client    *http.Client
	store     *Storage
	refresher Refresher
}

// NewIdentityResolver creates an IdentityResolver. refresher may be nil.
func NewIdentityResolver(cfg *Config, client *http.Client, store *Storage, refresher Refresher) *IdentityResolver {
	return &IdentityResolver{cfg: cfg, client: client, store: store, refresher: refresher}
}

// Mode reports authenticated when an access token is stored
func (r *IdentityResolver) Mode() (Mode, error) {
	creds, err := r.store.Credentials()
	if err != nil {
		return ModeGuest, err
	}
	if creds.AccessToken != "" {
		return ModeAuthenticated, nil
	}
	return ModeGuest, nil
}

// Resolve builds the stream request for the next turn. Authenticated turns
// refresh the credential first (best-effort) and thread on thread_id; guest
// turns ensure a guest id and thread on response_id.
func (r *IdentityResolver) Resolve(ctx context.Context, input TurnInput, keys ContinuationKeys) (*StreamRequest, error) {
	creds, err := r.store.Credentials()
	if err != nil {
		return nil, err
	}

	body := map[string]any{"message": input.Message}
	if input.ChefUsername != "" {
		body["chef_username"] = input.ChefUsername
	}
	if input.Topic != "" {
		body["topic"] = input.Topic
	}
	if input.MealID != "" {
		body["meal_id"] = input.MealID
	}

	if creds.AccessToken != "" {
		token := creds.AccessToken
		if r.refresher != nil {
			fresh, err := r.refresher.Refresh(ctx)
			switch {
			case err != nil:
				LogWarn("Silent credential refresh failed, using stored token: %v", err)
			case fresh != "":
				token = fresh
			}
		}
		if creds.UserID != "" {
			body["user_id"] = creds.UserID
		}
		if keys.ThreadID != "" {
			body["thread_id"] = keys.ThreadID
		}
		return &StreamRequest{
			Mode:   ModeAuthenticated,
			URL:    r.cfg.URL(r.cfg.Endpoints.Stream),
			Body:   body,
			Bearer: token,
		}, nil
	}

	body["guest_id"] = r.EnsureGuestID(ctx)
	if keys.ResponseID != "" {
		body["response_id"] = keys.ResponseID
	}
	return &StreamRequest{
		Mode:        ModeGuest,
		URL:         r.cfg.URL(r.cfg.Endpoints.OnboardingStream),
		FallbackURL: r.cfg.URL(r.cfg.Endpoints.GuestStream),
		Body:        body,
	}, nil
}

// EnsureGuestID returns the stored guest id, bootstrapping one through the
// new-guest-conversation endpoint when none exists. Failures are logged and
// yield "" so the turn still goes out.
func (r *IdentityResolver) EnsureGuestID(ctx context.Context) string {
	id, err := r.store.GuestID()
	if err != nil {
		LogWarn("Failed to read guest id: %v", err)
	}
	if id != "" {
		return id
	}

	id, err = r.bootstrapGuest(ctx)
	if err != nil {
		LogWarn("Guest id bootstrap failed, continuing without one: %v", err)
		return ""
	}
	r.ObserveGuestID(id)
	return id
}

func (r *IdentityResolver) bootstrapGuest(ctx context.Context) (string, error) {
	url := r.cfg.URL(r.cfg.Endpoints.GuestNew)
	if url == "" {
		return "", fmt.Errorf("no guest_new endpoint configured")
	}
	resp, err := r.postJSON(ctx, url, map[string]any{}, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPStatusError{URL: url, Status: resp.StatusCode}
	}

	var out struct {
		GuestID string `json:"guest_id"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			LogDebug("Guest bootstrap body is not JSON: %v", err)
		}
	}
	id := strings.TrimSpace(out.GuestID)
	if id == "" {
		id = strings.TrimSpace(resp.Header.Get(HeaderGuestID))
	}
	if id == "" {
		return "", fmt.Errorf("guest bootstrap returned no guest id")
	}
	return id, nil
}

// ObserveGuestID persists a guest id seen on any response when it differs
// from the stored one.
func (r *IdentityResolver) ObserveGuestID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	current, err := r.store.GuestID()
	if err == nil && current == id {
		return
	}
	if err := r.store.SetGuestID(id); err != nil {
		LogWarn("Failed to persist guest id: %v", err)
		return
	}
	LogDebug("Guest id set to %s", id)
}

// ResetConversation asks the server to start a new conversation: the
// authenticated variant for token holders, the guest variant otherwise.
func (r *IdentityResolver) ResetConversation(ctx context.Context, keys ContinuationKeys) error {
	creds, err := r.store.Credentials()
	if err != nil {
		return err
	}

	var url, bearer string
	body := map[string]any{}
	if creds.AccessToken != "" {
		url = r.cfg.URL(r.cfg.Endpoints.Reset)
		bearer = creds.AccessToken
		if keys.ThreadID != "" {
			body["thread_id"] = keys.ThreadID
		}
	} else {
		url = r.cfg.URL(r.cfg.Endpoints.GuestReset)
		guestID, _ := r.store.GuestID()
		body["guest_id"] = guestID
		if keys.ResponseID != "" {
			body["response_id"] = keys.ResponseID
		}
	}
	if url == "" {
		return nil
	}

	resp, err := r.postJSON(ctx, url, body, bearer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	r.ObserveGuestID(resp.Header.Get(HeaderGuestID))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPStatusError{URL: url, Status: resp.StatusCode, BodySnippet: string(bytes.TrimSpace(raw))}
	}
	return nil
}

// Bearer returns the stored access token, or "" for guests
func (r *IdentityResolver) Bearer() string {
	creds, err := r.store.Credentials()
	if err != nil {
		return ""
	}
	return creds.AccessToken
}

func (r *IdentityResolver) postJSON(ctx context.Context, url string, body any, bearer string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http post %s: %w", url, err)
	}
	return resp, nil
}
