package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// HeaderGuestID may assign or echo a guest identifier on any response
const HeaderGuestID = "X-Guest-ID"

// Refresher renews the access credential. Implementations are best-effort
// and may return "" when there is nothing to refresh with.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// StreamRequest is one resolved streaming call
type StreamRequest struct {
	Mode        Mode
	URL         string
	FallbackURL string // tried once on 404/405
	Body        map[string]any
	Bearer      string
}

// StreamResponse is an open event stream
type StreamResponse struct {
	Body    io.ReadCloser
	GuestID string // last X-Guest-ID seen during Open, if any
	URL     string // the URL that answered
}

// Transport executes streaming request/response cycles
type Transport struct {
	client      *http.Client
	refresher   Refresher
	idleTimeout time.Duration
	userAgent   string
	onGuestID   func(string)
}

// NewHTTPClient returns a client with a cookie jar, so session cookies carry
// across turns, and a response-header timeout. There is no overall timeout:
// streams live as long as the server keeps sending.
func NewHTTPClient(cfg *Config) *http.Client {
	jar, _ := cookiejar.New(nil)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.RequestTimeout
	return &http.Client{Jar: jar, Transport: transport}
}

// NewTransport creates a Transport. refresher may be nil.
func NewTransport(client *http.Client, refresher Refresher, cfg *Config) *Transport {
	return &Transport{
		client:      client,
		refresher:   refresher,
		idleTimeout: cfg.IdleTimeout,
		userAgent:   cfg.UserAgent,
	}
}

// ObserveGuestIDs registers fn to receive the X-Guest-ID header of every
// response Open reads, including retried, fallen-back and failed ones.
func (t *Transport) ObserveGuestIDs(fn func(string)) {
	t.onGuestID = fn
}

// Open posts req and returns the event stream.
//
// A 401 on a request with a bearer triggers exactly one refresh and one
// retry; a second 401 is an *UnauthorizedError. A 404 or 405 with a
// FallbackURL retries once against it. Any other non-2xx is an
// *HTTPStatusError. The caller must close the returned body.
func (t *Transport) Open(ctx context.Context, req *StreamRequest) (*StreamResponse, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	url := req.URL
	var guestID string
	post := func(url, bearer string) (*http.Response, error) {
		resp, err := t.post(streamCtx, url, payload, bearer)
		if err != nil {
			return nil, err
		}
		if id := strings.TrimSpace(resp.Header.Get(HeaderGuestID)); id != "" {
			guestID = id
			if t.onGuestID != nil {
				t.onGuestID(id)
			}
		}
		return resp, nil
	}

	resp, err := post(url, req.Bearer)
	if err != nil {
		cancel(nil)
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && req.Bearer != "" && t.refresher != nil {
		drain(resp)
		LogDebug("Stream request unauthorized, refreshing credential once")
		token, rerr := t.refresher.Refresh(ctx)
		if rerr != nil || token == "" {
			cancel(nil)
			if rerr != nil {
				LogWarn("Credential refresh failed: %v", rerr)
			}
			return nil, &UnauthorizedError{URL: url}
		}
		req.Bearer = token
		if resp, err = post(url, token); err != nil {
			cancel(nil)
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			cancel(nil)
			return nil, &UnauthorizedError{URL: url}
		}
	}

	if (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed) && req.FallbackURL != "" {
		drain(resp)
		LogDebug("Stream endpoint %s returned %d, falling back to %s", url, resp.StatusCode, req.FallbackURL)
		url = req.FallbackURL
		if resp, err = post(url, req.Bearer); err != nil {
			cancel(nil)
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel(nil)
		return nil, &HTTPStatusError{URL: url, Status: resp.StatusCode, BodySnippet: strings.TrimSpace(string(raw))}
	}

	return &StreamResponse{
		Body:    newIdleBody(streamCtx, resp.Body, t.idleTimeout, cancel),
		GuestID: guestID,
		URL:     url,
	}, nil
}

func (t *Transport) post(ctx context.Context, url string, payload []byte, bearer string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http post %s: %w", url, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// idleBody cancels the stream when no bytes arrive within the idle timeout.
// Reads after that fail with ErrIdleTimeout.
type idleBody struct {
	ctx    context.Context
	body   io.ReadCloser
	idle   time.Duration
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	timer *time.Timer
}

func newIdleBody(ctx context.Context, body io.ReadCloser, idle time.Duration, cancel context.CancelCauseFunc) *idleBody {
	b := &idleBody{ctx: ctx, body: body, idle: idle, cancel: cancel}
	if idle > 0 {
		b.timer = time.AfterFunc(idle, func() { cancel(ErrIdleTimeout) })
	}
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.mu.Lock()
		if b.timer != nil {
			b.timer.Reset(b.idle)
		}
		b.mu.Unlock()
	}
	if err != nil && err != io.EOF && errors.Is(context.Cause(b.ctx), ErrIdleTimeout) {
		return n, ErrIdleTimeout
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	err := b.body.Close()
	b.cancel(nil)
	return err
}
