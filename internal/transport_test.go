package internal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/testutil"
)

func newTestTransport(srv *testutil.Server, refresher Refresher) (*Transport, *Config) {
	cfg := newTestConfig(srv.URL)
	return NewTransport(NewHTTPClient(cfg), refresher, cfg), cfg
}

func readAll(t *testing.T, resp *StreamResponse) (string, error) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

func TestTransport_Open(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderGuestID, "g-echo")
		testutil.WriteSSE(w, testutil.Delta("Hi"), testutil.Completed())
	})
	tr, cfg := newTestTransport(srv, nil)

	resp, err := tr.Open(context.Background(), &StreamRequest{
		URL:    cfg.URL(pathStream),
		Body:   map[string]any{"message": "hello"},
		Bearer: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "g-echo", resp.GuestID)
	assert.Equal(t, cfg.URL(pathStream), resp.URL)

	body, err := readAll(t, resp)
	require.NoError(t, err)
	assert.Equal(t, testutil.SSEBody(testutil.Delta("Hi"), testutil.Completed()), body)

	reqs := srv.Requests(pathStream)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "Bearer tok", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "text/event-stream", reqs[0].Header.Get("Accept"))
	assert.Equal(t, "chef-chat-test", reqs[0].Header.Get("User-Agent"))
	assert.Equal(t, "hello", reqs[0].Body["message"])
}

func TestTransport_UnauthorizedRetriesOnce(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		testutil.WriteSSE(w, testutil.Completed())
	})
	refresher := &fakeRefresher{token: "fresh"}
	tr, cfg := newTestTransport(srv, refresher)

	resp, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathStream), Bearer: "stale"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1, refresher.Calls())
	reqs := srv.Requests(pathStream)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer stale", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer fresh", reqs[1].Header.Get("Authorization"))
}

func TestTransport_UnauthorizedTwice(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	tests := []struct {
		name      string
		refresher *fakeRefresher
		wantReqs  int
	}{
		{name: "second 401", refresher: &fakeRefresher{token: "fresh"}, wantReqs: 2},
		{name: "refresh fails", refresher: &fakeRefresher{err: errors.New("refresh rejected")}, wantReqs: 1},
		{name: "nothing to refresh with", refresher: &fakeRefresher{}, wantReqs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(srv.Requests(pathStream))
			tr, cfg := newTestTransport(srv, tt.refresher)

			_, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathStream), Bearer: "stale"})
			var uerr *UnauthorizedError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, 1, tt.refresher.Calls())
			assert.Len(t, srv.Requests(pathStream), before+tt.wantReqs)
		})
	}
}

func TestTransport_GuestUnauthorizedIsNotRefreshed(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathOnboarding, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	refresher := &fakeRefresher{token: "fresh"}
	tr, cfg := newTestTransport(srv, refresher)

	_, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathOnboarding)})
	var serr *HTTPStatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.Status)
	assert.Zero(t, refresher.Calls())
}

func TestTransport_Fallback(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := testutil.NewServer(t)
			srv.Handle(pathOnboarding, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})
			srv.Handle(pathGuestStream, func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteSSE(w, testutil.Completed())
			})
			tr, cfg := newTestTransport(srv, nil)

			resp, err := tr.Open(context.Background(), &StreamRequest{
				URL:         cfg.URL(pathOnboarding),
				FallbackURL: cfg.URL(pathGuestStream),
				Body:        map[string]any{"message": "hi", "guest_id": "g-1"},
			})
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, cfg.URL(pathGuestStream), resp.URL)
			fallback := srv.Requests(pathGuestStream)
			require.Len(t, fallback, 1)
			assert.Equal(t, "g-1", fallback[0].Body["guest_id"])
		})
	}
}

func TestTransport_StatusErrors(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	tr, cfg := newTestTransport(srv, nil)

	t.Run("server error", func(t *testing.T) {
		_, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathStream), FallbackURL: cfg.URL(pathGuestStream)})
		var serr *HTTPStatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, http.StatusInternalServerError, serr.Status)
		assert.Equal(t, "boom", serr.BodySnippet)
		assert.Empty(t, srv.Requests(pathGuestStream), "5xx must not use the fallback")
	})

	t.Run("not found without fallback", func(t *testing.T) {
		_, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL("/missing/")})
		var serr *HTTPStatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, http.StatusNotFound, serr.Status)
	})
}

func TestTransport_GuestIDFromEveryResponse(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathOnboarding, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderGuestID, "g-primary")
		w.WriteHeader(http.StatusNotFound)
	})
	srv.Handle(pathGuestStream, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSSE(w, testutil.Completed())
	})
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderGuestID, "g-failed")
		http.Error(w, "boom", http.StatusBadGateway)
	})
	tr, cfg := newTestTransport(srv, nil)
	var seen []string
	tr.ObserveGuestIDs(func(id string) { seen = append(seen, id) })

	resp, err := tr.Open(context.Background(), &StreamRequest{
		URL:         cfg.URL(pathOnboarding),
		FallbackURL: cfg.URL(pathGuestStream),
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "g-primary", resp.GuestID)

	_, err = tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathStream)})
	var serr *HTTPStatusError
	require.ErrorAs(t, err, &serr)

	assert.Equal(t, []string{"g-primary", "g-failed"}, seen)
}

func TestTransport_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSSE(w, testutil.Delta("first"))
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	tr, cfg := newTestTransport(srv, nil)
	tr.idleTimeout = 100 * time.Millisecond

	resp, err := tr.Open(context.Background(), &StreamRequest{URL: cfg.URL(pathStream)})
	require.NoError(t, err)

	start := time.Now()
	body, err := readAll(t, resp)
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.Contains(t, body, "first")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestTransport_Cancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv := testutil.NewServer(t)
	srv.Handle(pathStream, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSSE(w, testutil.Delta("first"))
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	tr, cfg := newTestTransport(srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := tr.Open(ctx, &StreamRequest{URL: cfg.URL(pathStream)})
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)
	_, err = readAll(t, resp)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIdleTimeout)
}
