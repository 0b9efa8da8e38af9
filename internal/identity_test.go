package internal

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/testutil"
)

func newTestResolver(t *testing.T, srv *testutil.Server, refresher Refresher) (*IdentityResolver, *Storage) {
	t.Helper()
	cfg := newTestConfig(srv.URL)
	store := newTestStorage(t)
	return NewIdentityResolver(cfg, NewHTTPClient(cfg), store, refresher), store
}

func TestIdentityResolver_Mode(t *testing.T) {
	srv := testutil.NewServer(t)
	r, store := newTestResolver(t, srv, nil)

	mode, err := r.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeGuest, mode)

	require.NoError(t, store.SetAccessToken("tok"))
	mode, err = r.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeAuthenticated, mode)
}

func TestIdentityResolver_GuestBootstrapOnce(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathGuestNew, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guest_id":"g-1"}`))
	})
	r, store := newTestResolver(t, srv, nil)

	req, err := r.Resolve(context.Background(), TurnInput{Message: "hi"}, ContinuationKeys{})
	require.NoError(t, err)
	assert.Equal(t, ModeGuest, req.Mode)
	assert.Equal(t, srv.URL+pathOnboarding, req.URL)
	assert.Equal(t, srv.URL+pathGuestStream, req.FallbackURL)
	assert.Empty(t, req.Bearer)
	assert.Equal(t, "g-1", req.Body["guest_id"])
	assert.NotContains(t, req.Body, "response_id")

	stored, _ := store.GuestID()
	assert.Equal(t, "g-1", stored)

	req, err = r.Resolve(context.Background(), TurnInput{Message: "again"}, ContinuationKeys{ThreadID: "resp-1", ResponseID: "resp-2"})
	require.NoError(t, err)
	assert.Equal(t, "g-1", req.Body["guest_id"])
	assert.Equal(t, "resp-2", req.Body["response_id"])
	assert.NotContains(t, req.Body, "thread_id")
	assert.Len(t, srv.Requests(pathGuestNew), 1, "bootstrap must run once")
}

func TestIdentityResolver_GuestBootstrapFromHeader(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathGuestNew, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderGuestID, "g-header")
		w.WriteHeader(http.StatusOK)
	})
	r, _ := newTestResolver(t, srv, nil)

	assert.Equal(t, "g-header", r.EnsureGuestID(context.Background()))
}

func TestIdentityResolver_GuestBootstrapFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(pathGuestNew, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r, store := newTestResolver(t, srv, nil)

	req, err := r.Resolve(context.Background(), TurnInput{Message: "hi"}, ContinuationKeys{})
	require.NoError(t, err, "a failed bootstrap must not block the turn")
	assert.Equal(t, "", req.Body["guest_id"])

	stored, _ := store.GuestID()
	assert.Empty(t, stored)
}

func TestIdentityResolver_Authenticated(t *testing.T) {
	tests := []struct {
		name       string
		refresher  *fakeRefresher
		wantBearer string
	}{
		{name: "refreshed", refresher: &fakeRefresher{token: "fresh"}, wantBearer: "fresh"},
		{name: "refresh failed", refresher: &fakeRefresher{err: errors.New("offline")}, wantBearer: "stored"},
		{name: "nothing to refresh", refresher: &fakeRefresher{}, wantBearer: "stored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewServer(t)
			r, store := newTestResolver(t, srv, tt.refresher)
			require.NoError(t, store.SetCredentials(Credentials{AccessToken: "stored", UserID: "u-7"}))

			input := TurnInput{Message: "book a chef", ChefUsername: "ana", Topic: "catering", MealID: "42"}
			req, err := r.Resolve(context.Background(), input, ContinuationKeys{ThreadID: "thread-1", ResponseID: "resp-9"})
			require.NoError(t, err)

			assert.Equal(t, ModeAuthenticated, req.Mode)
			assert.Equal(t, srv.URL+pathStream, req.URL)
			assert.Empty(t, req.FallbackURL)
			assert.Equal(t, tt.wantBearer, req.Bearer)
			assert.Equal(t, map[string]any{
				"message":       "book a chef",
				"chef_username": "ana",
				"topic":         "catering",
				"meal_id":       "42",
				"user_id":       "u-7",
				"thread_id":     "thread-1",
			}, req.Body)
			assert.Empty(t, srv.Requests(pathGuestNew))
		})
	}
}

func TestIdentityResolver_ObserveGuestID(t *testing.T) {
	srv := testutil.NewServer(t)
	r, store := newTestResolver(t, srv, nil)

	r.ObserveGuestID("  ")
	id, _ := store.GuestID()
	assert.Empty(t, id)

	r.ObserveGuestID("g-echo")
	id, _ = store.GuestID()
	assert.Equal(t, "g-echo", id)
}

func TestIdentityResolver_ResetConversation(t *testing.T) {
	t.Run("guest", func(t *testing.T) {
		srv := testutil.NewServer(t)
		srv.Handle(pathGuestReset, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r, store := newTestResolver(t, srv, nil)
		require.NoError(t, store.SetGuestID("g-1"))

		require.NoError(t, r.ResetConversation(context.Background(), ContinuationKeys{ResponseID: "resp-2"}))
		reqs := srv.Requests(pathGuestReset)
		require.Len(t, reqs, 1)
		assert.Equal(t, map[string]interface{}{"guest_id": "g-1", "response_id": "resp-2"}, reqs[0].Body)
		assert.Empty(t, reqs[0].Header.Get("Authorization"))
	})

	t.Run("authenticated", func(t *testing.T) {
		srv := testutil.NewServer(t)
		srv.Handle(pathReset, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r, store := newTestResolver(t, srv, nil)
		require.NoError(t, store.SetAccessToken("tok"))

		require.NoError(t, r.ResetConversation(context.Background(), ContinuationKeys{ThreadID: "thread-1"}))
		reqs := srv.Requests(pathReset)
		require.Len(t, reqs, 1)
		assert.Equal(t, "thread-1", reqs[0].Body["thread_id"])
		assert.Equal(t, "Bearer tok", reqs[0].Header.Get("Authorization"))
	})

	t.Run("server error", func(t *testing.T) {
		srv := testutil.NewServer(t)
		r, _ := newTestResolver(t, srv, nil)

		err := r.ResetConversation(context.Background(), ContinuationKeys{})
		var serr *HTTPStatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, http.StatusNotFound, serr.Status)
	})
}
