package tui

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/testutil"
)

type noRefresh struct{}

func (noRefresh) Refresh(ctx context.Context) (string, error) { return "", nil }

type notices struct {
	mu   sync.Mutex
	list []string
}

func (n *notices) Notify(level internal.NoticeLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, message)
}

func (n *notices) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.list...)
}

// newGuestSession starts a guest session against a server whose guest
// stream answers every turn with reply
func newGuestSession(t *testing.T, notifier internal.Notifier, reply ...interface{}) (*internal.ChatSession, *testutil.Server) {
	t.Helper()
	srv := testutil.NewServer(t)
	cfg := internal.DefaultConfig()
	cfg.BaseURL = srv.URL
	srv.Handle(cfg.Endpoints.OnboardingStream, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSSE(w, reply...)
	})
	// guest bootstrap and guest reset share this endpoint
	srv.Handle(cfg.Endpoints.GuestNew, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guest_id":"guest-tui"}`))
	})

	store, err := internal.OpenStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	session, err := internal.NewChatSession(internal.SessionOptions{
		Config:    cfg,
		Store:     store,
		Refresher: noRefresh{},
		Notifier:  notifier,
	})
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session, srv
}
