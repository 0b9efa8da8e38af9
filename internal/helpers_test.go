package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Paths served by testutil.Server in transport, identity and session tests
const (
	pathStream      = "/stream/"
	pathOnboarding  = "/onboarding/stream/"
	pathGuestStream = "/guest/stream/"
	pathGuestNew    = "/guest/new/"
	pathReset       = "/reset/"
	pathGuestReset  = "/guest/reset/"
	pathRefresh     = "/refresh/"
)

func newTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Endpoints: Endpoints{
			Stream:           pathStream,
			OnboardingStream: pathOnboarding,
			GuestStream:      pathGuestStream,
			GuestNew:         pathGuestNew,
			Reset:            pathReset,
			GuestReset:       pathGuestReset,
			Refresh:          pathRefresh,
			History:          "/history/{thread_id}/",
		},
		IdleTimeout:    5 * time.Second,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "chef-chat-test",
	}
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := OpenStorage(":memory:")
	if err != nil {
		t.Fatalf("OpenStorage() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeRefresher struct {
	token string
	err   error
	calls int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.token, f.err
}

func (f *fakeRefresher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type recordedNotice struct {
	Level   NoticeLevel
	Message string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *recordingNotifier) Notify(level NoticeLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{Level: level, Message: message})
}

func (n *recordingNotifier) Notices() []recordedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedNotice(nil), n.notices...)
}
