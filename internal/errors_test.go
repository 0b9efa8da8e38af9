package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestStorageError(t *testing.T) {
	baseErr := errors.New("disk full")
	err := &StorageError{
		Path: "identity:guestId",
		Op:   "write",
		Err:  baseErr,
	}

	want := "storage error: write identity:guestId: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, baseErr) {
		t.Error("errors.Is() did not reach the wrapped error")
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("bad yaml")
	err := &ConfigError{Path: "/tmp/config.yaml", Err: baseErr}

	if !strings.Contains(err.Error(), "/tmp/config.yaml") {
		t.Errorf("Error() = %q, missing path", err.Error())
	}
	if errors.Unwrap(err) != baseErr {
		t.Error("Unwrap() did not return the wrapped error")
	}
}

func TestHTTPStatusError(t *testing.T) {
	tests := []struct {
		name string
		err  *HTTPStatusError
		want string
	}{
		{
			name: "without body",
			err:  &HTTPStatusError{URL: "http://x/stream/", Status: 502},
			want: "http 502 from http://x/stream/",
		},
		{
			name: "with body",
			err:  &HTTPStatusError{URL: "http://x/stream/", Status: 500, BodySnippet: "boom"},
			want: "http 500 from http://x/stream/: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserFacingError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unauthorized",
			err:  &UnauthorizedError{URL: "http://x"},
			want: "Your session has expired. Please sign in again.",
		},
		{
			name: "protocol",
			err:  &ProtocolError{Message: "quota exceeded"},
			want: "quota exceeded",
		},
		{
			name: "idle timeout",
			err:  ErrIdleTimeout,
			want: "The assistant stopped responding. Please try again.",
		},
		{
			name: "status",
			err:  &HTTPStatusError{Status: 503},
			want: "The assistant is unavailable right now (HTTP 503).",
		},
		{
			name: "other",
			err:  errors.New("dial tcp: refused"),
			want: "Could not reach the assistant: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserFacingError(tt.err); got != tt.want {
				t.Errorf("UserFacingError() = %q, want %q", got, tt.want)
			}
		})
	}
}
