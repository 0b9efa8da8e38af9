package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnInProgress is returned when a turn is submitted while the
	// previous assistant message is still open.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrIdleTimeout cancels a stream that delivered no bytes for longer
	// than the configured idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrNoToken means no access credential is stored.
	ErrNoToken = errors.New("no access token stored")
)

// StorageError represents errors accessing the local client store
type StorageError struct {
	Path string
	Op   string // "open", "read", "write", "migrate"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents errors loading or validating configuration
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-2xx response that survived every retry
type HTTPStatusError struct {
	URL         string
	Status      int
	BodySnippet string
}

func (e *HTTPStatusError) Error() string {
	if e.BodySnippet == "" {
		return fmt.Sprintf("http %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("http %d from %s: %s", e.Status, e.URL, e.BodySnippet)
}

// UnauthorizedError is a 401 that persisted after the single refresh-retry
type UnauthorizedError struct {
	URL string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s rejected the refreshed credential", e.URL)
}

// ProtocolError is an explicit error event sent by the server mid-stream
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("stream error: %s", e.Message)
}
