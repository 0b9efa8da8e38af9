package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Key layout of the clientKV table
const (
	keyGuestID       = "identity:guestId"
	keyAccessToken   = "auth:accessToken"
	keyRefreshToken  = "auth:refreshToken"
	keyUserID        = "auth:userId"
	prefixKeys       = "continuation:"
	prefixTranscript = "transcript:"
)

// Storage is the durable client-side store: guest identity, credentials,
// continuation keys and transcripts. It survives process restarts.
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// OpenStorage opens the store file at path
func OpenStorage(path string) (*Storage, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewStorage(db), nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM clientKV WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Path: key, Op: "read", Err: err}
	}
	return value, nil
}

func (s *Storage) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO clientKV (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return &StorageError{Path: key, Op: "write", Err: err}
	}
	return nil
}

func (s *Storage) delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM clientKV WHERE key = ?", key); err != nil {
		return &StorageError{Path: key, Op: "write", Err: err}
	}
	return nil
}

// GuestID returns the persisted guest identifier, or "" if none
func (s *Storage) GuestID() (string, error) {
	return s.get(keyGuestID)
}

// SetGuestID persists the guest identifier
func (s *Storage) SetGuestID(id string) error {
	return s.put(keyGuestID, id)
}

// ForgetGuestID drops the guest identifier
func (s *Storage) ForgetGuestID() error {
	return s.delete(keyGuestID)
}

// Credentials is the locally stored access credential
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Credentials returns the stored credentials; AccessToken is "" when the
// client runs as a guest.
func (s *Storage) Credentials() (Credentials, error) {
	var c Credentials
	var err error
	if c.AccessToken, err = s.get(keyAccessToken); err != nil {
		return c, err
	}
	if c.RefreshToken, err = s.get(keyRefreshToken); err != nil {
		return c, err
	}
	if c.UserID, err = s.get(keyUserID); err != nil {
		return c, err
	}
	return c, nil
}

// SetCredentials stores credentials. Empty fields are left unchanged.
func (s *Storage) SetCredentials(c Credentials) error {
	for key, value := range map[string]string{
		keyAccessToken:  c.AccessToken,
		keyRefreshToken: c.RefreshToken,
		keyUserID:       c.UserID,
	} {
		if value == "" {
			continue
		}
		if err := s.put(key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetAccessToken replaces only the access token
func (s *Storage) SetAccessToken(token string) error {
	return s.put(keyAccessToken, token)
}

// ClearCredentials removes every stored credential
func (s *Storage) ClearCredentials() error {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyUserID} {
		if err := s.delete(key); err != nil {
			return err
		}
	}
	return nil
}

// ContinuationKeys loads the keys saved for a mode
func (s *Storage) ContinuationKeys(mode Mode) (ContinuationKeys, error) {
	var keys ContinuationKeys
	raw, err := s.get(prefixKeys + string(mode))
	if err != nil || raw == "" {
		return keys, err
	}
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return keys, &StorageError{Path: prefixKeys + string(mode), Op: "read", Err: err}
	}
	return keys, nil
}

// SetContinuationKeys saves the keys for a mode; zero keys delete the entry
func (s *Storage) SetContinuationKeys(mode Mode, keys ContinuationKeys) error {
	key := prefixKeys + string(mode)
	if keys == (ContinuationKeys{}) {
		return s.delete(key)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation keys: %w", err)
	}
	return s.put(key, string(data))
}

// SaveTranscript stores a transcript under its key
func (s *Storage) SaveTranscript(t *Transcript) error {
	if t.Key == "" {
		return fmt.Errorf("transcript has no key")
	}
	t.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return s.put(prefixTranscript+t.Key, string(data))
}

// LoadTranscript loads one transcript by key, or nil if unknown
func (s *Storage) LoadTranscript(key string) (*Transcript, error) {
	raw, err := s.get(prefixTranscript + key)
	if err != nil || raw == "" {
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, &StorageError{Path: prefixTranscript + key, Op: "read", Err: err}
	}
	return &t, nil
}

// LoadTranscripts returns every stored transcript, most recent first.
// Unreadable entries are skipped.
func (s *Storage) LoadTranscripts() ([]*Transcript, error) {
	pairs, err := QueryClientKV(s.db, prefixTranscript+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}

	transcripts := make([]*Transcript, 0, len(pairs))
	for _, pair := range pairs {
		var t Transcript
		if err := json.Unmarshal([]byte(pair.Value), &t); err != nil {
			LogWarn("Skipping unreadable transcript %s: %v", strings.TrimPrefix(pair.Key, prefixTranscript), err)
			continue
		}
		transcripts = append(transcripts, &t)
	}
	return transcripts, nil
}

// DeleteTranscript removes a transcript
func (s *Storage) DeleteTranscript(key string) error {
	return s.delete(prefixTranscript + key)
}
