package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one message as returned by the thread history endpoint
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// FetchHistory loads the ordered message history of a thread
func FetchHistory(ctx context.Context, client *http.Client, url, bearer string) ([]HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPStatusError{URL: url, Status: resp.StatusCode, BodySnippet: strings.TrimSpace(string(raw))}
	}

	var entries []HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// HistoryMessages converts history entries into finalized messages, keeping
// their order. Entries with an unknown role or no content are skipped.
func HistoryMessages(entries []HistoryEntry) []Message {
	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		role := Role(strings.ToLower(strings.TrimSpace(e.Role)))
		if role != RoleUser && role != RoleAssistant {
			LogDebug("Skipping history entry with role %q", e.Role)
			continue
		}
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		msg := Message{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   e.Content,
			Finalized: true,
		}
		if e.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
				msg.CreatedAt = t
			}
		}
		messages = append(messages, msg)
	}
	return messages
}
