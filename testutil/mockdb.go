package testutil

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const clientKVSchema = `
CREATE TABLE IF NOT EXISTS clientKV (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// CreateInMemoryDB creates an in-memory SQLite database with the clientKV
// table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(clientKVSchema); err != nil {
		db.Close()
		t.Fatalf("Failed to create clientKV table: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTestDB creates a test database with a guest id, two continuation
// entries and two transcripts. Rows are inserted oldest first.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := CreateInMemoryDB(t)

	rows := []struct {
		key   string
		value string
	}{
		{
			key:   "identity:guestId",
			value: "guest-123",
		},
		{
			key:   "continuation:guest",
			value: `{"thread_id":"resp-1","response_id":"resp-2"}`,
		},
		{
			key:   "continuation:authenticated",
			value: `{"thread_id":"thread-9"}`,
		},
		{
			key:   "transcript:resp-1",
			value: `{"key":"resp-1","mode":"guest","thread_id":"resp-1","messages":[{"id":"m1","role":"user","content":"Find me a chef","finalized":true}]}`,
		},
		{
			key:   "transcript:thread-9",
			value: `{"key":"thread-9","mode":"authenticated","thread_id":"thread-9","messages":[{"id":"m2","role":"user","content":"Plan my week","finalized":true},{"id":"m3","role":"assistant","content":"Sure!","finalized":true}]}`,
		},
	}

	base := time.Now().Add(-time.Hour).UnixMilli()
	for i, row := range rows {
		if _, err := db.Exec("INSERT INTO clientKV (key, value, updated_at) VALUES (?, ?, ?)", row.key, row.value, base+int64(i)); err != nil {
			t.Fatalf("Failed to insert %s: %v", row.key, err)
		}
	}
	return db
}
