package internal

import (
	"errors"
	"testing"

	"github.com/iksnae/chef-chat/testutil"
)

func TestStorage_Fixture(t *testing.T) {
	store := NewStorage(testutil.CreateTestDB(t))

	guestID, err := store.GuestID()
	if err != nil || guestID != "guest-123" {
		t.Errorf("GuestID() = %q, %v", guestID, err)
	}

	keys, err := store.ContinuationKeys(ModeGuest)
	if err != nil {
		t.Fatalf("ContinuationKeys() error = %v", err)
	}
	if keys != (ContinuationKeys{ThreadID: "resp-1", ResponseID: "resp-2"}) {
		t.Errorf("ContinuationKeys(guest) = %+v", keys)
	}

	transcripts, err := store.LoadTranscripts()
	if err != nil {
		t.Fatalf("LoadTranscripts() error = %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("LoadTranscripts() returned %d, want 2", len(transcripts))
	}
	if transcripts[0].Key != "thread-9" || transcripts[0].Title() != "Plan my week" {
		t.Errorf("first transcript = %+v", transcripts[0])
	}
}

func TestStorage_GuestID(t *testing.T) {
	store := newTestStorage(t)

	if id, _ := store.GuestID(); id != "" {
		t.Errorf("GuestID() on empty store = %q", id)
	}
	if err := store.SetGuestID("g-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetGuestID("g-2"); err != nil {
		t.Fatal(err)
	}
	if id, _ := store.GuestID(); id != "g-2" {
		t.Errorf("GuestID() = %q, want g-2", id)
	}
	if err := store.ForgetGuestID(); err != nil {
		t.Fatal(err)
	}
	if id, _ := store.GuestID(); id != "" {
		t.Errorf("GuestID() after forget = %q", id)
	}
}

func TestStorage_Credentials(t *testing.T) {
	store := newTestStorage(t)

	if err := store.SetCredentials(Credentials{AccessToken: "a1", RefreshToken: "r1", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	// empty fields leave stored values alone
	if err := store.SetCredentials(Credentials{AccessToken: "a2"}); err != nil {
		t.Fatal(err)
	}

	creds, err := store.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds != (Credentials{AccessToken: "a2", RefreshToken: "r1", UserID: "u1"}) {
		t.Errorf("Credentials() = %+v", creds)
	}

	if err := store.SetAccessToken("a3"); err != nil {
		t.Fatal(err)
	}
	if creds, _ := store.Credentials(); creds.AccessToken != "a3" {
		t.Errorf("AccessToken = %q, want a3", creds.AccessToken)
	}

	if err := store.ClearCredentials(); err != nil {
		t.Fatal(err)
	}
	if creds, _ := store.Credentials(); creds != (Credentials{}) {
		t.Errorf("Credentials() after clear = %+v", creds)
	}
}

func TestStorage_ContinuationKeys(t *testing.T) {
	store := newTestStorage(t)

	auth := ContinuationKeys{ThreadID: "thread-1"}
	guest := ContinuationKeys{ThreadID: "resp-1", ResponseID: "resp-3"}
	if err := store.SetContinuationKeys(ModeAuthenticated, auth); err != nil {
		t.Fatal(err)
	}
	if err := store.SetContinuationKeys(ModeGuest, guest); err != nil {
		t.Fatal(err)
	}

	if got, _ := store.ContinuationKeys(ModeAuthenticated); got != auth {
		t.Errorf("ContinuationKeys(authenticated) = %+v", got)
	}
	if got, _ := store.ContinuationKeys(ModeGuest); got != guest {
		t.Errorf("ContinuationKeys(guest) = %+v", got)
	}

	if err := store.SetContinuationKeys(ModeGuest, ContinuationKeys{}); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.ContinuationKeys(ModeGuest); got != (ContinuationKeys{}) {
		t.Errorf("ContinuationKeys(guest) after clear = %+v", got)
	}
}

func TestStorage_InvalidContinuationKeys(t *testing.T) {
	store := newTestStorage(t)
	if err := store.put(prefixKeys+string(ModeGuest), "{broken"); err != nil {
		t.Fatal(err)
	}

	_, err := store.ContinuationKeys(ModeGuest)
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Errorf("ContinuationKeys() error = %v, want StorageError", err)
	}
}

func TestStorage_Transcripts(t *testing.T) {
	store := newTestStorage(t)

	if err := store.SaveTranscript(&Transcript{}); err == nil {
		t.Error("SaveTranscript() without key succeeded")
	}

	tr := CreateTestTranscript("thread-1")
	if err := store.SaveTranscript(tr); err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	if tr.UpdatedAt.IsZero() {
		t.Error("SaveTranscript() did not stamp UpdatedAt")
	}

	loaded, err := store.LoadTranscript("thread-1")
	if err != nil {
		t.Fatalf("LoadTranscript() error = %v", err)
	}
	if loaded == nil || len(loaded.Messages) != len(tr.Messages) || loaded.Tools[0].Name != tr.Tools[0].Name {
		t.Errorf("LoadTranscript() = %+v", loaded)
	}

	missing, err := store.LoadTranscript("nope")
	if err != nil || missing != nil {
		t.Errorf("LoadTranscript(missing) = %v, %v", missing, err)
	}

	if err := store.put(prefixTranscript+"broken", "not json"); err != nil {
		t.Fatal(err)
	}
	all, err := store.LoadTranscripts()
	if err != nil {
		t.Fatalf("LoadTranscripts() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("LoadTranscripts() returned %d, want the readable one only", len(all))
	}

	if err := store.DeleteTranscript("thread-1"); err != nil {
		t.Fatal(err)
	}
	if loaded, _ := store.LoadTranscript("thread-1"); loaded != nil {
		t.Error("transcript still present after DeleteTranscript")
	}
}
