package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/internal"
)

func TestTokenCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "", "--data-dir", dir, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode: guest")

	_, err = executeCommand(t, "", "--data-dir", dir, "token", "set", "access-token-1234", "--refresh", "r-1", "--user-id", "u-7")
	require.NoError(t, err)

	out, err = executeCommand(t, "", "--data-dir", dir, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode: authenticated")
	assert.Contains(t, out, "********1234")
	assert.NotContains(t, out, "access-token-1234")
	assert.Contains(t, out, "Refresh token: true")
	assert.Contains(t, out, "User: u-7")

	_, err = executeCommand(t, "", "--data-dir", dir, "token", "clear")
	require.NoError(t, err)

	creds, err := openTestStore(t, dir).Credentials()
	require.NoError(t, err)
	assert.Equal(t, internal.Credentials{}, creds)
}

func TestTokenSet_Empty(t *testing.T) {
	_, err := executeCommand(t, "", "--data-dir", t.TempDir(), "token", "set", "  ")
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("abcd"))
	assert.Equal(t, "********6789", maskToken("0123456789"))
}

func TestGuestCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "", "--data-dir", dir, "guest")
	require.NoError(t, err)
	assert.Contains(t, out, "No guest id yet")

	store := openTestStore(t, dir)
	require.NoError(t, store.SetGuestID("guest-42"))
	require.NoError(t, store.SetContinuationKeys(internal.ModeGuest, internal.ContinuationKeys{ThreadID: "r1", ResponseID: "r2"}))
	require.NoError(t, store.Close())

	out, err = executeCommand(t, "", "--data-dir", dir, "guest")
	require.NoError(t, err)
	assert.Contains(t, out, "guest-42")

	_, err = executeCommand(t, "", "--data-dir", dir, "guest", "--forget")
	require.NoError(t, err)

	store = openTestStore(t, dir)
	id, err := store.GuestID()
	require.NoError(t, err)
	assert.Empty(t, id)
	keys, err := store.ContinuationKeys(internal.ModeGuest)
	require.NoError(t, err)
	assert.Equal(t, internal.ContinuationKeys{}, keys)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCommand(t, "", "--data-dir", dir, "--base-url", "https://chefs.example", "config", "init")
	require.NoError(t, err)

	raw, err := os.ReadFile(internal.ConfigPath(dir))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "base_url: https://chefs.example")

	_, err = executeCommand(t, "", "--data-dir", dir, "config", "init")
	assert.Error(t, err, "existing config is not overwritten")

	_, err = executeCommand(t, "", "--data-dir", dir, "config", "init", "--force")
	require.NoError(t, err)

	out, err := executeCommand(t, "", "--data-dir", dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url: "+internal.DefaultConfig().BaseURL)
	assert.Contains(t, out, "onboarding_stream:")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom.yaml")

	_, err := executeCommand(t, "", "--data-dir", dir, "--config", path, "--base-url", "https://custom.example", "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(internal.ConfigPath(dir))
	assert.True(t, os.IsNotExist(err), "default config path stays untouched")

	out, err := executeCommand(t, "", "--data-dir", dir, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "base_url: https://custom.example")
}
