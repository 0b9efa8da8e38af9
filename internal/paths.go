package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataPaths holds the local client state locations
type DataPaths struct {
	BaseDir    string // data directory
	ConfigPath string // config.yaml
	StorePath  string // client.db (guest id, credentials, transcripts)
	LogPath    string // chef-chat.log, written while the full-screen chat runs
}

// DetectDataPaths returns the default data paths for the current OS. A
// non-empty override replaces the base directory.
func DetectDataPaths(override string) (DataPaths, error) {
	if override != "" {
		return dataPathsAt(override), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return DataPaths{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	var base string
	switch runtime.GOOS {
	case "darwin":
		base = filepath.Join(home, "Library/Application Support/chef-chat")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "chef-chat")
		} else {
			base = filepath.Join(home, ".config/chef-chat")
		}
	case "windows":
		base = filepath.Join(home, "AppData", "Roaming", "chef-chat")
	default:
		base = filepath.Join(home, ".chef-chat")
	}
	return dataPathsAt(base), nil
}

func dataPathsAt(base string) DataPaths {
	return DataPaths{
		BaseDir:    base,
		ConfigPath: ConfigPath(base),
		StorePath:  filepath.Join(base, "client.db"),
		LogPath:    filepath.Join(base, "chef-chat.log"),
	}
}

// EnsureBaseDir creates the data directory
func (p DataPaths) EnsureBaseDir() error {
	return os.MkdirAll(p.BaseDir, 0700)
}

// StoreExists reports whether the client store has been created
func (p DataPaths) StoreExists() bool {
	_, err := os.Stat(p.StorePath)
	return err == nil
}
