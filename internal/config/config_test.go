package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected default addr ':8080', got %q", cfg.Server.Addr)
	}
	if cfg.Drive.RootFolderName != "TuneDrive" {
		t.Errorf("Expected default root folder name 'TuneDrive', got %q", cfg.Drive.RootFolderName)
	}
	if cfg.Drive.IndexFileName != "playlists.json" {
		t.Errorf("Expected default index file name 'playlists.json', got %q", cfg.Drive.IndexFileName)
	}
	if cfg.Drive.Timeout.Duration != 30*time.Second {
		t.Errorf("Expected default drive timeout 30s, got %v", cfg.Drive.Timeout.Duration)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if cfg.Fetcher.Binary != "yt-dlp" {
		t.Errorf("Expected default binary 'yt-dlp', got %q", cfg.Fetcher.Binary)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"
session_ttl = "1h"

[drive]
root_folder_name = "Archive"
timeout = "5s"

[fetcher]
cookies_file = "/etc/tunedrive/cookies.txt"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected addr ':9090', got %q", cfg.Server.Addr)
	}
	if cfg.Server.SessionTTL.Duration != time.Hour {
		t.Errorf("Expected session_ttl 1h, got %v", cfg.Server.SessionTTL.Duration)
	}
	if cfg.Drive.RootFolderName != "Archive" {
		t.Errorf("Expected root folder name 'Archive', got %q", cfg.Drive.RootFolderName)
	}
	if cfg.Drive.Timeout.Duration != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Drive.Timeout.Duration)
	}
	if cfg.Fetcher.CookiesFile != "/etc/tunedrive/cookies.txt" {
		t.Errorf("Unexpected cookies file %q", cfg.Fetcher.CookiesFile)
	}
	// Untouched sections keep defaults.
	if cfg.Drive.IndexFileName != "playlists.json" {
		t.Errorf("Expected default index file name, got %q", cfg.Drive.IndexFileName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TUNEDRIVE_ADDR", ":7070")
	t.Setenv("DRIVE_ROOT_FOLDER_ID", "folder-123")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Expected addr ':7070', got %q", cfg.Server.Addr)
	}
	if cfg.Drive.RootFolderID != "folder-123" {
		t.Errorf("Expected root folder id 'folder-123', got %q", cfg.Drive.RootFolderID)
	}
	if !cfg.Server.DevMode {
		t.Error("Expected dev mode enabled")
	}
}

func TestLoad_RejectsEmptyRootFolderName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[drive]\nroot_folder_name = \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for empty root folder name")
	}
}
