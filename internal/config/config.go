// Package config loads the application configuration from a TOML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Drive   DriveConfig   `toml:"drive"`
	Fetcher FetcherConfig `toml:"fetcher"`
	AWS     AWSConfig     `toml:"aws"`
	Secrets SecretsConfig `toml:"secrets"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr       string   `toml:"addr"`
	DevMode    bool     `toml:"dev_mode"`
	SessionTTL duration `toml:"session_ttl"`
}

// DriveConfig contains Google Drive settings for the archive account.
type DriveConfig struct {
	// RootFolderID is the well-known identifier of the archive root folder.
	// When set it is verified at startup; when empty (or stale) the root is
	// resolved by name under the Drive root scope.
	RootFolderID string `toml:"root_folder_id"`
	// RootFolderName is the name used for name-based root resolution.
	RootFolderName string `toml:"root_folder_name"`
	// IndexFileName is the persisted playlist index document name.
	IndexFileName string `toml:"index_file_name"`
	// ClientID is the Google OAuth2 client ID. The client secret is resolved
	// through the secret resolver, never stored in the config file.
	ClientID    string   `toml:"client_id"`
	RedirectURL string   `toml:"redirect_url"`
	Timeout     duration `toml:"timeout"`
}

// FetcherConfig contains yt-dlp invocation settings.
type FetcherConfig struct {
	Binary string `toml:"binary"`
	// CookiesFile is passed to yt-dlp as --cookies when set. Needed for
	// videos that require a logged-in session.
	CookiesFile string   `toml:"cookies_file"`
	WorkDir     string   `toml:"work_dir"`
	Timeout     duration `toml:"timeout"`
}

// AWSConfig contains table and key names for the optional AWS-backed pieces.
type AWSConfig struct {
	TokensTable    string `toml:"tokens_table"`
	FileStoreTable string `toml:"file_store_table"`
	DownloadsTable string `toml:"downloads_table"`
	KMSKeyID       string `toml:"kms_key_id"`
}

// SecretsConfig names the SSM parameters (or env vars in dev mode) holding
// the secrets the app needs at runtime.
type SecretsConfig struct {
	ProtectionCodeParam     string `toml:"protection_code_param"`
	JWTSecretParam          string `toml:"jwt_secret_param"`
	GoogleClientSecretParam string `toml:"google_client_secret_param"`
	GoogleRefreshTokenParam string `toml:"google_refresh_token_param"`
}

// duration wraps time.Duration to support TOML strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a Config with sensible defaults for a local setup.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: duration{24 * time.Hour},
		},
		Drive: DriveConfig{
			RootFolderName: "TuneDrive",
			IndexFileName:  "playlists.json",
			RedirectURL:    "http://localhost:8080/auth/callback",
			Timeout:        duration{30 * time.Second},
		},
		Fetcher: FetcherConfig{
			Binary:  "yt-dlp",
			WorkDir: os.TempDir(),
			Timeout: duration{10 * time.Minute},
		},
		AWS: AWSConfig{
			TokensTable:    "TunedriveTokens",
			FileStoreTable: "TunedriveFileStore",
			DownloadsTable: "TunedriveDownloads",
			KMSKeyID:       "alias/tunedrive-token-key",
		},
		Secrets: SecretsConfig{
			ProtectionCodeParam:     "/tunedrive/protection-code",
			JWTSecretParam:          "/tunedrive/jwt-secret",
			GoogleClientSecretParam: "/tunedrive/google-client-secret",
			GoogleRefreshTokenParam: "/tunedrive/google-refresh-token",
		},
	}
}

// Load reads the TOML file at path (if it exists) on top of the defaults,
// then applies environment overrides. A missing file is not an error so the
// app can run from env vars alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Drive.RootFolderName == "" {
		return nil, fmt.Errorf("drive.root_folder_name must not be empty")
	}
	if cfg.Drive.IndexFileName == "" {
		return nil, fmt.Errorf("drive.index_file_name must not be empty")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "TUNEDRIVE_ADDR")
	if os.Getenv("DEV_MODE") == "true" {
		c.Server.DevMode = true
	}
	setString(&c.Drive.RootFolderID, "DRIVE_ROOT_FOLDER_ID")
	setString(&c.Drive.RootFolderName, "DRIVE_ROOT_FOLDER_NAME")
	setString(&c.Drive.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Drive.RedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&c.Fetcher.Binary, "YTDLP_PATH")
	setString(&c.Fetcher.CookiesFile, "YTDLP_COOKIES_FILE")
	setString(&c.Fetcher.WorkDir, "TUNEDRIVE_WORK_DIR")
	setString(&c.AWS.TokensTable, "TOKENS_TABLE")
	setString(&c.AWS.FileStoreTable, "FILE_STORE_TABLE")
	setString(&c.AWS.DownloadsTable, "DOWNLOADS_TABLE")
	setString(&c.AWS.KMSKeyID, "KMS_KEY_ID")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
