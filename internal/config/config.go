// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// APIMode selects the progression API implementation.
type APIMode string

const (
	// APIModeLive talks to the real progression API.
	APIModeLive APIMode = "live"
	// APIModeMock serves fixed offline data, for demos and development.
	APIModeMock APIMode = "mock"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	DBPath         string
	APIMode        APIMode
	APIURL         string
	FriendsAPIURL  string
	ClearsInterval time.Duration
	FriendsEnabled bool
	SecretKey      []byte // 32-byte AES key for credential storage; nil disables encryption.
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional. Defaults: CLEARSYNC_LISTEN_ADDR
// (127.0.0.1:8140), CLEARSYNC_DB_PATH (clearsync.db), CLEARSYNC_API_MODE
// (live), CLEARSYNC_API_URL (https://api.guildwars2.com/),
// CLEARSYNC_FRIENDS_API_URL (empty disables sharing unless
// CLEARSYNC_FRIENDS_ENABLED forces it), CLEARSYNC_CLEARS_INTERVAL (3m),
// CLEARSYNC_SECRET_KEY (unset stores secrets unencrypted; set to 64 hex
// characters to encrypt).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8140"
	if v, ok := os.LookupEnv("CLEARSYNC_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "clearsync.db"
	if v, ok := os.LookupEnv("CLEARSYNC_DB_PATH"); ok {
		dbPath = v
	}

	apiMode := APIModeLive
	if v, ok := os.LookupEnv("CLEARSYNC_API_MODE"); ok {
		switch APIMode(v) {
		case APIModeLive, APIModeMock:
			apiMode = APIMode(v)
		default:
			return nil, fmt.Errorf("CLEARSYNC_API_MODE must be %q or %q, got %q", APIModeLive, APIModeMock, v)
		}
	}

	apiURL := "https://api.guildwars2.com/"
	if v, ok := os.LookupEnv("CLEARSYNC_API_URL"); ok {
		apiURL = v
	}

	friendsAPIURL := os.Getenv("CLEARSYNC_FRIENDS_API_URL")

	friendsEnabled := friendsAPIURL != ""
	if v, ok := os.LookupEnv("CLEARSYNC_FRIENDS_ENABLED"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CLEARSYNC_FRIENDS_ENABLED has invalid value %q: %w", v, err)
		}
		friendsEnabled = parsed
	}
	if friendsEnabled && friendsAPIURL == "" {
		return nil, fmt.Errorf("CLEARSYNC_FRIENDS_ENABLED is set but CLEARSYNC_FRIENDS_API_URL is empty")
	}

	clearsInterval := 3 * time.Minute
	if v, ok := os.LookupEnv("CLEARSYNC_CLEARS_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CLEARSYNC_CLEARS_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed < time.Minute {
			return nil, fmt.Errorf("CLEARSYNC_CLEARS_INTERVAL %q is below the 1m minimum", v)
		}
		clearsInterval = parsed
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("CLEARSYNC_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("CLEARSYNC_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("CLEARSYNC_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		APIMode:        apiMode,
		APIURL:         apiURL,
		FriendsAPIURL:  friendsAPIURL,
		ClearsInterval: clearsInterval,
		FriendsEnabled: friendsEnabled,
		SecretKey:      secretKey,
	}, nil
}
