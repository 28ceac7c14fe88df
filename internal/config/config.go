package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string        // AGREEMENTS_DATABASE_URL (optional, empty = local fallback)
	LocalDir      string        // AGREEMENTS_LOCAL_DIR (default "./.agreements")
	GRPCAddr      string        // AGREEMENTS_GRPC_ADDR (default ":9090")
	HTTPAddr      string        // AGREEMENTS_HTTP_ADDR (default ":8080")
	NATSURL       string        // AGREEMENTS_NATS_URL (optional, empty = no events)
	AuthToken     string        // AGREEMENTS_AUTH_TOKEN (optional, empty = admin auth disabled)
	IPSalt        string        // AGREEMENTS_IP_SALT (default "DKP_SALT_2024")
	MaxAttempts   int           // AGREEMENTS_MAX_ATTEMPTS (default 5)
	SessionTTL    time.Duration // AGREEMENTS_SESSION_TTL (default 12h)
	FrameInterval time.Duration // AGREEMENTS_FRAME_INTERVAL (default 16ms)
	SectionsFile  string        // AGREEMENTS_SECTIONS_FILE (optional TOML, empty = built-in sections)

	// Sync settings
	SyncInterval    time.Duration // AGREEMENTS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket    string        // AGREEMENTS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint  string        // AGREEMENTS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region    string        // AGREEMENTS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key       string        // AGREEMENTS_SYNC_S3_KEY (default "agreements/agreements.jsonl")
	SyncS3Snapshots bool          // AGREEMENTS_SYNC_S3_SNAPSHOTS (also keep dated copies)
}

// Demo reports whether no database is configured and submissions fall back
// to local storage.
func (c *Config) Demo() bool {
	return c.DatabaseURL == ""
}

// Load reads configuration from the environment. Variables from a .env file
// (or AGREEMENTS_ENV_FILE) are applied first without overriding ones already
// set.
func Load() (*Config, error) {
	envFile := envOrDefault("AGREEMENTS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	c := &Config{
		DatabaseURL:    os.Getenv("AGREEMENTS_DATABASE_URL"),
		LocalDir:       envOrDefault("AGREEMENTS_LOCAL_DIR", "./.agreements"),
		GRPCAddr:       envOrDefault("AGREEMENTS_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("AGREEMENTS_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("AGREEMENTS_NATS_URL"),
		AuthToken:      os.Getenv("AGREEMENTS_AUTH_TOKEN"),
		IPSalt:         envOrDefault("AGREEMENTS_IP_SALT", "DKP_SALT_2024"),
		SectionsFile:   os.Getenv("AGREEMENTS_SECTIONS_FILE"),
		SyncS3Bucket:   os.Getenv("AGREEMENTS_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("AGREEMENTS_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("AGREEMENTS_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("AGREEMENTS_SYNC_S3_KEY", "agreements/agreements.jsonl"),
	}

	var err error
	if c.MaxAttempts, err = envInt("AGREEMENTS_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if c.MaxAttempts < 1 {
		return nil, fmt.Errorf("AGREEMENTS_MAX_ATTEMPTS: must be at least 1")
	}
	if c.SessionTTL, err = envDuration("AGREEMENTS_SESSION_TTL", "12h"); err != nil {
		return nil, err
	}
	if c.FrameInterval, err = envDuration("AGREEMENTS_FRAME_INTERVAL", "16ms"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = envDuration("AGREEMENTS_SYNC_INTERVAL", "3m"); err != nil {
		return nil, err
	}
	if v := os.Getenv("AGREEMENTS_SYNC_S3_SNAPSHOTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("AGREEMENTS_SYNC_S3_SNAPSHOTS: %w", err)
		}
		c.SyncS3Snapshots = b
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
