package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Archive backends.
const (
	ArchiveNone       = ""
	ArchiveFilesystem = "filesystem"
	ArchiveS3         = "s3"
)

type Config struct {
	ListenAddr  string   `yaml:"listen_addr"`
	AuthToken   string   `yaml:"auth_token"`
	CORSOrigins []string `yaml:"cors_origins"`
	TempDir     string   `yaml:"temp_dir"`
	DBPath      string   `yaml:"db_path"`

	RemoteBaseURL string        `yaml:"remote_base_url"`
	RemoteAPIKey  string        `yaml:"remote_api_key"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	DefaultModel   string `yaml:"default_model"`
	DefaultSeconds string `yaml:"default_seconds"`
	DefaultSize    string `yaml:"default_size"`

	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	PollBaseDelay   time.Duration `yaml:"poll_base_delay"`

	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	ImageFetchTimeout time.Duration `yaml:"image_fetch_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ArchiveBackend string        `yaml:"archive_backend"`
	ArchivePath    string        `yaml:"archive_path"`
	ArchiveTimeout time.Duration `yaml:"archive_timeout"`
	S3             S3Config      `yaml:"s3"`
}

// S3Config holds the settings of the S3-compatible archive store.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:        ":8080",
		CORSOrigins:       []string{"*"},
		TempDir:           filepath.Join(os.TempDir(), "dt-video-gen"),
		RemoteBaseURL:     "https://api.openai.com/v1",
		RemoteTimeout:     60 * time.Second,
		DefaultModel:      "sora-2",
		DefaultSeconds:    "4",
		PollMaxAttempts:   3,
		PollBaseDelay:     time.Second,
		MaxUploadBytes:    50 << 20,
		ImageFetchTimeout: 30 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
		ArchivePath:       "/data/archive",
		ArchiveTimeout:    10 * time.Minute,
	}
}

// Load builds the configuration from the defaults, the YAML file named by
// DT_CONFIG_FILE (if any), and DT_* environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("DT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("DT_LISTEN_ADDR", c.ListenAddr)
	c.AuthToken = getEnv("DT_AUTH_TOKEN", c.AuthToken)
	c.CORSOrigins = getEnvList("DT_CORS_ORIGINS", c.CORSOrigins)
	c.TempDir = getEnv("DT_TEMP_DIR", c.TempDir)
	c.DBPath = getEnv("DT_DB_PATH", c.DBPath)

	c.RemoteBaseURL = getEnv("DT_REMOTE_BASE_URL", c.RemoteBaseURL)
	c.RemoteAPIKey = getEnv("DT_REMOTE_API_KEY", getEnv("OPENAI_API_KEY", c.RemoteAPIKey))
	c.RemoteTimeout = getEnvDuration("DT_REMOTE_TIMEOUT", c.RemoteTimeout)

	c.DefaultModel = getEnv("DT_DEFAULT_MODEL", c.DefaultModel)
	c.DefaultSeconds = getEnv("DT_DEFAULT_SECONDS", c.DefaultSeconds)
	c.DefaultSize = getEnv("DT_DEFAULT_SIZE", c.DefaultSize)

	c.PollMaxAttempts = getEnvInt("DT_POLL_MAX_ATTEMPTS", c.PollMaxAttempts)
	c.PollBaseDelay = getEnvDuration("DT_POLL_BASE_DELAY", c.PollBaseDelay)

	c.MaxUploadBytes = getEnvInt64("DT_MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.ImageFetchTimeout = getEnvDuration("DT_IMAGE_FETCH_TIMEOUT", c.ImageFetchTimeout)

	c.LogLevel = getEnv("DT_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("DT_LOG_FORMAT", c.LogFormat)

	c.ArchiveBackend = getEnv("DT_ARCHIVE_BACKEND", c.ArchiveBackend)
	c.ArchivePath = getEnv("DT_ARCHIVE_PATH", c.ArchivePath)
	c.ArchiveTimeout = getEnvDuration("DT_ARCHIVE_TIMEOUT", c.ArchiveTimeout)
	c.S3.Endpoint = getEnv("DT_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("DT_S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("DT_S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = getEnv("DT_S3_PREFIX", c.S3.Prefix)
	c.S3.AccessKeyID = getEnv("DT_S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("DT_S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultModel) == "" {
		return fmt.Errorf("default model is required")
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("poll max attempts must be at least 1, got %d", c.PollMaxAttempts)
	}
	if c.PollBaseDelay < 0 {
		return fmt.Errorf("poll base delay must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	switch c.ArchiveBackend {
	case ArchiveNone:
	case ArchiveFilesystem:
		if c.ArchivePath == "" {
			return fmt.Errorf("archive path is required for the filesystem backend")
		}
	case ArchiveS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.ArchiveBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
