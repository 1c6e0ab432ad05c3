package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Config holds every option the import worker recognizes. All values come
// from environment variables; Load fails on the first missing or malformed
// value so a misconfigured worker never reaches the poll loop.
type Config struct {
	DatabaseURL string `validate:"required"`

	MinioEndpoint  string `validate:"required"`
	MinioAccessKey string `validate:"required"`
	MinioSecretKey string `validate:"required"`
	MinioBucket    string `validate:"required"`
	MinioUseSSL    bool

	// WorkerID identifies this instance in batch claims and log lines.
	// Auto-generated when PI_WORKER_ID is not set.
	WorkerID string `validate:"required"`

	PollInterval     time.Duration `validate:"min=1s"`
	HeartbeatStale   time.Duration `validate:"min=1s"`
	MaxAttempts      int           `validate:"min=1"`
	ChunkSize        int           `validate:"min=1"`
	StatementTimeout time.Duration `validate:"min=1s"`
	SignedURLExpiry  time.Duration `validate:"min=1s"`
	HealthPort       int           `validate:"min=1,max=65535"`
	RowCap           int           `validate:"min=1"`

	// RedisAddr enables the terminal-status cache when non-empty.
	RedisAddr      string
	StatusCacheTTL time.Duration
}

const (
	defaultPollIntervalSec   = 5
	defaultHeartbeatStaleSec = 300
	defaultMaxAttempts       = 3
	defaultChunkSize         = 500
	defaultStmtTimeoutSec    = 60
	defaultSignedURLExpSec   = 600
	defaultHealthPort        = 8080
	defaultRowCap            = 10001
	defaultStatusCacheSec    = 60
)

// Load reads the recognized environment variables, applies defaults and
// validates the result. Any error here is fatal for the process.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("PI_DATABASE_URL"),
		MinioEndpoint:  os.Getenv("PI_MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("PI_MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("PI_MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("PI_MINIO_BUCKET"),
		WorkerID:       os.Getenv("PI_WORKER_ID"),
		RedisAddr:      os.Getenv("PI_REDIS_ADDR"),
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()
	}

	var err error
	if cfg.MinioUseSSL, err = boolEnv("PI_MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = secondsEnv("PI_POLL_INTERVAL_SEC", defaultPollIntervalSec); err != nil {
		return nil, err
	}
	if cfg.HeartbeatStale, err = secondsEnv("PI_HEARTBEAT_STALE_SEC", defaultHeartbeatStaleSec); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = intEnv("PI_MAX_ATTEMPTS", defaultMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = intEnv("PI_CHUNK_SIZE", defaultChunkSize); err != nil {
		return nil, err
	}
	if cfg.StatementTimeout, err = secondsEnv("PI_STMT_TIMEOUT_SEC", defaultStmtTimeoutSec); err != nil {
		return nil, err
	}
	if cfg.SignedURLExpiry, err = secondsEnv("PI_SIGNED_URL_EXPIRY_SEC", defaultSignedURLExpSec); err != nil {
		return nil, err
	}
	if cfg.HealthPort, err = intEnv("PI_HEALTH_PORT", defaultHealthPort); err != nil {
		return nil, err
	}
	if cfg.RowCap, err = intEnv("PI_ROW_CAP", defaultRowCap); err != nil {
		return nil, err
	}
	if cfg.StatusCacheTTL, err = secondsEnv("PI_STATUS_CACHE_SEC", defaultStatusCacheSec); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			ve := verrs[0]
			return nil, fmt.Errorf("config: field %s failed %q validation", ve.Field(), ve.Tag())
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", name, s)
	}
	return v, nil
}

func secondsEnv(name string, defSec int) (time.Duration, error) {
	v, err := intEnv(name, defSec)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func boolEnv(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", name, s)
	}
	return v, nil
}
