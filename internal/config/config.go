package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH"     envDefault:"/data/showroom.db"`

	CacheBackend string        `env:"CACHE_BACKEND"  envDefault:"sqlite"`
	CacheLRUSize int           `env:"CACHE_LRU_SIZE" envDefault:"1024"`
	CacheTimeout time.Duration `env:"CACHE_TIMEOUT"  envDefault:"2s"`

	FeedURL                 string        `env:"INVENTORY_FEED_URL"`
	FeedFile                string        `env:"INVENTORY_FEED_FILE"`
	InventoryTTL            time.Duration `env:"INVENTORY_TTL"             envDefault:"5m"`
	InventoryRefreshTimeout time.Duration `env:"INVENTORY_REFRESH_TIMEOUT" envDefault:"30s"`

	BlobBackend   string `env:"BLOB_BACKEND"    envDefault:"local"`
	BlobLocalPath string `env:"BLOB_LOCAL_PATH" envDefault:"/data/blobs"`
	BlobPublicURL string `env:"BLOB_PUBLIC_URL" envDefault:"/blobs"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"     envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	TestMode     bool   `env:"SHOWROOM_TEST_MODE"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	if c.CacheLRUSize < 0 {
		return fmt.Errorf("CACHE_LRU_SIZE must not be negative")
	}
	return nil
}
