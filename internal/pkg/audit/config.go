package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// Config holds the webhook archive bucket settings.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("S3_WEBHOOK_PREFIX", "webhooks"), "/"),
		Enabled:         env.GetEnvBool("WEBHOOK_ARCHIVE_ENABLED", false),
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the webhook archive is enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the webhook archive is enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the webhook archive is enabled")
		}
	}
	return cfg, nil
}

// ObjectKey returns <prefix>/<provider>/YYYY/MM/DD/<id>.json.
func (c *Config) ObjectKey(provider, id string, at time.Time) string {
	at = at.UTC()
	key := fmt.Sprintf("%s/%04d/%02d/%02d/%s.json", provider, at.Year(), int(at.Month()), at.Day(), id)
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}
