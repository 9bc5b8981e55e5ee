// Package config provides environment-based configuration for the shipfolio
// backend.
//
// Configuration is loaded from environment variables using Viper, with
// development defaults. The download token secret is the only value the
// service refuses to default in production: starting with ENVIRONMENT set to
// "production" and no explicit DOWNLOAD_TOKEN_SECRET is a hard error, because
// a guessable secret makes every gated download link forgeable.
//
// # Environment Variables
//
//   - ENVIRONMENT: deployment environment (development, production). Default: development
//   - PORT: HTTP server port. Default: 8080
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - SITE_URL: public base URL used when building links sent by email
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: shipfolio.db
//   - SKIP_AUTO_MIGRATE: Skip automatic database migrations. Default: false
//   - DOWNLOAD_TOKEN_SECRET: HMAC secret for download tokens
//   - STORAGE_DRIVER: lead magnet storage backend (local, s3). Default: local
//   - FILE_BASE_URL, S3_REGION, S3_BUCKET, S3_BASE_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY
//   - MAIL_API_URL, MAIL_API_KEY, MAIL_FROM: hosted email provider settings
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// InsecureDevSecret is the fallback download token secret used when none is
// configured. Tokens signed with it are forgeable; only acceptable for local
// development.
const InsecureDevSecret = "dev-only-download-secret"

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        int    `mapstructure:"PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	SiteURL     string `mapstructure:"SITE_URL"`

	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`

	DownloadTokenSecret string `mapstructure:"DOWNLOAD_TOKEN_SECRET"`

	StorageDriver  string `mapstructure:"STORAGE_DRIVER"` // local, s3
	FileBaseURL    string `mapstructure:"FILE_BASE_URL"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3BaseEndpoint string `mapstructure:"S3_BASE_ENDPOINT"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`

	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	MailFrom   string `mapstructure:"MAIL_FROM"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SITE_URL", "http://localhost:8080")
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "shipfolio.db")
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("DOWNLOAD_TOKEN_SECRET", InsecureDevSecret)
	viper.SetDefault("STORAGE_DRIVER", "local")
	viper.SetDefault("FILE_BASE_URL", "http://localhost:8080/files")
	viper.SetDefault("MAIL_FROM", "hello@shipfolio.dev")

	// Viper only unmarshals keys it knows about; register the optional ones
	// so AutomaticEnv can fill them.
	for _, key := range []string{
		"S3_REGION", "S3_BUCKET", "S3_BASE_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"MAIL_API_URL", "MAIL_API_KEY",
	} {
		viper.SetDefault(key, "")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would be unsafe to run with.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.DownloadTokenSecret == "" || c.DownloadTokenSecret == InsecureDevSecret) {
		return errors.New("config: DOWNLOAD_TOKEN_SECRET must be set explicitly in production")
	}
	if c.StorageDriver == "s3" && c.S3Bucket == "" {
		return errors.New("config: S3_BUCKET is required when STORAGE_DRIVER is s3")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsingFallbackSecret reports whether download tokens are signed with the
// insecure development fallback.
func (c *Config) UsingFallbackSecret() bool {
	return c.DownloadTokenSecret == InsecureDevSecret
}
