// Package config loads the server configuration from the environment.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. an optional config file (yaml, toml, json or .env syntax)
//  3. a .env file in the working directory, if present
//  4. the process environment
//
// Every key is named after its environment variable, e.g. S3_BUCKET_NAME.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type OAuth struct {
	ClientID     string
	ClientSecret string `validate:"required_with=ClientID"`
	RedirectURI  string `validate:"required_with=ClientID,omitempty,url"`
}

// Enabled reports whether the provider has credentials.
func (o OAuth) Enabled() bool { return o.ClientID != "" }

type Storage struct {
	Driver          string `validate:"oneof=s3 minio"`
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string `validate:"required"`
	PublicURL       string `validate:"omitempty,url"`
	UseSSL          bool
}

type RateLimit struct {
	Requests int           `validate:"gte=0"`
	Window   time.Duration `validate:"gte=0"`
	Burst    int           `validate:"gte=0"`
}

type Config struct {
	Port         int    `validate:"gt=0,lt=65536"`
	DatabaseURL  string `validate:"required"`
	JWTSecret    string `validate:"required,min=16"`
	CookieSecure bool

	GitHub  OAuth
	Google  OAuth
	Storage Storage

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	OrphanSweepSchedule string
	OrphanSweepGrace    time.Duration `validate:"gte=0"`

	RateLimit RateLimit
}

// setDefaults gives every key a default so AutomaticEnv can find it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("DATABASE_URL", "data/cliplet.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("COOKIE_SECURE", false)

	for _, p := range []string{"GITHUB", "GOOGLE"} {
		v.SetDefault(p+"_OAUTH_CLIENT_ID", "")
		v.SetDefault(p+"_OAUTH_CLIENT_SECRET", "")
		v.SetDefault(p+"_OAUTH_CLIENT_REDIRECT_URI", "")
	}

	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET_NAME", "")
	v.SetDefault("S3_PUBLIC_URL", "")
	v.SetDefault("S3_USE_SSL", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("ORPHAN_SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("ORPHAN_SWEEP_GRACE", "24h")

	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_BURST", 30)
}

// Load reads the configuration. file may be empty.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper
// instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:         v.GetInt("PORT"),
		DatabaseURL:  strings.TrimSpace(v.GetString("DATABASE_URL")),
		JWTSecret:    v.GetString("JWT_SECRET"),
		CookieSecure: v.GetBool("COOKIE_SECURE"),
		GitHub: OAuth{
			ClientID:     v.GetString("GITHUB_OAUTH_CLIENT_ID"),
			ClientSecret: v.GetString("GITHUB_OAUTH_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GITHUB_OAUTH_CLIENT_REDIRECT_URI"),
		},
		Google: OAuth{
			ClientID:     v.GetString("GOOGLE_OAUTH_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_OAUTH_CLIENT_SECRET"),
			RedirectURI:  v.GetString("GOOGLE_OAUTH_CLIENT_REDIRECT_URI"),
		},
		Storage: Storage{
			Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			Region:          v.GetString("S3_REGION"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			Bucket:          v.GetString("S3_BUCKET_NAME"),
			PublicURL:       v.GetString("S3_PUBLIC_URL"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
		},
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:           strings.ToLower(v.GetString("LOG_FORMAT")),
		OrphanSweepSchedule: strings.TrimSpace(v.GetString("ORPHAN_SWEEP_SCHEDULE")),
		OrphanSweepGrace:    v.GetDuration("ORPHAN_SWEEP_GRACE"),
		RateLimit: RateLimit{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			fe := vErrs[0]
			return nil, fmt.Errorf("config: %s failed the %s rule", fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// UsesPostgres reports whether DatabaseURL points at Postgres (or
// CockroachDB) rather than a SQLite file.
func (c *Config) UsesPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// SQLitePath strips an optional "file:" or "sqlite://" prefix.
func (c *Config) SQLitePath() string {
	p := c.DatabaseURL
	for _, prefix := range []string{"sqlite://", "file:"} {
		p = strings.TrimPrefix(p, prefix)
	}
	return p
}
