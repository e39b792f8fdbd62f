// Package config loads runtime settings: an optional YAML file first, then
// environment variables (including a .env file) on top.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full set of settings for the API and the admin CLI.
type Config struct {
	Port        string `yaml:"port"`
	StoreDriver string `yaml:"store_driver"`
	DSNPrimary  string `yaml:"dsn_primary"`
	DSNReadOnly string `yaml:"dsn_readonly"`
	CORSOrigin  string `yaml:"cors_origin"`
	LogLevel    string `yaml:"log_level"`
	BaseURL     string `yaml:"base_url"`

	JWT struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"jwt"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		Driver      string `yaml:"driver"`
		UploadDir   string `yaml:"upload_dir"`
		S3Bucket    string `yaml:"s3_bucket"`
		S3Region    string `yaml:"s3_region"`
		S3PublicURL string `yaml:"s3_public_url"`
	} `yaml:"storage"`

	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		SuccessURL    string `yaml:"success_url"`
		CancelURL     string `yaml:"cancel_url"`
		Currency      string `yaml:"currency"`
	} `yaml:"stripe"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`

	GigExpiryInterval time.Duration `yaml:"gig_expiry_interval"`
}

// Store and storage drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	cfg := &Config{
		Port:              "8080",
		StoreDriver:       DriverMySQL,
		CORSOrigin:        "http://localhost:3000",
		LogLevel:          "info",
		BaseURL:           "http://localhost:8080",
		GigExpiryInterval: time.Hour,
	}
	cfg.JWT.TTL = 72 * time.Hour
	cfg.Storage.Driver = StorageLocal
	cfg.Storage.UploadDir = "./uploads"
	cfg.Stripe.Currency = "usd"
	return cfg
}

// Load reads .env, then CONFIG_FILE (if set), then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML file into cfg.
func (cfg *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg with every variable lookup finds.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":                  &cfg.Port,
		"STORE_DRIVER":          &cfg.StoreDriver,
		"DB_DSN_PRIMARY":        &cfg.DSNPrimary,
		"DB_DSN_READONLY":       &cfg.DSNReadOnly,
		"CORS_ORIGIN":           &cfg.CORSOrigin,
		"LOG_LEVEL":             &cfg.LogLevel,
		"BASE_URL":              &cfg.BaseURL,
		"JWT_SECRET":            &cfg.JWT.Secret,
		"REDIS_ADDR":            &cfg.Redis.Addr,
		"REDIS_PASSWORD":        &cfg.Redis.Password,
		"STORAGE_DRIVER":        &cfg.Storage.Driver,
		"UPLOAD_DIR":            &cfg.Storage.UploadDir,
		"S3_BUCKET":             &cfg.Storage.S3Bucket,
		"S3_REGION":             &cfg.Storage.S3Region,
		"S3_PUBLIC_URL":         &cfg.Storage.S3PublicURL,
		"STRIPE_SECRET_KEY":     &cfg.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.Stripe.WebhookSecret,
		"CHECKOUT_SUCCESS_URL":  &cfg.Stripe.SuccessURL,
		"CHECKOUT_CANCEL_URL":   &cfg.Stripe.CancelURL,
		"STRIPE_CURRENCY":       &cfg.Stripe.Currency,
		"GEMINI_API_KEY":        &cfg.Gemini.APIKey,
		"GEMINI_MODEL":          &cfg.Gemini.Model,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"JWT_TTL":             &cfg.JWT.TTL,
		"GIG_EXPIRY_INTERVAL": &cfg.GigExpiryInterval,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = d
	}

	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid REDIS_DB")
		}
		cfg.Redis.DB = n
	}
	return nil
}

// Validate rejects settings the API cannot start with.
func (cfg *Config) Validate() error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		if cfg.DSNPrimary == "" {
			return errors.New("DB_DSN_PRIMARY is required for the mysql store")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if cfg.Storage.S3Bucket == "" || cfg.Storage.S3Region == "" {
			return errors.New("S3_BUCKET and S3_REGION are required for s3 storage")
		}
	default:
		return errors.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	if cfg.GigExpiryInterval <= 0 {
		return errors.New("GIG_EXPIRY_INTERVAL must be positive")
	}
	return nil
}

// AssistantEnabled reports whether the AI assistant can be started.
func (cfg *Config) AssistantEnabled() bool {
	return cfg.Gemini.APIKey != "" && cfg.DSNReadOnly != ""
}
