// Package config loads probikes settings. Sources apply in order: built-in
// defaults, an optional YAML file with ${VAR} expansion, a .env file, then
// PROBIKES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding the YAML file path.
const EnvConfigPath = "PROBIKES_CONFIG"

// Config is the complete process configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Webhook WebhookConfig `yaml:"webhook"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects the document backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	DocumentKey string `yaml:"document_key"`
}

// BlobConfig configures the object store used for backups and the blob
// storage driver.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds bucket settings.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	Env            string   `yaml:"env"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// WebhookConfig configures the finalized-service notifier.
type WebhookConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`
	MaxAttempts int      `yaml:"max_attempts"`
	QueueSize   int      `yaml:"queue_size"`
	Timeout     Duration `yaml:"timeout"`
}

// RedisConfig enables the view cache when Addr is set.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
	// Prefix namespaces the cache keys of one deployment.
	Prefix string `yaml:"prefix"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration reads Go duration strings ("15s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "probikes.db"},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./data"},
		HTTP:    HTTPConfig{Addr: ":8080", Env: "development"},
		Webhook: WebhookConfig{
			Enabled:     true,
			URL:         "https://hook.us2.make.com/bvpeibjono39q80kiarwcswn7cwwoa6c",
			MaxAttempts: 5,
			QueueSize:   64,
			Timeout:     Duration(10 * time.Second),
		},
		Redis:   RedisConfig{TTL: Duration(10 * time.Minute), Prefix: "probikes:"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Options tunes Load.
type Options struct {
	// Path of the YAML file; falls back to $PROBIKES_CONFIG. Empty skips the
	// file layer.
	Path string
	// EnvFile is loaded with godotenv when present (default ".env").
	EnvFile string
}

// Load builds and validates the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := Default()
	path := opts.Path
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or nothing.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnv overlays PROBIKES_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup("PROBIKES_" + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("PROBIKES_%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("PROBIKES_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("PROBIKES_%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("DOCUMENT_KEY", &c.Storage.DocumentKey)

	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("S3_BUCKET", &c.Blob.S3.Bucket)
	str("S3_REGION", &c.Blob.S3.Region)
	str("S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("S3_PREFIX", &c.Blob.S3.Prefix)
	boolean("S3_PATH_STYLE", &c.Blob.S3.PathStyle)
	str("S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)

	str("HTTP_ADDR", &c.HTTP.Addr)
	str("ENV", &c.HTTP.Env)
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	str("JWT_SECRET", &c.Auth.JWTSecret)

	boolean("WEBHOOK_ENABLED", &c.Webhook.Enabled)
	str("WEBHOOK_URL", &c.Webhook.URL)
	integer("WEBHOOK_MAX_ATTEMPTS", &c.Webhook.MaxAttempts)
	integer("WEBHOOK_QUEUE_SIZE", &c.Webhook.QueueSize)
	duration("WEBHOOK_TIMEOUT", &c.Webhook.Timeout)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	duration("REDIS_TTL", &c.Redis.TTL)
	str("REDIS_PREFIX", &c.Redis.Prefix)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Storage.Driver, "memory", "blob", "sqlite", "postgres") {
		errs = append(errs, fmt.Errorf("storage.driver %q must be memory, blob, sqlite or postgres", c.Storage.Driver))
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLitePath == "" {
		errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
	}
	if !oneOf(c.Blob.Driver, "fs", "memory", "s3") {
		errs = append(errs, fmt.Errorf("blob.driver %q must be fs, memory or s3", c.Blob.Driver))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if !oneOf(c.HTTP.Env, "development", "production", "test") {
		errs = append(errs, fmt.Errorf("http.env %q must be development, production or test", c.HTTP.Env))
	}
	if c.Webhook.Enabled {
		if u, err := url.Parse(c.Webhook.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("webhook.url %q is not an absolute URL", c.Webhook.URL))
		}
		if c.Webhook.MaxAttempts < 1 {
			errs = append(errs, errors.New("webhook.max_attempts must be at least 1"))
		}
		if c.Webhook.QueueSize < 1 {
			errs = append(errs, errors.New("webhook.queue_size must be at least 1"))
		}
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("redis.db must not be negative"))
	}
	if !oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "warning", "error") {
		errs = append(errs, fmt.Errorf("logging.level %q is unknown", c.Logging.Level))
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
