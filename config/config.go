package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML file layered under the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Import    ImportConfig    `koanf:"import"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
	// DSN overrides the host/port fields; required for sqlite.
	DSN string `koanf:"dsn"`

	TxTimeout  time.Duration `koanf:"tx_timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type NATSConfig struct {
	URL    string `koanf:"url"`
	Stream string `koanf:"stream"`
}

type SecurityConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	// PasswordHasher is "plaintext" or "bcrypt".
	PasswordHasher string `koanf:"password_hasher"`
}

type ImportConfig struct {
	BatchSize int           `koanf:"batch_size"`
	Timeout   time.Duration `koanf:"timeout"`
	LockTTL   time.Duration `koanf:"lock_ttl"`
}

type StorageConfig struct {
	S3Bucket  string `koanf:"s3_bucket"`
	AWSRegion string `koanf:"aws_region"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "recipeshare",
			SSLMode:    "disable",
			TxTimeout:  10 * time.Second,
			MaxRetries: 5,
		},
		NATS: NATSConfig{
			Stream: "RECIPES",
		},
		Security: SecurityConfig{
			TokenTTL:       24 * time.Hour,
			PasswordHasher: "plaintext",
		},
		Import: ImportConfig{
			BatchSize: 500,
			Timeout:   10 * time.Minute,
			LockTTL:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Requests: 0,
			Window:   time.Minute,
		},
	}
}

// envMappings maps environment variable names to koanf paths. Variables not
// listed here are ignored.
var envMappings = map[string]string{
	"db_driver":           "database.driver",
	"db_host":             "database.host",
	"db_port":             "database.port",
	"db_user":             "database.user",
	"db_password":         "database.password",
	"db_name":             "database.name",
	"db_ssl_mode":         "database.ssl_mode",
	"db_dsn":              "database.dsn",
	"db_tx_timeout":       "database.tx_timeout",
	"db_max_retries":      "database.max_retries",
	"redis_url":           "redis.url",
	"nats_url":            "nats.url",
	"nats_stream":         "nats.stream",
	"jwt_secret":          "security.jwt_secret",
	"token_ttl":           "security.token_ttl",
	"password_hasher":     "security.password_hasher",
	"import_batch_size":   "import.batch_size",
	"import_timeout":      "import.timeout",
	"import_lock_ttl":     "import.lock_ttl",
	"s3_bucket_name":      "storage.s3_bucket",
	"aws_region":          "storage.aws_region",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
	"rate_limit_requests": "rate_limit.requests",
	"rate_limit_window":   "rate_limit.window",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// environment variables and, for values still unset, docker secrets.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Database.Password == "" {
		cfg.Database.Password = readSecret("db_password")
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = readSecret("jwt_secret")
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// PostgresDSN renders the libpq keyword/value connection string.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
