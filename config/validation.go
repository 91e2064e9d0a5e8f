package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	env := GetEnvironment()

	var errs []ValidationError
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" {
			if cfg.Database.Host == "" {
				add("database.host", "required for postgres")
			}
			if cfg.Database.Name == "" {
				add("database.name", "required for postgres")
			}
			if cfg.Database.User == "" {
				add("database.user", "required for postgres")
			}
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			add("database.dsn", "required for sqlite")
		}
	default:
		add("database.driver", fmt.Sprintf("unsupported driver %q", cfg.Database.Driver))
	}

	if cfg.Database.TxTimeout <= 0 {
		add("database.tx_timeout", "must be positive")
	}
	if cfg.Database.MaxRetries < 0 {
		add("database.max_retries", "must not be negative")
	}
	if cfg.Import.BatchSize <= 0 {
		add("import.batch_size", "must be positive")
	}
	if cfg.Import.Timeout <= 0 {
		add("import.timeout", "must be positive")
	}
	if cfg.RateLimit.Requests < 0 {
		add("rate_limit.requests", "must not be negative")
	}
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window <= 0 {
		add("rate_limit.window", "must be positive when rate limiting is enabled")
	}

	switch cfg.Security.PasswordHasher {
	case "plaintext", "bcrypt":
	default:
		add("security.password_hasher", fmt.Sprintf("unsupported hasher %q", cfg.Security.PasswordHasher))
	}

	if env == Production {
		if cfg.Security.JWTSecret == "" {
			add("security.jwt_secret", "jwt_secret secret is required in production")
		}
		if cfg.Security.PasswordHasher == "plaintext" {
			add("security.password_hasher", "plaintext passwords are not allowed in production")
		}
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(msgs, "\n"))
	}

	return nil
}
