package configinfra

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
	"ytd.app/adminctl/internal/core/ports"
	configports "ytd.app/adminctl/internal/core/ports/config"
)

const maxTimeout = 5 * time.Minute

// ConfigValidator validates configuration values
type ConfigValidator struct {
	logger ports.LoggingGateway
}

// NewConfigValidator creates a new configuration validator. logger receives
// warnings that do not fail validation and may be nil.
func NewConfigValidator(logger ports.LoggingGateway) *ConfigValidator {
	return &ConfigValidator{logger: logger}
}

// Validate checks every field and reports all failures at once
func (v *ConfigValidator) Validate(cfg configdomain.Config) error {
	failures := v.ValidateAll(cfg)
	if len(failures) == 0 {
		return nil
	}

	fields := make([]string, 0, len(failures))
	for field := range failures {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	errs := make([]error, 0, len(fields))
	for _, field := range fields {
		errs = append(errs, fmt.Errorf("%s: %w", field, failures[field]))
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

// ValidateAll validates every field, keyed by field name
func (v *ConfigValidator) ValidateAll(cfg configdomain.Config) map[string]error {
	failures := make(map[string]error)
	check := func(field string, err error) {
		if err != nil {
			failures[field] = err
		}
	}

	check(configdomain.FieldAPIURL, v.ValidateAPIURL(cfg.APIURL))
	check(configdomain.FieldTimeout, v.ValidateTimeout(cfg.Timeout))
	check(configdomain.FieldRefreshTimeout, v.ValidateTimeout(cfg.RefreshTimeout))
	check(configdomain.FieldCsrfTimeout, v.ValidateTimeout(cfg.CsrfTimeout))
	check(configdomain.FieldLogLevel, v.ValidateLogLevel(cfg.LogLevel))
	check(configdomain.FieldStorage, v.ValidateStorage(cfg))
	return failures
}

// ValidateAPIURL validates the backend base URL
func (v *ConfigValidator) ValidateAPIURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("API URL cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("URL must not carry a query or fragment")
	}

	// Tokens travel in headers, so plain HTTP is only reasonable locally
	if u.Scheme == "http" && v.logger != nil {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			v.logger.Log(ports.LogLevelWarn, "using a non-HTTPS API URL for a remote host", map[string]interface{}{"url": endpoint})
		}
	}
	return nil
}

// ValidateTimeout validates a timeout duration
func (v *ConfigValidator) ValidateTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if timeout > maxTimeout {
		return fmt.Errorf("timeout too long (maximum %s)", maxTimeout)
	}
	return nil
}

// ValidateLogLevel validates log level value
func (v *ConfigValidator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "warning", "error"}

	normalizedLevel := strings.ToLower(strings.TrimSpace(level))
	for _, valid := range validLevels {
		if normalizedLevel == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (valid levels: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateStorage validates the credential storage settings
func (v *ConfigValidator) ValidateStorage(cfg configdomain.Config) error {
	switch cfg.Storage {
	case configdomain.StorageMemory:
		return nil
	case configdomain.StorageFile:
		if strings.TrimSpace(cfg.StoragePath) == "" {
			return fmt.Errorf("file storage requires a path")
		}
		return nil
	case configdomain.StorageRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return fmt.Errorf("redis storage requires an address")
		}
		return nil
	}
	return fmt.Errorf("unknown storage backend: %q (valid: memory, file, redis)", cfg.Storage)
}

var _ configports.Validator = (*ConfigValidator)(nil)
