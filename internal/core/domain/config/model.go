package configdomain

import (
	"fmt"
	"strconv"
	"time"
)

// Field names shared by every configuration source
const (
	FieldAPIURL         = "api_url"
	FieldUserAgent      = "user_agent"
	FieldTimeout        = "timeout"
	FieldRefreshTimeout = "refresh_timeout"
	FieldCsrfTimeout    = "csrf_timeout"
	FieldLogLevel       = "log_level"
	FieldDebug          = "debug"
	FieldStorage        = "storage"
	FieldStoragePath    = "storage_path"
	FieldRedisAddr      = "redis_addr"
	FieldRedisPrefix    = "redis_prefix"
)

// Source priorities, lower wins
const (
	PriorityFlag = 1
	PriorityEnv  = 2
	PriorityFile = 3
)

// Entry represents a single configuration value with provenance and priority.
type Entry struct {
	Key        string
	Value      interface{}
	Source     string
	SourcePath string
	Priority   int
}

// Snapshot is a collection of config entries keyed by field name.
type Snapshot map[string]Entry

// Merge merges another snapshot into this one respecting priority
// (lower number indicates higher priority).
func (s Snapshot) Merge(other Snapshot) {
	for k, e := range other {
		if existing, ok := s[k]; !ok || e.Priority <= existing.Priority {
			s[k] = e
		}
	}
}

// StorageKind selects the credential storage backend
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
)

// Config is the effective client configuration
type Config struct {
	APIURL         string
	UserAgent      string
	Timeout        time.Duration
	RefreshTimeout time.Duration
	CsrfTimeout    time.Duration
	LogLevel       string
	Debug          bool
	Storage        StorageKind
	StoragePath    string
	RedisAddr      string
	RedisPrefix    string
}

// DefaultAPIURL is the backend used when ADMIN_API_URL is not set, a
// locally running admin server
const DefaultAPIURL = "http://localhost:8080"

// Default returns the configuration used when no source sets a field
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		UserAgent:      "adminctl/dev",
		Timeout:        15 * time.Second,
		RefreshTimeout: 15 * time.Second,
		CsrfTimeout:    10 * time.Second,
		LogLevel:       "info",
		Storage:        StorageFile,
		StoragePath:    "~/.adminctl/credentials",
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "adminctl",
	}
}

// Apply copies every entry of snap onto c. Values may be typed or strings.
func (c *Config) Apply(snap Snapshot) error {
	for field, e := range snap {
		if err := c.set(field, e.Value); err != nil {
			return fmt.Errorf("%s from %s (%s): %w", field, e.Source, e.SourcePath, err)
		}
	}
	return nil
}

func (c *Config) set(field string, v interface{}) error {
	var err error
	switch field {
	case FieldAPIURL:
		c.APIURL, err = asString(v)
	case FieldUserAgent:
		c.UserAgent, err = asString(v)
	case FieldTimeout:
		c.Timeout, err = asDuration(v)
	case FieldRefreshTimeout:
		c.RefreshTimeout, err = asDuration(v)
	case FieldCsrfTimeout:
		c.CsrfTimeout, err = asDuration(v)
	case FieldLogLevel:
		c.LogLevel, err = asString(v)
	case FieldDebug:
		c.Debug, err = asBool(v)
	case FieldStorage:
		var s string
		s, err = asString(v)
		c.Storage = StorageKind(s)
	case FieldStoragePath:
		c.StoragePath, err = asString(v)
	case FieldRedisAddr:
		c.RedisAddr, err = asString(v)
	case FieldRedisPrefix:
		c.RedisPrefix, err = asString(v)
	default:
		return fmt.Errorf("unknown field")
	}
	return err
}

func asString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}

func asDuration(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d, nil
		}
		if secs, err := strconv.Atoi(t); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("invalid duration %q", t)
	}
	return 0, fmt.Errorf("expected a duration, got %T", v)
}

func asBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}
