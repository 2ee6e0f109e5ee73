package configinfra

import (
	"context"
	"os"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
	configports "ytd.app/adminctl/internal/core/ports/config"
)

// Environment variables read by EnvLoader
const (
	EnvAPIURL         = "ADMIN_API_URL"
	EnvUserAgent      = "ADMIN_USER_AGENT"
	EnvTimeout        = "ADMIN_TIMEOUT"
	EnvRefreshTimeout = "ADMIN_REFRESH_TIMEOUT"
	EnvCsrfTimeout    = "ADMIN_CSRF_TIMEOUT"
	EnvLogLevel       = "ADMIN_LOG_LEVEL"
	EnvDebug          = "ADMIN_DEBUG"
	EnvStorage        = "ADMIN_STORAGE"
	EnvStoragePath    = "ADMIN_STORAGE_PATH"
	EnvRedisAddr      = "ADMIN_REDIS_ADDR"
	EnvRedisPrefix    = "ADMIN_REDIS_PREFIX"
)

var envFields = []struct{ env, field string }{
	{EnvAPIURL, configdomain.FieldAPIURL},
	{EnvUserAgent, configdomain.FieldUserAgent},
	{EnvTimeout, configdomain.FieldTimeout},
	{EnvRefreshTimeout, configdomain.FieldRefreshTimeout},
	{EnvCsrfTimeout, configdomain.FieldCsrfTimeout},
	{EnvLogLevel, configdomain.FieldLogLevel},
	{EnvDebug, configdomain.FieldDebug},
	{EnvStorage, configdomain.FieldStorage},
	{EnvStoragePath, configdomain.FieldStoragePath},
	{EnvRedisAddr, configdomain.FieldRedisAddr},
	{EnvRedisPrefix, configdomain.FieldRedisPrefix},
}

type EnvLoader struct {
	lookup func(string) (string, bool)
}

func NewEnvLoader() *EnvLoader { return &EnvLoader{lookup: os.LookupEnv} }

func (l *EnvLoader) Name() string { return "env" }

// Load implements Loader by returning the environment snapshot.
func (l *EnvLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	return l.LoadEnv(), nil
}

// LoadEnv builds a snapshot from the ADMIN_* environment variables. Values stay
// strings; conversion happens when the snapshot is applied.
func (l *EnvLoader) LoadEnv() configdomain.Snapshot {
	snap := make(configdomain.Snapshot)
	for _, f := range envFields {
		if v, ok := l.lookup(f.env); ok && v != "" {
			snap[f.field] = configdomain.Entry{Key: f.field, Value: v, Source: "env", SourcePath: f.env, Priority: configdomain.PriorityEnv}
		}
	}
	return snap
}

var _ configports.Loader = (*EnvLoader)(nil)
