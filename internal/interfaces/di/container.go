package di

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "ytd.app/adminctl/internal/application/config"
	"ytd.app/adminctl/internal/application/services"
	configdomain "ytd.app/adminctl/internal/core/domain/config"
	httpdomain "ytd.app/adminctl/internal/core/domain/http"
	"ytd.app/adminctl/internal/core/ports"
	configinfra "ytd.app/adminctl/internal/infrastructure/config"
	httpinfra "ytd.app/adminctl/internal/infrastructure/http"
	"ytd.app/adminctl/internal/infrastructure/logging"
	"ytd.app/adminctl/internal/infrastructure/notify"
	"ytd.app/adminctl/internal/infrastructure/storage"
)

// redisPingTimeout bounds the startup check of the redis backend
const redisPingTimeout = 2 * time.Second

// Options selects how the container is built
type Options struct {
	// ConfigPath is an explicit config file; "" looks up the default path
	ConfigPath string

	// Overrides are command line values keyed by config field name
	Overrides map[string]interface{}

	// Stderr receives logs and notifications (default: os.Stderr)
	Stderr io.Writer

	// Storage replaces the configured credential backend, for tests
	Storage ports.Storage
}

// Container holds all application dependencies
type Container struct {
	Config   configdomain.Config
	Snapshot configdomain.Snapshot
	Logger   *logging.ConsoleLogger
	Notifier *notify.Async
	Storage  ports.Storage
	Session  *services.Session
	Accounts *services.AccountService

	configPath string
	redis      *redis.Client
}

// NewContainer loads the configuration and wires every component from it
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Config problems are reported before the configured level is known
	logger := logging.NewConsoleLogger(stderr, ports.LogLevelWarn)

	fileLoader := configinfra.NewFileLoader(opts.ConfigPath)
	aggregator := appconfig.NewAggregator(
		configinfra.NewConfigValidator(logger),
		fileLoader,
		configinfra.NewEnvLoader(),
	)
	cfg, snap, err := aggregator.Load(ctx, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLogLevel(ports.ParseLogLevel(cfg.LogLevel))

	c := &Container{
		Config:     cfg,
		Snapshot:   snap,
		Logger:     logger,
		configPath: fileLoader.Path(),
	}

	c.initializeComponents(ctx, stderr, opts.Storage)
	return c, nil
}

func (c *Container) initializeComponents(ctx context.Context, stderr io.Writer, override ports.Storage) {
	if override != nil {
		c.Storage = override
	} else {
		c.Storage = c.openStorage(ctx)
	}

	c.Notifier = notify.NewAsync(notify.NewConsole(stderr), 0)

	endpoint := httpdomain.BackendEndpoint{
		BaseURL:   c.Config.APIURL,
		UserAgent: c.Config.UserAgent,
	}
	c.Session = services.NewSession(services.SessionConfig{
		Endpoint:       endpoint,
		HTTPClient:     &http.Client{Transport: httpinfra.NewLoggingRoundTripper(nil, c.Logger)},
		RequestTimeout: c.Config.Timeout,
		RefreshTimeout: c.Config.RefreshTimeout,
		CsrfTimeout:    c.Config.CsrfTimeout,
		Storage:        c.Storage,
		Notifier:       c.Notifier,
		Logger:         c.Logger,
		OnLogout: func(cause error) {
			c.Logger.Log(ports.LogLevelDebug, "session terminated", map[string]interface{}{"cause": fmt.Sprint(cause)})
		},
	})
	c.Accounts = services.NewAccountService(c.Session, c.Logger)
}

// openStorage creates the configured credential backend. A backend that
// cannot be opened leaves credentials in memory for this run.
func (c *Container) openStorage(ctx context.Context) ports.Storage {
	switch c.Config.Storage {
	case configdomain.StorageMemory:
		return storage.NewMemory()
	case configdomain.StorageRedis:
		c.redis = redis.NewClient(&redis.Options{Addr: c.Config.RedisAddr})
		backend := storage.NewRedis(c.redis, c.Config.RedisPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			c.Logger.LogError(err, "Credential storage unavailable, using memory", map[string]interface{}{
				"addr": c.Config.RedisAddr,
			})
			return nil
		}
		return backend
	default:
		backend, err := storage.NewEncryptedFile(c.Config.StoragePath)
		if err != nil {
			c.Logger.LogError(err, "Credential storage unavailable, using memory", map[string]interface{}{
				"path": c.Config.StoragePath,
			})
			return nil
		}
		return backend
	}
}

// ConfigPath returns the config file that was consulted
func (c *Container) ConfigPath() string {
	return c.configPath
}

// Shutdown releases the container's resources. The session stays open so
// persisted credentials survive the process; logout is what ends it.
func (c *Container) Shutdown() {
	if c.Notifier != nil {
		c.Notifier.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.LogError(err, "Failed to close redis client", nil)
		}
		c.redis = nil
	}
}
