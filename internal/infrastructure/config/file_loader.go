package configinfra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	configdomain "ytd.app/adminctl/internal/core/domain/config"
	configports "ytd.app/adminctl/internal/core/ports/config"
)

// DefaultConfigPath is where the config file is looked up when none is given
const DefaultConfigPath = "~/.adminctl/config.yaml"

// fileConfig is the YAML layout of the config file
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	UserAgent      string `yaml:"user_agent"`
	Timeout        string `yaml:"timeout"`
	RefreshTimeout string `yaml:"refresh_timeout"`
	CsrfTimeout    string `yaml:"csrf_timeout"`
	LogLevel       string `yaml:"log_level"`
	Debug          *bool  `yaml:"debug"`
	Storage        struct {
		Kind string `yaml:"kind"`
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
}

// FileLoader reads the YAML config file. A missing file yields an empty
// snapshot unless the path was given explicitly.
type FileLoader struct {
	path     string
	explicit bool
}

// NewFileLoader creates a loader for path ("" means DefaultConfigPath)
func NewFileLoader(path string) *FileLoader {
	if path == "" {
		return &FileLoader{path: DefaultConfigPath}
	}
	return &FileLoader{path: path, explicit: true}
}

func (l *FileLoader) Name() string { return "file" }

// Path returns the expanded config file path
func (l *FileLoader) Path() string { return ExpandPath(l.path) }

func (l *FileLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	path := l.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !l.explicit {
			return snap, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	toEntry := func(field string, v interface{}) {
		snap[field] = configdomain.Entry{Key: field, Value: v, Source: "file", SourcePath: path, Priority: configdomain.PriorityFile}
	}
	for field, v := range map[string]string{
		configdomain.FieldAPIURL:         fc.APIURL,
		configdomain.FieldUserAgent:      fc.UserAgent,
		configdomain.FieldTimeout:        fc.Timeout,
		configdomain.FieldRefreshTimeout: fc.RefreshTimeout,
		configdomain.FieldCsrfTimeout:    fc.CsrfTimeout,
		configdomain.FieldLogLevel:       fc.LogLevel,
		configdomain.FieldStorage:        fc.Storage.Kind,
		configdomain.FieldStoragePath:    fc.Storage.Path,
		configdomain.FieldRedisAddr:      fc.Redis.Addr,
		configdomain.FieldRedisPrefix:    fc.Redis.Prefix,
	} {
		if v != "" {
			toEntry(field, v)
		}
	}
	if fc.Debug != nil {
		toEntry(configdomain.FieldDebug, *fc.Debug)
	}
	return snap, nil
}

// ExpandPath replaces a leading "~/" with the home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

var _ configports.Loader = (*FileLoader)(nil)
