package logging

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"ytd.app/adminctl/internal/core/ports"
)

// ConsoleLogger implements the LoggingGateway interface over a standard logger
type ConsoleLogger struct {
	logger *log.Logger
	mu     sync.RWMutex
	level  ports.LogLevel
}

// NewConsoleLogger creates a new console logger writing to w
func NewConsoleLogger(w io.Writer, level ports.LogLevel) *ConsoleLogger {
	return &ConsoleLogger{
		logger: log.New(w, "[adminctl] ", log.LstdFlags),
		level:  level,
	}
}

// Log logs a message with the specified level
func (l *ConsoleLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}
	if len(fields) > 0 {
		l.logger.Printf("%s: %s (%s)", level, message, formatFields(fields))
	} else {
		l.logger.Printf("%s: %s", level, message)
	}
}

// LogError logs an error
func (l *ConsoleLogger) LogError(err error, message string, fields map[string]interface{}) {
	if !l.shouldLog(ports.LogLevelError) {
		return
	}
	if len(fields) > 0 {
		l.logger.Printf("ERROR: %s: %v (%s)", message, err, formatFields(fields))
	} else {
		l.logger.Printf("ERROR: %s: %v", message, err)
	}
}

// SetLogLevel sets the minimum log level
func (l *ConsoleLogger) SetLogLevel(level ports.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLogLevel returns the current log level
func (l *ConsoleLogger) GetLogLevel() ports.LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *ConsoleLogger) shouldLog(level ports.LogLevel) bool {
	return level >= l.GetLogLevel()
}

// formatFields renders fields in key order so log lines are stable
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

var _ ports.LoggingGateway = (*ConsoleLogger)(nil)
