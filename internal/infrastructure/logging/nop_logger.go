package logging

import "ytd.app/adminctl/internal/core/ports"

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {}
func (NopLogger) LogError(err error, message string, fields map[string]interface{})       {}
func (NopLogger) SetLogLevel(level ports.LogLevel)                                        {}
func (NopLogger) GetLogLevel() ports.LogLevel                                             { return ports.LogLevelError }

var _ ports.LoggingGateway = NopLogger{}
