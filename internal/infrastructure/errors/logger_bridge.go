package errors

import (
	"fmt"

	"vigil/internal/infrastructure/logging"
)

// LoggerBridge adapts a logging.Logger to the RetryLogger interface so
// retry progress lands in the structured log.
type LoggerBridge struct {
	logger logging.Logger
}

// NewLoggerBridge wraps the given logger; nil falls back to the default.
func NewLoggerBridge(logger logging.Logger) RetryLogger {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &LoggerBridge{logger: logger}
}

// Printf implements RetryLogger. Retry chatter is operational noise, so
// it logs at debug.
func (b *LoggerBridge) Printf(format string, v ...interface{}) {
	b.logger.Debug(fmt.Sprintf(format, v...), "source", "retry")
}
