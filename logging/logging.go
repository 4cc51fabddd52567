package logging

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// logging levels
const (
	DEBUG = "DEBUG"
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
)

var logger = hclog.New(&hclog.LoggerOptions{
	Name:   "kafkanet",
	Level:  hclog.Info,
	Output: os.Stdout,
})

// SetLogLevel sets the log level for filtering logs. Unknown levels are ignored.
func SetLogLevel(logLevel string) {
	level := hclog.LevelFromString(logLevel)
	if level == hclog.NoLevel {
		logger.Warn(fmt.Sprintf("unknown log level %q, keeping %v", logLevel, logger.GetLevel()))
		return
	}
	logger.SetLevel(level)
}

// Logger returns the underlying structured logger
func Logger() hclog.Logger {
	return logger
}

// Debug logs a message at DEBUG level
func Debug(message string, a ...any) {
	if logger.IsDebug() {
		logger.Debug(fmt.Sprintf(message, a...))
	}
}

// Info logs a message at INFO level
func Info(message string, a ...any) {
	if logger.IsInfo() {
		logger.Info(fmt.Sprintf(message, a...))
	}
}

// Warn logs a message at WARN level
func Warn(message string, a ...any) {
	if logger.IsWarn() {
		logger.Warn(fmt.Sprintf(message, a...))
	}
}

// Error logs a message at ERROR level
func Error(message string, a ...any) {
	logger.Error(fmt.Sprintf(message, a...))
}

// Panic exists with a panic
func Panic(message string, a ...any) {
	panic(fmt.Sprintf(message, a...))
}
