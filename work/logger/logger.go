package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel orders message severities; messages below the active level are
// dropped.
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// current holds the process-wide log level. Captures run for hours, so the
// level can be flipped at runtime without tearing anything down.
var current atomic.Int32

func init() {
	current.Store(int32(INFO))
}

// ParseLevel converts a config string to a LogLevel, defaulting to INFO.
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// SetLevel sets the process-wide log level from its string form.
func SetLevel(level string) {
	current.Store(int32(ParseLevel(level)))
}

// Level returns the active log level as a string.
func Level() string {
	switch LogLevel(current.Load()) {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

func enabled(level LogLevel) bool {
	return level >= LogLevel(current.Load())
}

func emit(tag string, format string, v ...interface{}) {
	log.Printf("[%s] %s", tag, fmt.Sprintf(format, v...))
}

// Debug logs a debug-level message.
func Debug(format string, v ...interface{}) {
	if enabled(DEBUG) {
		emit("DEBUG", format, v...)
	}
}

// Info logs an info-level message.
func Info(format string, v ...interface{}) {
	if enabled(INFO) {
		emit("INFO", format, v...)
	}
}

// Warn logs a warning-level message.
func Warn(format string, v ...interface{}) {
	if enabled(WARN) {
		emit("WARN", format, v...)
	}
}

// Error logs an error-level message.
func Error(format string, v ...interface{}) {
	if enabled(ERROR) {
		emit("ERROR", format, v...)
	}
}
