package internal

import (
	"io"
	"log"
	"os"
	"sync"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var (
	logMu    sync.Mutex
	logLevel = LogLevelWarn
	logger   = log.New(os.Stderr, "chef-chat ", log.LstdFlags)
)

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	logLevel = level
}

// SetVerbose enables verbose (debug) logging. Without it only warnings and
// errors are printed, so streamed output stays readable.
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LogLevelDebug)
	} else {
		SetLogLevel(LogLevelWarn)
	}
}

// SetLogOutput redirects log output, e.g. away from the terminal while the
// interactive chat owns the screen. It returns the previous writer.
func SetLogOutput(w io.Writer) io.Writer {
	logMu.Lock()
	defer logMu.Unlock()
	prev := logger.Writer()
	logger.SetOutput(w)
	return prev
}

func enabled(level LogLevel) bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logLevel >= level
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	if enabled(LogLevelError) {
		logger.Printf("[ERROR] "+format, args...)
	}
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	if enabled(LogLevelWarn) {
		logger.Printf("[WARN] "+format, args...)
	}
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	if enabled(LogLevelInfo) {
		logger.Printf("[INFO] "+format, args...)
	}
}

// LogDebug logs a debug message
func LogDebug(format string, args ...interface{}) {
	if enabled(LogLevelDebug) {
		logger.Printf("[DEBUG] "+format, args...)
	}
}
