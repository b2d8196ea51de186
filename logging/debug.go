package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// DebugLogger provides verbose debug logging for troubleshooting the
// gateway's subsystems. It writes to a dedicated debug.log file and can be
// filtered to a subset of subsystems.
type DebugLogger struct {
	file    *os.File
	mu      sync.Mutex
	closed  bool
	filters map[string]bool // Subsystem filters (empty = log all)
}

// Global debug logger instance
var globalDebugLogger *DebugLogger
var globalDebugMu sync.RWMutex

// Known subsystem names for filtering
var knownSubsystems = []string{
	"engine",
	"registry",
	"source",
	"sse",
	"web",
	"mqtt",
	"valkey",
	"kafka",
	"notify",
	"debug",
}

// NewDebugLogger creates a new debug logger that writes to the specified path.
// The file is created fresh (truncated if it exists) for each session.
func NewDebugLogger(path string) (*DebugLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log file: %w", err)
	}

	logger := &DebugLogger{
		file:    file,
		filters: make(map[string]bool),
	}

	logger.Log("debug", "Debug logging started - %s", time.Now().Format(time.RFC3339))

	return logger, nil
}

// SetFilter sets the subsystem filter for logging.
// The filter can be a single subsystem or comma-separated list.
// Empty string means log all subsystems.
func (l *DebugLogger) SetFilter(filter string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.filters = make(map[string]bool)

	if filter == "" {
		return // Empty filter = log all
	}

	for _, s := range strings.Split(filter, ",") {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			l.filters[s] = true
		}
	}

	if len(l.filters) > 0 {
		filterList := make([]string, 0, len(l.filters))
		for s := range l.filters {
			filterList = append(filterList, s)
		}
		timestamp := time.Now().Format("2006-01-02 15:04:05.000")
		fmt.Fprintf(l.file, "%s [debug] Filtering enabled for subsystems: %s\n",
			timestamp, strings.Join(filterList, ", "))
	}
}

// KnownSubsystems returns the list of subsystem names used for filtering.
func KnownSubsystems() []string {
	return append([]string{}, knownSubsystems...)
}

// shouldLog returns true if the subsystem should be logged based on the
// current filter. Must be called with l.mu held.
func (l *DebugLogger) shouldLog(subsystem string) bool {
	if len(l.filters) == 0 {
		return true
	}

	sub := strings.ToLower(subsystem)
	if l.filters[sub] {
		return true
	}

	// Always allow debug messages (for header/footer)
	return sub == "debug"
}

// SetGlobalDebugLogger sets the global debug logger instance.
func SetGlobalDebugLogger(logger *DebugLogger) {
	globalDebugMu.Lock()
	defer globalDebugMu.Unlock()
	globalDebugLogger = logger
}

// GetGlobalDebugLogger returns the global debug logger instance.
func GetGlobalDebugLogger() *DebugLogger {
	globalDebugMu.RLock()
	defer globalDebugMu.RUnlock()
	return globalDebugLogger
}

// DebugLog writes to the global debug logger, if one is set.
func DebugLog(subsystem, format string, args ...interface{}) {
	globalDebugMu.RLock()
	logger := globalDebugLogger
	globalDebugMu.RUnlock()
	logger.Log(subsystem, format, args...)
}

// Log writes a formatted message with timestamp and subsystem prefix.
func (l *DebugLogger) Log(subsystem, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if !l.shouldLog(subsystem) {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "%s [%s] %s\n", timestamp, subsystem, msg)
}

// Close closes the debug log file.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}
