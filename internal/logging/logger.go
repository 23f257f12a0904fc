// Package logging provides categorized file-based logging for Foresight.
// Each category writes to its own file under <data dir>/logs/. Logging is
// a silent no-op unless debug mode is enabled at initialization.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and wiring
	CategoryEngine      Category = "engine"      // Learn/predict entry points
	CategoryModels      Category = "models"      // Per-model learning and scoring
	CategoryPipeline    Category = "pipeline"    // Debounce/dedup/generation stages
	CategoryHistory     Category = "history"     // History store and pattern tally
	CategoryStore       Category = "store"       // State store persistence
	CategoryEvents      Category = "events"      // Event bus activity
	CategoryWatcher     Category = "watcher"     // Workspace watcher
	CategoryPerformance Category = "performance" // Timers and slow operations
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger bound to one category's log file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	debugMode bool
	logLevel  = LevelInfo
	stateMu   sync.RWMutex
)

// Initialize sets up the logging directory. When debug is false the whole
// package degrades to no-ops and no directory is created.
func Initialize(dataDir string, debug bool, level string) error {
	stateMu.Lock()
	debugMode = debug
	logLevel = parseLevel(level)
	stateMu.Unlock()

	if !debug {
		return nil
	}
	if dataDir == "" {
		return fmt.Errorf("data directory required")
	}

	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	stateMu.Lock()
	logsDir = dir
	stateMu.Unlock()

	Boot("=== Foresight logging initialized ===")
	Boot("Logs directory: %s, level: %s", dir, level)
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return debugMode
}

// Get returns (or creates) the logger for a category. A no-op logger is
// returned when debug mode is off or the log file cannot be opened.
func Get(category Category) *Logger {
	stateMu.RLock()
	enabled := debugMode && logsDir != ""
	dir := logsDir
	stateMu.RUnlock()

	if !enabled {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date-prefixed filename keeps rotation a matter of deleting old files.
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	file, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file for %s: %v\n", category, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

func currentLevel() int {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return logLevel
}

// CloseAll flushes and closes every open log file. Call on shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for cat, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
		delete(loggers, cat)
	}
}

// Convenience helpers per category.

func Boot(format string, args ...interface{})          { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})     { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...interface{})     { Get(CategoryBoot).Error(format, args...) }
func Engine(format string, args ...interface{})        { Get(CategoryEngine).Info(format, args...) }
func EngineDebug(format string, args ...interface{})   { Get(CategoryEngine).Debug(format, args...) }
func EngineError(format string, args ...interface{})   { Get(CategoryEngine).Error(format, args...) }
func Models(format string, args ...interface{})        { Get(CategoryModels).Info(format, args...) }
func ModelsDebug(format string, args ...interface{})   { Get(CategoryModels).Debug(format, args...) }
func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debug(format, args...) }
func History(format string, args ...interface{})       { Get(CategoryHistory).Info(format, args...) }
func HistoryDebug(format string, args ...interface{})  { Get(CategoryHistory).Debug(format, args...) }
func Store(format string, args ...interface{})         { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})    { Get(CategoryStore).Debug(format, args...) }
func StoreError(format string, args ...interface{})    { Get(CategoryStore).Error(format, args...) }
func Events(format string, args ...interface{})        { Get(CategoryEvents).Info(format, args...) }
func EventsDebug(format string, args ...interface{})   { Get(CategoryEvents).Debug(format, args...) }
func Watcher(format string, args ...interface{})       { Get(CategoryWatcher).Info(format, args...) }
func WatcherDebug(format string, args ...interface{})  { Get(CategoryWatcher).Debug(format, args...) }
func WatcherError(format string, args ...interface{})  { Get(CategoryWatcher).Error(format, args...) }

// Timer measures an operation's duration and logs it to the performance
// category when stopped.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop ends the timer and logs the elapsed duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(CategoryPerformance).Debug("%s/%s took %v", t.category, t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when elapsed exceeds the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(CategoryPerformance).Warn("SLOW: %s/%s took %v (threshold %v)", t.category, t.operation, elapsed, threshold)
	} else {
		Get(CategoryPerformance).Debug("%s/%s took %v", t.category, t.operation, elapsed)
	}
	return elapsed
}
