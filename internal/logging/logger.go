// Package logging provides config-gated categorized file logging.
// Logs are written to <workspace>/.crawler/logs/ with one file per category
// per day. When debug mode is off every call is a silent no-op.
package logging

import (
	"encoding/json"
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
	CategoryBoot       Category = "boot"       // startup and config
	CategoryDiscovery  Category = "discovery"  // URL discovery routing
	CategoryCache      Category = "cache"      // discovery cache reads/writes
	CategoryCollector  Category = "collector"  // fetching and cleaning
	CategoryChunker    Category = "chunker"    // chunk production
	CategoryRouter     Category = "router"     // AI routing decisions
	CategoryNotebookLM Category = "notebooklm" // NotebookLM driver steps
	CategoryLLM        Category = "llm"        // hosted LLM calls
	CategoryPipeline   Category = "pipeline"   // run lifecycle
	CategoryBrowser    Category = "browser"    // browser session lifecycle
)

// Options mirrors config.LoggingConfig to avoid importing the config package.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// structuredEntry is the JSON line format when JSONFormat is on.
type structuredEntry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	logLevel  int
)

// Initialize sets up the logging directory from the given options.
// Should be called once at startup with the workspace path.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	logsDir = filepath.Join(workspace, ".crawler", "logs")

	if !o.DebugMode {
		return nil // silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== crawler logging initialized ===")
	boot.Info("logs directory: %s", logsDir)
	boot.Info("level: %s json: %v", o.Level, o.JSONFormat)
	return nil
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
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

	// Date prefix keeps rotation a plain file-delete.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open %s: %v\n", logPath, err)
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

func (l *Logger) emit(level int, name, format string, args ...any) {
	if l.logger == nil {
		return
	}
	if level != LevelError && logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	optsMu.RLock()
	jsonFmt := opts.JSONFormat
	optsMu.RUnlock()

	if jsonFmt {
		entry := structuredEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     name,
			Message:   msg,
		}
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", name, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, "DEBUG", format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, "INFO", format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, "WARN", format, args...) }

// Error logs an error message (always written if the logger exists).
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, "ERROR", format, args...) }

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions. No-ops when the category is disabled.

func Discovery(format string, args ...any)      { Get(CategoryDiscovery).Info(format, args...) }
func DiscoveryDebug(format string, args ...any) { Get(CategoryDiscovery).Debug(format, args...) }
func DiscoveryError(format string, args ...any) { Get(CategoryDiscovery).Error(format, args...) }

func Cache(format string, args ...any)      { Get(CategoryCache).Info(format, args...) }
func CacheDebug(format string, args ...any) { Get(CategoryCache).Debug(format, args...) }
func CacheError(format string, args ...any) { Get(CategoryCache).Error(format, args...) }

func Collector(format string, args ...any)      { Get(CategoryCollector).Info(format, args...) }
func CollectorDebug(format string, args ...any) { Get(CategoryCollector).Debug(format, args...) }
func CollectorWarn(format string, args ...any)  { Get(CategoryCollector).Warn(format, args...) }
func CollectorError(format string, args ...any) { Get(CategoryCollector).Error(format, args...) }

func Chunker(format string, args ...any)      { Get(CategoryChunker).Info(format, args...) }
func ChunkerDebug(format string, args ...any) { Get(CategoryChunker).Debug(format, args...) }

func Router(format string, args ...any)      { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...any) { Get(CategoryRouter).Debug(format, args...) }
func RouterError(format string, args ...any) { Get(CategoryRouter).Error(format, args...) }

func NotebookLM(format string, args ...any)      { Get(CategoryNotebookLM).Info(format, args...) }
func NotebookLMDebug(format string, args ...any) { Get(CategoryNotebookLM).Debug(format, args...) }
func NotebookLMError(format string, args ...any) { Get(CategoryNotebookLM).Error(format, args...) }

func LLM(format string, args ...any)      { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...any) { Get(CategoryLLM).Debug(format, args...) }
func LLMError(format string, args ...any) { Get(CategoryLLM).Error(format, args...) }

func Pipeline(format string, args ...any)      { Get(CategoryPipeline).Info(format, args...) }
func PipelineDebug(format string, args ...any) { Get(CategoryPipeline).Debug(format, args...) }
func PipelineError(format string, args ...any) { Get(CategoryPipeline).Error(format, args...) }

func Browser(format string, args ...any)      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...any) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...any)  { Get(CategoryBrowser).Warn(format, args...) }
func BrowserError(format string, args ...any) { Get(CategoryBrowser).Error(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
