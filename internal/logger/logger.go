package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways is above Error so audit lines (store writes) are never filtered.
const LevelAlways = slog.Level(12)

var (
	logger  *slog.Logger
	logFile *lumberjack.Logger
)

// Initialize sets up the package logger from config.
func Initialize(config Config) error {
	config.fillDefaults()
	level := parseLogLevel(config.Level)

	var handlers []slog.Handler

	if config.ConsoleEnabled {
		h, err := newHandler(os.Stderr, config.ConsoleFormat, level)
		if err != nil {
			return fmt.Errorf("console logging: %w", err)
		}
		handlers = append(handlers, h)
	}

	if config.FileEnabled {
		file := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		h, err := newHandler(file, config.FileFormat, level)
		if err != nil {
			return fmt.Errorf("file logging: %w", err)
		}
		handlers = append(handlers, h)
		logFile = file
	}

	switch len(handlers) {
	case 0:
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	case 1:
		logger = slog.New(handlers[0])
	default:
		logger = slog.New(newMultiHandler(handlers...))
	}
	return nil
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// SetOutput replaces the logger with a single handler writing to w.
func SetOutput(w io.Writer, format string, level slog.Level) error {
	h, err := newHandler(w, format, level)
	if err != nil {
		return err
	}
	logger = slog.New(h)
	return nil
}

// Logger returns the underlying slog logger, or a discarding one before Initialize.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// replaceLevel prints LevelAlways as "ALWAYS" instead of "ERROR+4".
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...any) {
	Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Infof logs a formatted info message
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func Warning(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Warningf logs a formatted warning message
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

// Always logs past any level filter. Used for the audit trail of store writes.
func Always(msg string, args ...any) {
	if logger != nil {
		logger.Log(context.Background(), LevelAlways, msg, args...)
	}
}

// Alwaysf logs a formatted message past any level filter
func Alwaysf(format string, args ...any) {
	Always(fmt.Sprintf(format, args...))
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

// Enabled reports whether any handler accepts the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every handler enabled for its level.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newMultiHandler(handlers...)
}

// WithGroup implements slog.Handler.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newMultiHandler(handlers...)
}
