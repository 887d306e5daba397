package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// Per-module colors for tagged log lines.
var tagColors = map[string]string{
	"Bootstrap": "\x1b[96m",
	"HTTP":      "\x1b[95m",
	"WebSocket": "\x1b[92m",
	"VAD":       "\x1b[93m",
	"ASR":       "\x1b[35m",
	"LLM":       "\x1b[34m",
	"TTS":       "\x1b[95m",
	"Session":   "\x1b[94m",
	"Scenario":  "\x1b[36m",
	"Feedback":  "\x1b[90m",
	"Cache":     "\x1b[97m",
}

// consoleHandler renders colored single-line output for terminals.
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelColor, levelStr string
	switch r.Level {
	case slog.LevelDebug:
		levelColor, levelStr = colorDebug, "DEBUG"
	case slog.LevelWarn:
		levelColor, levelStr = colorWarn, "WARN"
	case slog.LevelError:
		levelColor, levelStr = colorError, "ERROR"
	default:
		levelColor, levelStr = colorInfo, "INFO"
	}

	msg := r.Message
	var output string
	if tag, rest, ok := splitTag(msg); ok {
		color := tagColors[tag]
		if color == "" {
			color = levelColor
		}
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			color, tag, colorReset,
			rest)
	} else {
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *consoleHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(string) slog.Handler      { return h }

func splitTag(msg string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", "", false
	}
	end := strings.IndexByte(msg, ']')
	if end <= 1 {
		return "", "", false
	}
	return msg[1:end], strings.TrimSpace(msg[end+1:]), true
}

// Logger writes colored text to stdout and JSON lines to an optional file.
type Logger struct {
	console *slog.Logger
	file    *slog.Logger
	logFile *os.File
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. A file sink is attached only when cfg.Dir is set.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	logger := &Logger{
		console: slog.New(&consoleHandler{writer: os.Stdout, level: level}),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := cfg.Filename
		if name == "" {
			name = "server.log"
		}
		file, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.logFile = file
		logger.file = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}

	return logger, nil
}

func (l *Logger) log(level slog.Level, msg string) {
	switch level {
	case slog.LevelDebug:
		l.console.Debug(msg)
		if l.file != nil {
			l.file.Debug(msg)
		}
	case slog.LevelWarn:
		l.console.Warn(msg)
		if l.file != nil {
			l.file.Warn(msg)
		}
	case slog.LevelError:
		l.console.Error(msg)
		if l.file != nil {
			l.file.Error(msg)
		}
	default:
		l.console.Info(msg)
		if l.file != nil {
			l.file.Info(msg)
		}
	}
}

func (l *Logger) Debug(format string, args ...any) { l.log(slog.LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Info(format string, args ...any)  { l.log(slog.LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(format string, args ...any)  { l.log(slog.LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Error(format string, args ...any) { l.log(slog.LevelError, fmt.Sprintf(format, args...)) }

func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.log(slog.LevelDebug, "["+tag+"] "+fmt.Sprintf(format, args...))
}

func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.log(slog.LevelInfo, "["+tag+"] "+fmt.Sprintf(format, args...))
}

func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.log(slog.LevelWarn, "["+tag+"] "+fmt.Sprintf(format, args...))
}

func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.log(slog.LevelError, "["+tag+"] "+fmt.Sprintf(format, args...))
}

// Slog exposes the console logger for integrations expecting *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.console
}

// Close releases the file sink if one was opened.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Discard returns a logger that swallows everything. Used in tests.
func Discard() *Logger {
	return &Logger{
		console: slog.New(&consoleHandler{writer: io.Discard, level: slog.LevelError + 4}),
	}
}
