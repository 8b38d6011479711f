package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger is the process-wide logger. Read it through GetLogger.
var Logger *slog.Logger

var (
	mu      sync.RWMutex
	sink    io.Closer
	errInit = errors.New("logger already initialized; call Close() first to reinitialize")
)

// LogLevel is a level name as it appears in config files.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
// Unknown names fall back to INFO.
func ParseLevel(s string) LogLevel {
	l := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if l == "WARNING" {
		return LevelWarn
	}
	if _, ok := slogLevels[l]; ok {
		return l
	}
	return LevelInfo
}

func (l LogLevel) slogLevel() slog.Level {
	if lvl, ok := slogLevels[l]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Config selects where log records go and how they are encoded.
type Config struct {
	Level      LogLevel
	OutputPath string    // empty means stderr
	Format     string    // "json" or "text"
	Writer     io.Writer // takes precedence over OutputPath
}

func (c Config) open() (io.Writer, io.Closer, error) {
	switch {
	case c.Writer != nil:
		return c.Writer, nil, nil
	case c.OutputPath == "":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.OutputPath), 0o750); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(c.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init installs the process logger. It fails if a logger is already
// installed; Close first to replace it.
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()
	if Logger != nil {
		return errInit
	}

	w, closer, err := config.open()
	if err != nil {
		return err
	}
	Logger = slog.New(newHandler(w, config.Format, config.Level.slogLevel()))
	sink = closer
	return nil
}

// InitDefault installs an INFO text logger on stderr unless one exists.
func InitDefault() {
	mu.Lock()
	defer mu.Unlock()
	if Logger == nil {
		Logger = slog.New(newHandler(os.Stderr, "text", slog.LevelInfo))
	}
}

// Close uninstalls the logger and closes its log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	Logger = nil
	if sink == nil {
		return nil
	}
	err := sink.Close()
	sink = nil
	return err
}

// GetLogger returns the installed logger, installing the default first if
// nothing has called Init.
func GetLogger() *slog.Logger {
	mu.RLock()
	l := Logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	InitDefault()
	mu.RLock()
	defer mu.RUnlock()
	return Logger
}

func Debug(msg string, args ...any) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...any) { GetLogger().Error(msg, args...) }
