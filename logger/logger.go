package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu           sync.Mutex
	globalLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	files        []*os.File
)

type Config struct {
	Level   string   `mapstructure:"level"`   // debug/info/warn/error
	Outputs []string `mapstructure:"outputs"` // stdout/stderr/file path
	Format  string   `mapstructure:"format"`  // text/json
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init 按配置重建全局 logger，可多次调用
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	var (
		writers []io.Writer
		opened  []*os.File
	)
	for _, output := range cfg.Outputs {
		switch output {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				closeAll(opened)
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				closeAll(opened)
				return fmt.Errorf("failed to open log file: %w", err)
			}
			opened = append(opened, file)
			writers = append(writers, file)
		}
	}

	// 未指定输出时默认 stdout
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	w := io.MultiWriter(writers...)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		closeAll(opened)
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	closeAll(files)
	files = opened
	globalLogger = slog.New(handler)
	return nil
}

// Close 关闭日志文件
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeAll(files)
	files = nil
}

func closeAll(fs []*os.File) {
	for _, f := range fs {
		_ = f.Close()
	}
}

func Debug(msg string, args ...interface{}) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger().Error(msg, args...)
}

func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}
