// Package logging wires the workspace debug log: slog text output into
// a size-rotated file under .margin/.
package logging

import (
	"log/slog"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/margin-labs/margin/internal/infrastructure/storage"
)

var (
	once   sync.Once
	logger *slog.Logger
	sink   *lumberjack.Logger
)

// WorkspaceLogger returns the singleton debug logger writing to
// .margin/margin.log with rotation.
func WorkspaceLogger(root string) *slog.Logger {
	once.Do(func() {
		sink = &lumberjack.Logger{
			Filename:   filepath.Join(root, storage.MarginDir, "margin.log"),
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		logger = slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	})
	return logger
}

// Close flushes and closes the rotating sink.
func Close() error {
	if sink == nil {
		return nil
	}
	return sink.Close()
}
