package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/npratt/botctl/internal/config"
)

// dashboardLog is where the dashboard sends its logs: a rotating file, or
// nowhere when paths.debug_log is empty. Nothing may reach stderr while the
// dashboard owns the terminal.
type dashboardLog struct {
	w    io.Writer
	file *lumberjack.Logger
}

// openDashboardLog prepares the debug log described by cfg.
func openDashboardLog(cfg *config.Config) (*dashboardLog, error) {
	path := cfg.Paths.DebugLog
	if path == "" {
		return &dashboardLog{w: io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create debug log directory: %w", err)
	}

	rot := cfg.LogRotation
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}
	return &dashboardLog{w: file, file: file}, nil
}

func (d *dashboardLog) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// sessionLogger is the JSON logger for one dashboard or watch session. Every
// record names the backend, since the debug log outlives any one session.
func sessionLogger(w io.Writer, level slog.Leveler, cfg *config.Config) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("backend", cfg.Backend.BaseURL)
}
