// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger provides component-tagged structured logging for wattchat.
//
// The TUI owns the terminal, so log output goes to a file. Until Init is
// called every call is discarded.
//
//	logger.InfoCF("api", "Chat request sent", map[string]interface{}{"mode": "phi"})
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	log  = zerolog.Nop()
	file *os.File
)

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Init opens path for appending and routes all logging to it.
func Init(level, path string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	log = newLogger(f, lvl)
	return nil
}

// SetOutput routes logging to w. Used by tests and the stub server.
func SetOutput(w io.Writer, level string) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w, lvl)
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	log = zerolog.Nop()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]interface{}) {
	if ev == nil {
		return
	}
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// DebugCF logs at debug level with a component tag and fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Debug(), component, msg, fields)
}

// InfoCF logs at info level with a component tag and fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Info(), component, msg, fields)
}

// WarnCF logs at warn level with a component tag and fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Warn(), component, msg, fields)
}

// ErrorCF logs at error level with a component tag and fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Error(), component, msg, fields)
}

// Info logs a plain message.
func Info(msg string) {
	InfoCF("", msg, nil)
}

// Warn logs a plain message.
func Warn(msg string) {
	WarnCF("", msg, nil)
}
