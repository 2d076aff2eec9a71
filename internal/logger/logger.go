// Package logger wires the agent's error log and the web server's access
// log. Both are zap cores; file outputs rotate through lumberjack.
package logger

import (
	"os"
	"sync/atomic"

	"github.com/vigil-web/vigil/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global atomic.Pointer[zap.Logger]
	access atomic.Pointer[zap.Logger]
)

// Initialize builds the global and access loggers from configuration. Safe
// to call more than once; the last call wins.
func Initialize(cfg config.Log) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format), zapcore.Lock(os.Stdout), level),
	}

	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			encoder("json"), rotated(cfg, cfg.File), level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	global.Store(logger.Named("vigil"))

	accessSink := zapcore.Lock(os.Stdout)
	if cfg.AccessFile != "" {
		accessSink = rotated(cfg, cfg.AccessFile)
	}

	// the access log is always structured and never filtered by level
	access.Store(zap.New(zapcore.NewCore(
		encoder("json"), accessSink, zap.InfoLevel,
	)).Named("access"))
}

func rotated(cfg config.Log, filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

// Get returns the agent logger, falling back to a no-op one before
// Initialize has run (mostly in tests).
func Get() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}

	return zap.NewNop()
}

// Access returns the access-log logger.
func Access() *zap.Logger {
	if l := access.Load(); l != nil {
		return l
	}

	return zap.NewNop()
}

// Sync flushes both logs. Called on shutdown.
func Sync() {
	if l := global.Load(); l != nil {
		_ = l.Sync()
	}
	if l := access.Load(); l != nil {
		_ = l.Sync()
	}
}
