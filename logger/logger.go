package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface used across roomguard.
// It is a thin surface over zap so components can be wired with a
// caller-owned logger.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Named(name string) Logger
	Sync() error
}

// Config controls logger construction.
type Config struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

type zapLogger struct {
	zap *zap.Logger
}

// New creates a zap-backed logger.
func New(config Config) (Logger, error) {
	level := zapcore.InfoLevel

	switch strings.ToLower(config.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var zapConfig zap.Config
	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	if config.Format == "console" {
		zapConfig.Encoding = "console"
	}

	z, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &zapLogger{zap: z}, nil
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{zap: l.zap.With(fields...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{zap: l.zap.Named(name)}
}

func (l *zapLogger) Sync() error { return l.zap.Sync() }

// NewNop returns a logger that discards everything. Components accept it
// when the caller does not care about logs; it prevents nil checks on
// every log site.
func NewNop() Logger {
	return &zapLogger{zap: zap.NewNop()}
}

// NewTest returns a development logger suitable for tests.
func NewTest() Logger {
	z, _ := zap.NewDevelopment()
	return &zapLogger{zap: z}
}
