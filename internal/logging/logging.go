package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	defaultLevel          = "info"
	defaultFileMaxSizeMB  = 100
	defaultFileMaxBackups = 3
	defaultFileMaxAgeDays = 28
	logDirectoryMode      = 0o755
)

// ErrInvalidFormat indicates a log format other than json or console.
var ErrInvalidFormat = errors.New("logging: invalid format")

// Config selects the level, encoding and optional rotating file of the application logger.
type Config struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output replaces stdout as the primary sink when set.
	Output io.Writer
}

// New builds a logger writing to stdout and, when FilePath is set, to a rotating file.
func New(config Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(orDefault(config.Level, defaultLevel)))
	if err != nil {
		return nil, fmt.Errorf("logging: parse level: %w", err)
	}
	encoder, err := newEncoder(config.Format)
	if err != nil {
		return nil, err
	}

	var primary zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	if config.Output != nil {
		primary = zapcore.Lock(zapcore.AddSync(config.Output))
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, primary, level)}
	filePath := strings.TrimSpace(config.FilePath)
	if filePath != "" {
		rotator, rotatorErr := newRotator(config, filePath)
		if rotatorErr != nil {
			return nil, rotatorErr
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"

	switch strings.ToLower(strings.TrimSpace(orDefault(format, FormatJSON))) {
	case FormatJSON:
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case FormatConsole:
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, format)
	}
}

func newRotator(config Config, filePath string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), logDirectoryMode); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    positiveOrDefault(config.MaxSizeMB, defaultFileMaxSizeMB),
		MaxBackups: positiveOrDefault(config.MaxBackups, defaultFileMaxBackups),
		MaxAge:     positiveOrDefault(config.MaxAgeDays, defaultFileMaxAgeDays),
		Compress:   true,
	}, nil
}

func orDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func positiveOrDefault(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
