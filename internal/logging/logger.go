package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sanspareilsmyn/parkinglens/internal/config"
)

const (
	formatConsole = "console"
	formatJSON    = "json"
)

// NewLogger builds the process logger from cfg. Console and JSON formats
// write to stdout/stderr; file logging adds a lumberjack-rotated JSON core.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %v, defaulting to INFO level\n", err)
		level = zapcore.InfoLevel
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	cores, err := streamCores(format, level)
	if err != nil {
		return nil, err
	}

	if cfg.FileLoggingEnabled {
		fileCore, err := rotatingFileCore(cfg, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}

	if len(cores) == 0 {
		return nil, ErrNoOutputs
	}

	development := level == zapcore.DebugLevel || format == formatConsole
	logger := zap.New(zapcore.NewTee(cores...), loggerOptions(development)...)

	logger.Debug("Zap logger constructed",
		zap.String("final_level", level.String()),
		zap.String("format", format),
		zap.Bool("file_logging_enabled", cfg.FileLoggingEnabled),
		zap.String("file_path", logFilePath(cfg)),
		zap.Bool("development_mode", development),
	)

	return logger, nil
}

// streamCores splits output so that records below Error go to stdout and
// Error and above go to stderr. An empty format disables stream output.
func streamCores(format string, level zapcore.Level) ([]zapcore.Core, error) {
	var encoder zapcore.Encoder
	switch format {
	case formatConsole:
		encoder = buildEncoder(true)
	case formatJSON:
		encoder = buildEncoder(false)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	stdout := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl < zapcore.ErrorLevel
	}))
	stderr := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl >= zapcore.ErrorLevel
	}))
	return []zapcore.Core{stdout, stderr}, nil
}

func rotatingFileCore(cfg config.LogConfig, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("%w '%s': %w", ErrCreateLogDirectory, cfg.Directory, err)
	}

	ljack := &lumberjack.Logger{
		Filename:   logFilePath(cfg),
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxBackups: cfg.MaxBackups, // files
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}
	return zapcore.NewCore(buildEncoder(false), zapcore.AddSync(ljack), level), nil
}

func loggerOptions(development bool) []zap.Option {
	opts := []zap.Option{zap.AddCaller()}
	if development {
		return append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
}

func logFilePath(cfg config.LogConfig) string {
	return filepath.Join(cfg.Directory, cfg.Filename)
}

func parseLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelStr))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level '%s'", levelStr)
	}
	return level, nil
}

func buildEncoder(useConsoleStyle bool) zapcore.Encoder {
	if useConsoleStyle {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
