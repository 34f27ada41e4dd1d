// Package logging builds one zap.Logger per clipcat binary kind, with
// console or JSON encoding: the CLI logs to stdout (plus files when file
// logging is enabled), the daemon to files or, when disabled, to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipcatd/clipcat/internal/config"
)

// Kind selects the output shape a logger is built for.
type Kind string

const (
	// KindDaemon logs to file only (stderr when file logging is disabled).
	KindDaemon Kind = "daemon"
	// KindCLI logs to console, plus file when configured.
	KindCLI Kind = "cli"
)

// New builds a zap.Logger for the given binary kind using cfg.Log.
func New(kind Kind, cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging: config cannot be nil")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	var outputPaths, errorOutputPaths []string

	switch kind {
	case KindCLI:
		outputPaths = append(outputPaths, "stdout")
		errorOutputPaths = append(errorOutputPaths, "stderr")
		if cfg.Log.EnableFileLogging {
			logFile, errFile, err := logFilePaths(cfg, "clipcatctl")
			if err != nil {
				return nil, err
			}
			outputPaths = append(outputPaths, logFile)
			errorOutputPaths = append(errorOutputPaths, errFile)
		}
	case KindDaemon:
		if cfg.Log.EnableFileLogging {
			logFile, errFile, err := logFilePaths(cfg, "clipcatd")
			if err != nil {
				return nil, err
			}
			outputPaths = append(outputPaths, logFile)
			errorOutputPaths = append(errorOutputPaths, errFile)
		} else {
			outputPaths = append(outputPaths, "stderr")
			errorOutputPaths = append(errorOutputPaths, "stderr")
		}
	default:
		return nil, fmt.Errorf("logging: unknown logger kind %q", kind)
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         cfg.Log.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errorOutputPaths,
	}
	if cfg.Log.Format == "text" {
		zapConfig.Encoding = "console"
	}

	return zapConfig.Build()
}

func logFilePaths(cfg *config.Config, base string) (logFile, errFile string, err error) {
	if err := os.MkdirAll(cfg.SystemPaths.LogDir, 0o755); err != nil {
		return "", "", fmt.Errorf("logging: create log dir: %w", err)
	}
	logFile = filepath.Join(cfg.SystemPaths.LogDir, base+".log")
	errFile = filepath.Join(cfg.SystemPaths.LogDir, base+"_error.log")
	return logFile, errFile, nil
}
