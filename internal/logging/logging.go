// Package logging builds the zap loggers used across citeq.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger for mode. "prod" and "production" give JSON output,
// anything else the human-readable development encoder. Both write to
// stderr so stdout stays free for command output.
func New(mode string, verbose bool) (*zap.Logger, error) {
	cfg := Config(mode, verbose)
	return cfg.Build()
}

// Config returns the zap configuration New builds from.
func Config(mode string, verbose bool) zap.Config {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Development = false
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// Redact masks a secret for logging, keeping only its last four characters.
func Redact(key, secret string) zap.Field {
	if secret == "" {
		return zap.String(key, "")
	}
	if len(secret) <= 4 {
		return zap.String(key, "****")
	}
	return zap.String(key, "****"+secret[len(secret)-4:])
}
