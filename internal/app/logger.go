package app

import (
	"fmt"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production defaults to JSON output;
// development uses the colored console encoder unless json is requested.
func NewLogger(cfg config.LoggingConfig, environment string) (*zap.Logger, error) {
	var zcfg zap.Config
	if environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.Format != "" {
		if cfg.Format != "json" && cfg.Format != "console" {
			return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
		}
		zcfg.Encoding = cfg.Format
		if cfg.Format == "json" {
			zcfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		}
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		zcfg.Level = level
	}

	return zcfg.Build()
}
