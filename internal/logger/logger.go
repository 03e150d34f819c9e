package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quant-trade-bot-go/internal/config"
)

// NewLogger creates a zap.Logger from the logger section. The json format uses
// the production encoder, anything else the development one. Every entry is
// tagged with the service name.
func NewLogger(cfg config.Logger, service string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(logLevel)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.Outputs) > 0 {
		zcfg.OutputPaths = cfg.Outputs
	}
	zcfg.InitialFields = map[string]interface{}{"service": service}

	return zcfg.Build()
}
