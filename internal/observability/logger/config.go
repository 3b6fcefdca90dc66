package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config sale de config.Config (app.env, log.level) y de la versión del build.
type Config struct {
	// Env es APP_ENV. dev escribe consola con colores; cualquier otro, JSON.
	Env   string
	Level string

	// Campos fijos en cada línea; vacíos se omiten.
	Service string
	Version string
	Epoch   int64
}

func (c Config) console() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "dev", "local":
		return true
	}
	return false
}

func build(cfg Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.console() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build()
	if err != nil {
		l = zap.Must(zap.NewProduction())
	}
	return l.With(baseFields(cfg)...)
}

func baseFields(cfg Config) []zap.Field {
	var fs []zap.Field
	if cfg.Service != "" {
		fs = append(fs, zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		fs = append(fs, zap.String("version", cfg.Version))
	}
	if cfg.Epoch > 0 {
		fs = append(fs, zap.Int64("epoch", cfg.Epoch))
	}
	return fs
}

// parseLevel: LOG_LEVEL inválido o vacío cae a info.
func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
