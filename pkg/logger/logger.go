// Package logger installs the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"
)

var (
	def  *slog.Logger
	self Instance
)

// Init настраивает slog в зависимости от среды и возвращает его.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "app"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	inst := NewInstance(cfg.InstanceID)

	// Выбор бекенда по умолчанию
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = h.WithAttrs(commonAttrs(cfg, inst))

	base := slog.New(h)
	slog.SetDefault(base)
	def, self = base, inst
	return base
}

// Self is the instance the last Init described.
func Self() Instance {
	return self
}

func L() *slog.Logger {
	if def != nil {
		return def
	}

	return Init(Config{})
}
