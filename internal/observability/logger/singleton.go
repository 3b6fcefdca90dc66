package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init construye el logger global. Sólo la primera llamada cuenta; también
// reemplaza zap.L() para las librerías que lo usan.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
		zap.ReplaceGlobals(instance)
	})
}

// L devuelve el logger global; sin Init es consola nivel info.
func L() *zap.Logger {
	Init(Config{Env: "dev"})
	return instance
}

func Named(name string) *zap.Logger { return L().Named(name) }

func Sync() error {
	if instance == nil {
		return nil
	}
	return instance.Sync()
}
