package config

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyInitialized se retorna si Init se llama más de una vez.
var ErrAlreadyInitialized = errors.New("config: already initialized")

var current atomic.Pointer[Config]

// Init valida la configuración y la publica para todo el proceso.
// Debe llamarse exactamente una vez antes de servir requests.
func Init(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !current.CompareAndSwap(nil, c) {
		return ErrAlreadyInitialized
	}
	return nil
}

// Current retorna la configuración publicada por Init.
// Panic si se llama antes de Init: es un error de wiring, no de runtime.
func Current() *Config {
	c := current.Load()
	if c == nil {
		panic("config: Current called before Init")
	}
	return c
}

// reset es sólo para tests.
func reset() { current.Store(nil) }
