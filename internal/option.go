package internal

import (
	"github.com/starford/folio/internal/fileops"
	"github.com/starford/folio/internal/library"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	backend library.Backend
	ops     fileops.Ops
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBackend replaces the HTTP search backend client.
func WithBackend(b library.Backend) Option {
	return func(a *application) {
		a.backend = b
	}
}

// WithOps replaces the local file operations.
func WithOps(ops fileops.Ops) Option {
	return func(a *application) {
		a.ops = ops
	}
}
