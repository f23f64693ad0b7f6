package dynamic

import (
	"fmt"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// InterpreterPool hands out sandboxed Yaegi interpreters. One interpreter
// is created per loaded adapter; the pool only centralizes configuration.
type InterpreterPool struct {
	mu              sync.Mutex
	allowedPackages map[string]bool
}

// PoolOption configures an InterpreterPool.
type PoolOption func(*InterpreterPool)

// WithAllowedPackages overrides the default allowed packages list.
func WithAllowedPackages(pkgs map[string]bool) PoolOption {
	return func(p *InterpreterPool) {
		p.allowedPackages = pkgs
	}
}

// NewInterpreterPool creates a new pool with optional configuration.
func NewInterpreterPool(opts ...PoolOption) *InterpreterPool {
	p := &InterpreterPool{
		allowedPackages: AllowedPackages,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewInterpreter creates a Yaegi interpreter with the standard library
// symbols loaded. Sandbox enforcement happens at source-validation time
// (ValidateSource), before any code reaches an interpreter.
func (p *InterpreterPool) NewInterpreter() (*interp.Interpreter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	return i, nil
}

func (p *InterpreterPool) isAllowed(pkg string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if BlockedPackages[pkg] {
		return false
	}
	return p.allowedPackages[pkg]
}
