// Package dynamic loads community adapters from Go source through a
// restricted Yaegi interpreter sandbox.
package dynamic

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// Loader validates and loads interpreted adapter programs.
type Loader struct {
	pool *InterpreterPool
}

// NewLoader creates a Loader backed by the given interpreter pool.
func NewLoader(pool *InterpreterPool) *Loader {
	return &Loader{pool: pool}
}

// ValidateSource performs a syntax check and verifies that only allowed
// packages are imported.
func (l *Loader) ValidateSource(source string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "adapter.go", source, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	if f.Name.Name != "adapter" {
		return fmt.Errorf("adapter source must declare package adapter, got %q", f.Name.Name)
	}
	for _, imp := range f.Imports {
		// imp.Path.Value includes surrounding quotes
		pkg := strings.Trim(imp.Path.Value, `"`)
		if !l.pool.isAllowed(pkg) {
			return fmt.Errorf("import %q is not allowed in interpreted adapters", pkg)
		}
	}
	return nil
}

// LoadFile reads an adapter source file and loads it as a Program.
func (l *Loader) LoadFile(pluginID, path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adapter source %s: %w", path, err)
	}
	return l.Load(pluginID, string(data))
}

// Load validates and interprets adapter source, extracting the contract
// function set.
func (l *Loader) Load(pluginID, source string) (*Program, error) {
	if err := l.ValidateSource(source); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	i, err := l.pool.NewInterpreter()
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	if _, err := i.Eval(source); err != nil {
		return nil, fmt.Errorf("interpret adapter source: %w", err)
	}

	prog := &Program{pluginID: pluginID}
	extract(i, "adapter.TestConnection", &prog.testConnection)
	extract(i, "adapter.Libraries", &prog.libraries)
	extract(i, "adapter.Users", &prog.users)
	extract(i, "adapter.CreateUser", &prog.createUser)
	extract(i, "adapter.UpdateUserAccess", &prog.updateUserAccess)
	extract(i, "adapter.DeleteUser", &prog.deleteUser)
	extract(i, "adapter.ActiveSessions", &prog.activeSessions)
	extract(i, "adapter.TerminateSession", &prog.terminateSession)
	return prog, nil
}

// extract evaluates a symbol and stores it into dst when both the symbol
// and its signature match. A missing or mistyped symbol leaves dst nil;
// VerifyContract decides whether that is fatal.
func extract[F any](i *interp.Interpreter, symbol string, dst *F) {
	v, err := i.Eval(symbol)
	if err != nil {
		return
	}
	if fn, ok := v.Interface().(F); ok {
		*dst = fn
	}
}
