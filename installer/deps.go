package installer

import (
	"context"
	"fmt"
	"os/exec"
)

// DependencyInstaller resolves and installs a plugin's declared external
// package dependencies. It is a black-box collaborator: given requirement
// strings, it installs them or fails.
type DependencyInstaller interface {
	Install(ctx context.Context, requirements []string) error
}

// ExecInstaller shells out to an external tool once per requirement,
// appending the requirement string to the configured command. Installs are
// cancellable through the context.
type ExecInstaller struct {
	Command string
	Args    []string
}

// Install runs the configured command for each requirement, stopping at
// the first failure.
func (e *ExecInstaller) Install(ctx context.Context, requirements []string) error {
	for _, req := range requirements {
		args := append(append([]string(nil), e.Args...), req)
		cmd := exec.CommandContext(ctx, e.Command, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("install requirement %q: %w: %s", req, err, out)
		}
	}
	return nil
}

// NopInstaller ignores dependencies. Used when plugins are expected to be
// self-contained.
type NopInstaller struct{}

func (NopInstaller) Install(ctx context.Context, requirements []string) error {
	return nil
}
