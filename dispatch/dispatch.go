// Package dispatch routes capability calls to the adapter behind a
// configured service instance, with contract and timeout enforcement.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
	"github.com/themaluxis/MUM/registry"
)

// Op names one invocable operation of the capability contract.
type Op string

const (
	OpTestConnection   Op = "test_connection"
	OpListLibraries    Op = "list_libraries"
	OpListUsers        Op = "list_users"
	OpCreateUser       Op = "create_user"
	OpUpdateUserAccess Op = "update_user_access"
	OpDeleteUser       Op = "delete_user"
	OpListSessions     Op = "list_sessions"
	OpTerminateSession Op = "terminate_session"
)

// opCapability maps each operation to the capability that gates it. The
// connection test is ungated: every adapter must implement it.
var opCapability = map[Op]capability.Capability{
	OpListLibraries:    capability.LibraryAccess,
	OpListUsers:        capability.UserManagement,
	OpCreateUser:       capability.UserManagement,
	OpUpdateUserAccess: capability.UserManagement,
	OpDeleteUser:       capability.UserManagement,
	OpListSessions:     capability.ActiveSessions,
	OpTerminateSession: capability.ActiveSessions,
}

// Args carries operation parameters. Only the fields the operation uses
// are read.
type Args struct {
	UserID    string
	SessionID string
	Reason    string
	NewUser   *media.NewUser
	Access    *media.UserAccess
}

// Result is the discriminated union of operation outputs. Exactly the
// field matching Op is populated.
type Result struct {
	Op         Op
	Connection *media.ConnectionTestResult
	Libraries  []media.Library
	Users      []media.User
	User       *media.User
	OK         bool
	Sessions   []media.Session
}

// DefaultTimeout bounds adapter calls when the plugin's config schema does
// not supply a timeout.
const DefaultTimeout = 10 * time.Second

// Dispatcher resolves adapters and invokes capability calls. It mutates
// nothing: no registry state changes, no persistence, only logging and
// metrics.
type Dispatcher struct {
	reg     *registry.Registry
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides the default per-call timeout floor.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.timeout = d }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(dp *Dispatcher) { dp.logger = l }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(dp *Dispatcher) { dp.metrics = m }
}

// New creates a Dispatcher over the given registry.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:     reg,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke routes one capability call to the adapter behind inst. The
// capability gate fires before any adapter code runs, so unsupported
// operations never reach the adapter. Each call is independently bounded
// by a timeout; adapter panics and errors are contained and normalized.
func (d *Dispatcher) Invoke(ctx context.Context, inst media.Instance, op Op, args Args) (*Result, error) {
	start := time.Now()
	res, err := d.invoke(ctx, inst, op, args)
	outcome := "ok"
	if err != nil {
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		} else {
			outcome = "error"
		}
		d.logger.Warn("Dispatch failed", "plugin", inst.PluginID, "instance", inst.Name, "op", op, "error", err)
	}
	d.metrics.observe(inst.PluginID, op, outcome, time.Since(start).Seconds())
	return res, err
}

func (d *Dispatcher) invoke(ctx context.Context, inst media.Instance, op Op, args Args) (*Result, error) {
	rec, ok := d.reg.Get(inst.PluginID)
	if !ok {
		return nil, &Error{Kind: UnknownPlugin, Plugin: inst.PluginID}
	}
	if rec.State == registry.StateDisabled || rec.State == registry.StateError {
		return nil, &Error{Kind: PluginDisabled, Plugin: inst.PluginID, Detail: fmt.Sprintf("state %s", rec.State)}
	}

	if gate, gated := opCapability[op]; gated && !rec.Manifest.Supports(gate) {
		return nil, &Error{Kind: UnsupportedCapability, Plugin: inst.PluginID, Detail: string(gate)}
	}

	if err := rec.Manifest.ValidateConfig(inst.Config); err != nil {
		return nil, &Error{Kind: InvalidConfig, Plugin: inst.PluginID, Err: err}
	}

	svc, err := rec.Factory()(inst)
	if err != nil {
		return nil, &Error{Kind: AdapterFailure, Plugin: inst.PluginID, Detail: "adapter construction", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeoutFor(rec, inst))
	defer cancel()

	res, err := d.call(callCtx, svc, op, args)
	if err != nil {
		if media.IsNotSupported(err) {
			return nil, &Error{Kind: UnsupportedCapability, Plugin: inst.PluginID, Detail: string(op)}
		}
		return nil, &Error{Kind: AdapterFailure, Plugin: inst.PluginID, Err: err}
	}
	res.Op = op
	return res, nil
}

// timeoutFor reads the per-plugin timeout from the instance config merged
// over the manifest schema defaults. The schema declares timeout in
// seconds, matching the original plugin descriptors.
func (d *Dispatcher) timeoutFor(rec *registry.Record, inst media.Instance) time.Duration {
	cfg := rec.Manifest.ConfigWithDefaults(inst.Config)
	if v, ok := cfg["timeout"]; ok {
		switch n := v.(type) {
		case int:
			return time.Duration(n) * time.Second
		case int64:
			return time.Duration(n) * time.Second
		case float64:
			return time.Duration(n) * time.Second
		}
	}
	return d.timeout
}

// call runs the adapter method on its own goroutine so a stuck adapter
// cannot outlive the timeout, and converts panics into errors.
func (d *Dispatcher) call(ctx context.Context, svc media.Service, op Op, args Args) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		res, err := d.run(ctx, svc, op, args)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("adapter call timed out: %w", ctx.Err())
	case out := <-ch:
		return out.res, out.err
	}
}

// run executes one operation and normalizes its output into unified
// records with defined defaults.
func (d *Dispatcher) run(ctx context.Context, svc media.Service, op Op, args Args) (*Result, error) {
	switch op {
	case OpTestConnection:
		ctr, err := svc.TestConnection(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Connection: &ctr}, nil

	case OpListLibraries:
		libs, err := svc.Libraries(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]media.Library, 0, len(libs))
		for _, l := range libs {
			out = append(out, l.Normalize())
		}
		return &Result{Libraries: out}, nil

	case OpListUsers:
		users, err := svc.Users(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]media.User, 0, len(users))
		for _, u := range users {
			out = append(out, u.Normalize())
		}
		return &Result{Users: out}, nil

	case OpCreateUser:
		if args.NewUser == nil {
			return nil, fmt.Errorf("create_user requires user arguments")
		}
		u, err := svc.CreateUser(ctx, *args.NewUser)
		if err != nil {
			return nil, err
		}
		u = u.Normalize()
		return &Result{User: &u}, nil

	case OpUpdateUserAccess:
		if args.Access == nil {
			return nil, fmt.Errorf("update_user_access requires access arguments")
		}
		if err := svc.UpdateUserAccess(ctx, args.UserID, *args.Access); err != nil {
			return nil, err
		}
		return &Result{OK: true}, nil

	case OpDeleteUser:
		if err := svc.DeleteUser(ctx, args.UserID); err != nil {
			return nil, err
		}
		return &Result{OK: true}, nil

	case OpListSessions:
		sessions, err := svc.ActiveSessions(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]media.Session, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, s.Normalize())
		}
		return &Result{Sessions: out}, nil

	case OpTerminateSession:
		if err := svc.TerminateSession(ctx, args.SessionID, args.Reason); err != nil {
			return nil, err
		}
		return &Result{OK: true}, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}
