package dynamic

import (
	"context"
	"fmt"
	"strings"

	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
)

// The interpreted adapter contract. A community plugin ships a Go source
// file declaring `package adapter` and exporting some subset of these
// functions. TestConnection, Libraries, and Users are always required;
// the rest are required only when the manifest declares the matching
// capability.
// Aliases, not defined types: Yaegi hands extracted functions back under
// their unnamed signatures, and the loader's type assertions must match.
type (
	testConnectionFunc   = func(cfg map[string]any) (bool, string, error)
	librariesFunc        = func(cfg map[string]any) ([]map[string]any, error)
	usersFunc            = func(cfg map[string]any) ([]map[string]any, error)
	createUserFunc       = func(cfg map[string]any, username, email, password string) (map[string]any, error)
	updateUserAccessFunc = func(cfg map[string]any, userID string, libraryIDs []string, allowDownloads, allowTranscode bool) error
	deleteUserFunc       = func(cfg map[string]any, userID string) error
	activeSessionsFunc   = func(cfg map[string]any) ([]map[string]any, error)
	terminateSessionFunc = func(cfg map[string]any, sessionID, reason string) error
)

// Program is a loaded interpreted adapter: the function set extracted from
// the Yaegi interpreter, ready to be bound to service instances.
type Program struct {
	pluginID string

	testConnection   testConnectionFunc
	libraries        librariesFunc
	users            usersFunc
	createUser       createUserFunc
	updateUserAccess updateUserAccessFunc
	deleteUser       deleteUserFunc
	activeSessions   activeSessionsFunc
	terminateSession terminateSessionFunc
}

// VerifyContract performs the structural check: every function the declared
// capability set requires must be present with the exact signature. The
// returned error names all missing functions at once.
func (p *Program) VerifyContract(features capability.Set) error {
	var missing []string
	if p.testConnection == nil {
		missing = append(missing, "TestConnection")
	}
	if p.libraries == nil {
		missing = append(missing, "Libraries")
	}
	if p.users == nil {
		missing = append(missing, "Users")
	}
	if features.Has(capability.UserManagement) {
		if p.createUser == nil {
			missing = append(missing, "CreateUser")
		}
		if p.updateUserAccess == nil {
			missing = append(missing, "UpdateUserAccess")
		}
		if p.deleteUser == nil {
			missing = append(missing, "DeleteUser")
		}
	}
	if features.Has(capability.ActiveSessions) {
		if p.activeSessions == nil {
			missing = append(missing, "ActiveSessions")
		}
		if p.terminateSession == nil {
			missing = append(missing, "TerminateSession")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("adapter %q does not satisfy the capability contract: missing %s",
			p.pluginID, strings.Join(missing, ", "))
	}
	return nil
}

// NewService binds the program to one configured instance. The returned
// adapter satisfies media.Service.
func (p *Program) NewService(inst media.Instance) (media.Service, error) {
	return &Adapter{prog: p, cfg: instanceConfig(inst)}, nil
}

// instanceConfig flattens the connection parameters interpreted code sees.
func instanceConfig(inst media.Instance) map[string]any {
	cfg := map[string]any{
		"url":      inst.URL,
		"api_key":  inst.APIKey,
		"username": inst.Username,
		"password": inst.Password,
	}
	for k, v := range inst.Config {
		cfg[k] = v
	}
	return cfg
}

// Adapter bridges an interpreted program to the media.Service contract.
// Functions the program does not provide surface media.ErrNotSupported.
type Adapter struct {
	prog *Program
	cfg  map[string]any
}

var _ media.Service = (*Adapter)(nil)

// call contains interpreter panics; Yaegi faults become plain errors.
func call[T any](pluginID string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreted adapter %q panicked: %v", pluginID, r)
		}
	}()
	return fn()
}

func (a *Adapter) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	return call(a.prog.pluginID, func() (media.ConnectionTestResult, error) {
		ok, msg, err := a.prog.testConnection(a.cfg)
		if err != nil {
			return media.ConnectionTestResult{}, err
		}
		return media.ConnectionTestResult{Online: ok, Message: msg}, nil
	})
}

func (a *Adapter) Libraries(ctx context.Context) ([]media.Library, error) {
	return call(a.prog.pluginID, func() ([]media.Library, error) {
		raw, err := a.prog.libraries(a.cfg)
		if err != nil {
			return nil, err
		}
		out := make([]media.Library, 0, len(raw))
		for _, m := range raw {
			out = append(out, media.LibraryFromMap(m))
		}
		return out, nil
	})
}

func (a *Adapter) Users(ctx context.Context) ([]media.User, error) {
	return call(a.prog.pluginID, func() ([]media.User, error) {
		raw, err := a.prog.users(a.cfg)
		if err != nil {
			return nil, err
		}
		out := make([]media.User, 0, len(raw))
		for _, m := range raw {
			out = append(out, media.UserFromMap(m))
		}
		return out, nil
	})
}

func (a *Adapter) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	if a.prog.createUser == nil {
		return media.User{}, media.ErrNotSupported
	}
	return call(a.prog.pluginID, func() (media.User, error) {
		raw, err := a.prog.createUser(a.cfg, u.Username, u.Email, u.Password)
		if err != nil {
			return media.User{}, err
		}
		return media.UserFromMap(raw), nil
	})
}

func (a *Adapter) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	if a.prog.updateUserAccess == nil {
		return media.ErrNotSupported
	}
	_, err := call(a.prog.pluginID, func() (struct{}, error) {
		return struct{}{}, a.prog.updateUserAccess(a.cfg, userID, access.LibraryIDs, access.AllowDownloads, access.AllowTranscode)
	})
	return err
}

func (a *Adapter) DeleteUser(ctx context.Context, userID string) error {
	if a.prog.deleteUser == nil {
		return media.ErrNotSupported
	}
	_, err := call(a.prog.pluginID, func() (struct{}, error) {
		return struct{}{}, a.prog.deleteUser(a.cfg, userID)
	})
	return err
}

func (a *Adapter) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	if a.prog.activeSessions == nil {
		return nil, media.ErrNotSupported
	}
	return call(a.prog.pluginID, func() ([]media.Session, error) {
		raw, err := a.prog.activeSessions(a.cfg)
		if err != nil {
			return nil, err
		}
		out := make([]media.Session, 0, len(raw))
		for _, m := range raw {
			out = append(out, media.SessionFromMap(m))
		}
		return out, nil
	})
}

func (a *Adapter) TerminateSession(ctx context.Context, sessionID, reason string) error {
	if a.prog.terminateSession == nil {
		return media.ErrNotSupported
	}
	_, err := call(a.prog.pluginID, func() (struct{}, error) {
		return struct{}{}, a.prog.terminateSession(a.cfg, sessionID, reason)
	})
	return err
}
