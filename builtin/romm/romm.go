// Package romm is the compiled-in adapter for RomM. Platforms are
// presented as libraries.
package romm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
)

func init() {
	builtin.Register(builtin.CoreManifest(
		"romm",
		"RomM",
		"Adapter for the RomM game library manager.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.Downloads,
		},
		nil,
		nil,
	), New)
}

// Service talks to one RomM server with basic credentials.
type Service struct {
	client *builtin.Client
}

// New builds the adapter from an instance.
func New(inst media.Instance) (media.Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("romm: server url is required")
	}
	if inst.Username == "" {
		return nil, fmt.Errorf("romm: basic credentials are required")
	}
	client := builtin.NewClient(inst.URL).SetBasicAuth(inst.Username, inst.Password)
	return &Service{client: client}, nil
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	var beat struct {
		System struct {
			Version string `json:"VERSION"`
		} `json:"SYSTEM"`
	}
	if err := s.client.Get(ctx, "/api/heartbeat", &beat); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{Online: true, Message: "connected", Version: beat.System.Version}, nil
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	var raw []struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		RomCount int    `json:"rom_count"`
	}
	if err := s.client.Get(ctx, "/api/platforms", &raw); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(raw))
	for _, p := range raw {
		libs = append(libs, media.Library{
			ID:        fmt.Sprintf("%d", p.ID),
			Name:      p.Name,
			Type:      "games",
			ItemCount: p.RomCount,
		})
	}
	return libs, nil
}

type apiUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Enabled  bool   `json:"enabled"`
	Avatar   string `json:"avatar_path"`
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	var raw []apiUser
	if err := s.client.Get(ctx, "/api/users", &raw); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(raw))
	for _, u := range raw {
		users = append(users, media.User{
			ID:        fmt.Sprintf("%d", u.ID),
			Username:  u.Username,
			Email:     u.Email,
			AvatarURL: u.Avatar,
			IsAdmin:   u.Role == "admin",
		})
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	q := url.Values{}
	q.Set("username", u.Username)
	q.Set("password", u.Password)
	q.Set("email", u.Email)
	q.Set("role", "viewer")
	var created apiUser
	if err := s.client.Post(ctx, "/api/users?"+q.Encode(), nil, &created); err != nil {
		return media.User{}, err
	}
	return media.User{
		ID:       fmt.Sprintf("%d", created.ID),
		Username: created.Username,
		Email:    created.Email,
	}, nil
}

// UpdateUserAccess toggles the account role. RomM has no per-platform
// grants, so library ids are ignored.
func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	role := "viewer"
	if access.AllowDownloads {
		role = "editor"
	}
	body := map[string]any{"role": role}
	return s.client.Put(ctx, "/api/users/"+url.PathEscape(userID), body, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.client.Delete(ctx, "/api/users/"+url.PathEscape(userID))
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	return nil, media.ErrNotSupported
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return media.ErrNotSupported
}
