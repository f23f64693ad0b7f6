// Package kavita is the compiled-in adapter for Kavita. Kavita
// authenticates API clients by exchanging the configured API key for a
// short-lived JWT.
package kavita

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
)

func init() {
	builtin.Register(builtin.CoreManifest(
		"kavita",
		"Kavita",
		"Adapter for the Kavita reading server.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.Downloads,
		},
		nil,
		nil,
	), New)
}

// Service talks to one Kavita server.
type Service struct {
	baseURL string
	apiKey  string

	mu     sync.Mutex
	client *builtin.Client
}

// New builds the adapter from an instance. The api_key field carries the
// Kavita API key.
func New(inst media.Instance) (media.Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("kavita: server url is required")
	}
	if inst.APIKey == "" {
		return nil, fmt.Errorf("kavita: api key is required")
	}
	return &Service{baseURL: inst.URL, apiKey: inst.APIKey}, nil
}

// authed exchanges the API key for a JWT on first use and caches the
// resulting client for the lifetime of the adapter.
func (s *Service) authed(ctx context.Context) (*builtin.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	var auth struct {
		Token string `json:"token"`
	}
	login := builtin.NewClient(s.baseURL)
	path := "/api/Plugin/authenticate?apiKey=" + url.QueryEscape(s.apiKey) + "&pluginName=MUM"
	if err := login.Post(ctx, path, nil, &auth); err != nil {
		return nil, fmt.Errorf("kavita: authenticate: %w", err)
	}
	s.client = builtin.NewClient(s.baseURL).SetHeader("Authorization", "Bearer "+auth.Token)
	return s.client, nil
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	client, err := s.authed(ctx)
	if err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	var info struct {
		KavitaVersion string `json:"kavitaVersion"`
	}
	if err := client.Get(ctx, "/api/Server/server-info-slim", &info); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{Online: true, Message: "connected", Version: info.KavitaVersion}, nil
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	client, err := s.authed(ctx)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type int    `json:"type"`
	}
	if err := client.Get(ctx, "/api/Library/libraries", &raw); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(raw))
	for _, l := range raw {
		libs = append(libs, media.Library{
			ID:   fmt.Sprintf("%d", l.ID),
			Name: l.Name,
			Type: libraryType(l.Type),
		})
	}
	return libs, nil
}

// libraryType maps Kavita's numeric library types to names.
func libraryType(t int) string {
	switch t {
	case 0:
		return "manga"
	case 1:
		return "comic"
	case 2:
		return "book"
	default:
		return "unknown"
	}
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	client, err := s.authed(ctx)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID        int      `json:"id"`
		Username  string   `json:"username"`
		Email     string   `json:"email"`
		Roles     []string `json:"roles"`
		Libraries []struct {
			ID int `json:"id"`
		} `json:"libraries"`
	}
	if err := client.Get(ctx, "/api/Users", &raw); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(raw))
	for _, u := range raw {
		libs := make([]string, 0, len(u.Libraries))
		for _, l := range u.Libraries {
			libs = append(libs, fmt.Sprintf("%d", l.ID))
		}
		users = append(users, media.User{
			ID:         fmt.Sprintf("%d", u.ID),
			Username:   u.Username,
			Email:      u.Email,
			LibraryIDs: libs,
			IsAdmin:    hasRole(u.Roles, "Admin"),
		})
	}
	return users, nil
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// CreateUser sends a Kavita invite. Kavita finalizes the account when the
// invitee confirms, so the returned record has no server id yet.
func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	client, err := s.authed(ctx)
	if err != nil {
		return media.User{}, err
	}
	if u.Email == "" {
		return media.User{}, fmt.Errorf("kavita: an email address is required to invite a user")
	}
	body := map[string]any{
		"email":     u.Email,
		"roles":     []string{"Download"},
		"libraries": []int{},
	}
	if err := client.Post(ctx, "/api/Account/invite", body, nil); err != nil {
		return media.User{}, err
	}
	return media.User{Username: u.Username, Email: u.Email}, nil
}

func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	client, err := s.authed(ctx)
	if err != nil {
		return err
	}
	roles := []string{}
	if access.AllowDownloads {
		roles = append(roles, "Download")
	}
	body := map[string]any{
		"userId":    userID,
		"libraries": access.LibraryIDs,
		"roles":     roles,
	}
	return client.Post(ctx, "/api/Account/update", body, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	client, err := s.authed(ctx)
	if err != nil {
		return err
	}
	return client.Delete(ctx, "/api/Users/"+url.PathEscape(userID))
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	return nil, media.ErrNotSupported
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return media.ErrNotSupported
}
