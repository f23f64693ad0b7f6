// Package komga is the compiled-in adapter for Komga. Requests carry an
// API key when one is configured, otherwise basic credentials.
package komga

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
		"komga",
		"Komga",
		"Adapter for the Komga comic server.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.Downloads,
		},
		nil,
		nil,
	), New)
}

// Service talks to one Komga server.
type Service struct {
	client *builtin.Client
}

// New builds the adapter from an instance.
func New(inst media.Instance) (media.Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("komga: server url is required")
	}
	client := builtin.NewClient(inst.URL)
	switch {
	case inst.APIKey != "":
		client.SetHeader("X-API-Key", inst.APIKey)
	case inst.Username != "":
		client.SetBasicAuth(inst.Username, inst.Password)
	default:
		return nil, fmt.Errorf("komga: an api key or basic credentials are required")
	}
	return &Service{client: client}, nil
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	var info struct {
		Build struct {
			Version string `json:"version"`
		} `json:"build"`
	}
	if err := s.client.Get(ctx, "/api/v1/actuator/info", &info); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{Online: true, Message: "connected", Version: info.Build.Version}, nil
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := s.client.Get(ctx, "/api/v1/libraries", &raw); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(raw))
	for _, l := range raw {
		libs = append(libs, media.Library{ID: l.ID, Name: l.Name, Type: "comics"})
	}
	return libs, nil
}

type apiUser struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Roles              []string `json:"roles"`
	SharedAllLibraries bool     `json:"sharedAllLibraries"`
	SharedLibrariesIDs []string `json:"sharedLibrariesIds"`
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	var raw []apiUser
	if err := s.client.Get(ctx, "/api/v2/users", &raw); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(raw))
	for _, u := range raw {
		libs := u.SharedLibrariesIDs
		if u.SharedAllLibraries {
			libs = nil
		}
		users = append(users, media.User{
			ID: u.ID,
			// Komga identifies users by email only.
			Username:   u.Email,
			Email:      u.Email,
			LibraryIDs: libs,
			IsAdmin:    hasRole(u.Roles, "ADMIN"),
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

func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	if u.Email == "" {
		return media.User{}, fmt.Errorf("komga: an email address is required")
	}
	body := map[string]any{
		"email":    u.Email,
		"password": u.Password,
		"roles":    []string{"PAGE_STREAMING", "FILE_DOWNLOAD"},
	}
	var created apiUser
	if err := s.client.Post(ctx, "/api/v2/users", body, &created); err != nil {
		return media.User{}, err
	}
	return media.User{ID: created.ID, Username: created.Email, Email: created.Email}, nil
}

func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	shared := map[string]any{
		"all":        len(access.LibraryIDs) == 0,
		"libraryIds": access.LibraryIDs,
	}
	if err := s.client.Patch(ctx, "/api/v2/users/"+url.PathEscape(userID)+"/shared-libraries", shared, nil); err != nil {
		return err
	}
	roles := []string{"PAGE_STREAMING"}
	if access.AllowDownloads {
		roles = append(roles, "FILE_DOWNLOAD")
	}
	return s.client.Patch(ctx, "/api/v2/users/"+url.PathEscape(userID), map[string]any{"roles": roles}, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.client.Delete(ctx, "/api/v2/users/"+url.PathEscape(userID))
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	return nil, media.ErrNotSupported
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return media.ErrNotSupported
}
