// Package audiobookshelf is the compiled-in adapter for Audiobookshelf.
package audiobookshelf

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
		"audiobookshelf",
		"Audiobookshelf",
		"Adapter for the Audiobookshelf audiobook and podcast server.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.ActiveSessions,
			capability.Downloads,
		},
		nil,
		nil,
	), New)
}

// Service talks to one Audiobookshelf server with a bearer token.
type Service struct {
	client *builtin.Client
}

// New builds the adapter from an instance. The api_key field carries the
// user API token.
func New(inst media.Instance) (media.Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("audiobookshelf: server url is required")
	}
	if inst.APIKey == "" {
		return nil, fmt.Errorf("audiobookshelf: api token is required")
	}
	client := builtin.NewClient(inst.URL).SetHeader("Authorization", "Bearer "+inst.APIKey)
	return &Service{client: client}, nil
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	var status struct {
		ServerVersion string `json:"serverVersion"`
	}
	if err := s.client.Get(ctx, "/status", &status); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{Online: true, Message: "connected", Version: status.ServerVersion}, nil
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	var resp struct {
		Libraries []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			MediaType string `json:"mediaType"`
		} `json:"libraries"`
	}
	if err := s.client.Get(ctx, "/api/libraries", &resp); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(resp.Libraries))
	for _, l := range resp.Libraries {
		libs = append(libs, media.Library{ID: l.ID, Name: l.Name, Type: l.MediaType})
	}
	return libs, nil
}

type apiUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Type        string `json:"type"`
	IsActive    bool   `json:"isActive"`
	Permissions struct {
		Download           bool `json:"download"`
		AccessAllLibraries bool `json:"accessAllLibraries"`
	} `json:"permissions"`
	LibrariesAccessible []string `json:"librariesAccessible"`
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	var resp struct {
		Users []apiUser `json:"users"`
	}
	if err := s.client.Get(ctx, "/api/users", &resp); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, media.User{
			ID:         u.ID,
			Username:   u.Username,
			LibraryIDs: u.LibrariesAccessible,
			IsAdmin:    u.Type == "admin" || u.Type == "root",
		})
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	body := map[string]any{
		"username": u.Username,
		"password": u.Password,
		"type":     "user",
	}
	var resp struct {
		User apiUser `json:"user"`
	}
	if err := s.client.Post(ctx, "/api/users", body, &resp); err != nil {
		return media.User{}, err
	}
	return media.User{ID: resp.User.ID, Username: resp.User.Username, Email: u.Email}, nil
}

func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	body := map[string]any{
		"librariesAccessible": access.LibraryIDs,
		"permissions": map[string]any{
			"download":           access.AllowDownloads,
			"accessAllLibraries": len(access.LibraryIDs) == 0,
		},
	}
	return s.client.Patch(ctx, "/api/users/"+url.PathEscape(userID), body, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.client.Delete(ctx, "/api/users/"+url.PathEscape(userID))
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	var resp struct {
		Sessions []struct {
			ID           string  `json:"id"`
			UserID       string  `json:"userId"`
			DisplayTitle string  `json:"displayTitle"`
			MediaType    string  `json:"mediaType"`
			CurrentTime  float64 `json:"currentTime"`
			Duration     float64 `json:"duration"`
			DeviceInfo   struct {
				ClientName string `json:"clientName"`
				OSName     string `json:"osName"`
				IPAddress  string `json:"ipAddress"`
			} `json:"deviceInfo"`
		} `json:"sessions"`
	}
	if err := s.client.Get(ctx, "/api/sessions/open", &resp); err != nil {
		return nil, err
	}
	sessions := make([]media.Session, 0, len(resp.Sessions))
	for _, sess := range resp.Sessions {
		var progress float64
		if sess.Duration > 0 {
			progress = sess.CurrentTime / sess.Duration * 100
		}
		sessions = append(sessions, media.Session{
			SessionID:       sess.ID,
			UserID:          sess.UserID,
			MediaTitle:      sess.DisplayTitle,
			MediaType:       sess.MediaType,
			Player:          sess.DeviceInfo.ClientName,
			Platform:        sess.DeviceInfo.OSName,
			State:           "playing",
			ProgressPercent: progress,
			IPAddress:       sess.DeviceInfo.IPAddress,
		})
	}
	return sessions, nil
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return s.client.Post(ctx, "/api/session/"+url.PathEscape(sessionID)+"/close", nil, nil)
}
