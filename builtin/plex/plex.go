// Package plex is the compiled-in adapter for Plex Media Server. Server
// endpoints cover libraries and sessions; user sharing goes through the
// plex.tv account API.
package plex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/media"
)

const plexTV = "https://plex.tv"

func init() {
	min, max := 5.0, 60.0
	def := 10.0
	builtin.Register(builtin.CoreManifest(
		"plex",
		"Plex",
		"Adapter for Plex Media Server.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.ActiveSessions,
			capability.Downloads,
			capability.Transcoding,
			capability.Sharing,
			capability.Invitations,
		},
		manifest.ConfigSchema{
			"timeout": {
				Type:        manifest.FieldTypeInt,
				Description: "Request timeout in seconds.",
				Default:     def,
				Min:         &min,
				Max:         &max,
			},
		},
		map[string]any{"timeout": 10},
	), New)
}

// Service talks to one Plex server plus the plex.tv sharing API with the
// same token.
type Service struct {
	server *builtin.Client
	tv     *builtin.Client
	token  string
}

// New builds the adapter from an instance. The api_key field carries the
// X-Plex-Token.
func New(inst media.Instance) (media.Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("plex: server url is required")
	}
	if inst.APIKey == "" {
		return nil, fmt.Errorf("plex: api token is required")
	}
	return &Service{
		server: builtin.NewClient(inst.URL).SetHeader("X-Plex-Token", inst.APIKey),
		tv:     builtin.NewClient(plexTV).SetHeader("X-Plex-Token", inst.APIKey),
		token:  inst.APIKey,
	}, nil
}

type identityResponse struct {
	MediaContainer struct {
		MachineIdentifier string `json:"machineIdentifier"`
		Version           string `json:"version"`
	} `json:"MediaContainer"`
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	var ident identityResponse
	if err := s.server.Get(ctx, "/identity", &ident); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{
		Online:  true,
		Message: "connected",
		Version: ident.MediaContainer.Version,
	}, nil
}

type sectionsResponse struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Title string `json:"title"`
			Type  string `json:"type"`
			UUID  string `json:"uuid"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	var sections sectionsResponse
	if err := s.server.Get(ctx, "/library/sections", &sections); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(sections.MediaContainer.Directory))
	for _, d := range sections.MediaContainer.Directory {
		libs = append(libs, media.Library{
			ID:         d.Key,
			Name:       d.Title,
			Type:       d.Type,
			ExternalID: d.UUID,
		})
	}
	return libs, nil
}

type accountsResponse struct {
	MediaContainer struct {
		Account []struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			Thumb string `json:"thumb"`
		} `json:"Account"`
	} `json:"MediaContainer"`
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	var accounts accountsResponse
	if err := s.server.Get(ctx, "/accounts", &accounts); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(accounts.MediaContainer.Account))
	for _, a := range accounts.MediaContainer.Account {
		if a.ID == 0 {
			// Account id 0 is the anonymous placeholder row.
			continue
		}
		users = append(users, media.User{
			ID:        fmt.Sprintf("%d", a.ID),
			Username:  a.Name,
			AvatarURL: a.Thumb,
			// The owner account always has id 1.
			IsAdmin:    a.ID == 1,
			IsHomeUser: a.ID != 1,
		})
	}
	return users, nil
}

type sharedServerRequest struct {
	MachineIdentifier string   `json:"machineIdentifier"`
	InvitedEmail      string   `json:"invitedEmail"`
	LibrarySectionIDs []string `json:"librarySectionIds"`
}

// CreateUser invites an account by email through plex.tv and shares the
// server with it. Plex has no server-local account creation.
func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	if u.Email == "" {
		return media.User{}, fmt.Errorf("plex: an email address is required to invite a user")
	}
	machineID, err := s.machineIdentifier(ctx)
	if err != nil {
		return media.User{}, err
	}
	var created struct {
		ID           int    `json:"id"`
		InvitedEmail string `json:"invitedEmail"`
	}
	req := sharedServerRequest{MachineIdentifier: machineID, InvitedEmail: u.Email}
	if err := s.tv.Post(ctx, "/api/v2/shared_servers", req, &created); err != nil {
		return media.User{}, err
	}
	return media.User{
		ID:       fmt.Sprintf("%d", created.ID),
		Username: u.Username,
		Email:    u.Email,
	}, nil
}

func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	machineID, err := s.machineIdentifier(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{
		"machineIdentifier": machineID,
		"librarySectionIds": access.LibraryIDs,
		"settings": map[string]any{
			"allowSync": access.AllowDownloads,
		},
	}
	return s.tv.Post(ctx, "/api/v2/shared_servers/"+url.PathEscape(userID), body, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.tv.Delete(ctx, "/api/v2/shared_servers/"+url.PathEscape(userID))
}

type sessionsResponse struct {
	MediaContainer struct {
		Metadata []struct {
			Title      string `json:"title"`
			Type       string `json:"type"`
			Duration   int64  `json:"duration"`
			ViewOffset int64  `json:"viewOffset"`
			User       struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"User"`
			Player struct {
				Product string `json:"product"`
				Title   string `json:"title"`
				Address string `json:"address"`
				State   string `json:"state"`
				Local   bool   `json:"local"`
			} `json:"Player"`
			Session struct {
				ID string `json:"id"`
			} `json:"Session"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	var resp sessionsResponse
	if err := s.server.Get(ctx, "/status/sessions", &resp); err != nil {
		return nil, err
	}
	sessions := make([]media.Session, 0, len(resp.MediaContainer.Metadata))
	for _, m := range resp.MediaContainer.Metadata {
		var progress float64
		if m.Duration > 0 {
			progress = float64(m.ViewOffset) / float64(m.Duration) * 100
		}
		sessions = append(sessions, media.Session{
			SessionID:       m.Session.ID,
			UserID:          m.User.ID,
			Username:        m.User.Title,
			MediaTitle:      m.Title,
			MediaType:       m.Type,
			Player:          m.Player.Title,
			Platform:        m.Player.Product,
			State:           m.Player.State,
			ProgressPercent: progress,
			IPAddress:       m.Player.Address,
			IsLAN:           m.Player.Local,
		})
	}
	return sessions, nil
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	q := url.Values{}
	q.Set("sessionId", sessionID)
	if reason != "" {
		q.Set("reason", reason)
	}
	return s.server.Get(ctx, "/status/sessions/terminate?"+q.Encode(), nil)
}

func (s *Service) machineIdentifier(ctx context.Context) (string, error) {
	var ident identityResponse
	if err := s.server.Get(ctx, "/identity", &ident); err != nil {
		return "", fmt.Errorf("plex: resolve machine identifier: %w", err)
	}
	return ident.MediaContainer.MachineIdentifier, nil
}
