// Package embyapi implements the adapter logic shared by Emby and
// Jellyfin, which expose the same HTTP API under different auth headers.
package embyapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/media"
)

// Service talks to an Emby-compatible server.
type Service struct {
	client *builtin.Client
	name   string
}

// New builds the shared adapter. tokenHeader is the API-key header the
// server variant expects.
func New(inst media.Instance, name, tokenHeader string) (*Service, error) {
	if inst.URL == "" {
		return nil, fmt.Errorf("%s: server url is required", name)
	}
	if inst.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", name)
	}
	return &Service{
		client: builtin.NewClient(inst.URL).SetHeader(tokenHeader, inst.APIKey),
		name:   name,
	}, nil
}

type systemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

func (s *Service) TestConnection(ctx context.Context) (media.ConnectionTestResult, error) {
	var info systemInfo
	if err := s.client.Get(ctx, "/System/Info", &info); err != nil {
		return media.ConnectionTestResult{Online: false, Message: err.Error()}, nil
	}
	return media.ConnectionTestResult{
		Online:  true,
		Message: fmt.Sprintf("connected to %s", info.ServerName),
		Version: info.Version,
	}, nil
}

type virtualFolder struct {
	Name           string `json:"Name"`
	ItemID         string `json:"ItemId"`
	CollectionType string `json:"CollectionType"`
}

func (s *Service) Libraries(ctx context.Context) ([]media.Library, error) {
	var folders []virtualFolder
	if err := s.client.Get(ctx, "/Library/VirtualFolders", &folders); err != nil {
		return nil, err
	}
	libs := make([]media.Library, 0, len(folders))
	for _, f := range folders {
		libs = append(libs, media.Library{
			ID:   f.ItemID,
			Name: f.Name,
			Type: f.CollectionType,
		})
	}
	return libs, nil
}

type apiUser struct {
	ID               string `json:"Id"`
	Name             string `json:"Name"`
	PrimaryImageTag  string `json:"PrimaryImageTag"`
	Policy           policy `json:"Policy"`
	LastLoginDate    string `json:"LastLoginDate"`
	HasPassword      bool   `json:"HasPassword"`
	ServerConfigured bool   `json:"HasConfiguredPassword"`
}

type policy struct {
	IsAdministrator                bool     `json:"IsAdministrator"`
	EnableAllFolders               bool     `json:"EnableAllFolders"`
	EnabledFolders                 []string `json:"EnabledFolders"`
	EnableContentDownloading       bool     `json:"EnableContentDownloading"`
	EnableVideoPlaybackTranscoding bool     `json:"EnableVideoPlaybackTranscoding"`
}

func (s *Service) Users(ctx context.Context) ([]media.User, error) {
	var raw []apiUser
	if err := s.client.Get(ctx, "/Users", &raw); err != nil {
		return nil, err
	}
	users := make([]media.User, 0, len(raw))
	for _, u := range raw {
		libs := u.Policy.EnabledFolders
		if u.Policy.EnableAllFolders {
			libs = nil
		}
		users = append(users, media.User{
			ID:         u.ID,
			Username:   u.Name,
			LibraryIDs: libs,
			IsAdmin:    u.Policy.IsAdministrator,
		})
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, u media.NewUser) (media.User, error) {
	var created apiUser
	body := map[string]any{"Name": u.Username}
	if err := s.client.Post(ctx, "/Users/New", body, &created); err != nil {
		return media.User{}, err
	}
	if u.Password != "" {
		pw := map[string]any{"NewPw": u.Password}
		if err := s.client.Post(ctx, "/Users/"+url.PathEscape(created.ID)+"/Password", pw, nil); err != nil {
			return media.User{}, fmt.Errorf("%s: user created but password not set: %w", s.name, err)
		}
	}
	return media.User{
		ID:       created.ID,
		Username: created.Name,
		Email:    u.Email,
	}, nil
}

// UpdateUserAccess replaces the user's folder grants and download and
// transcode permissions. The full policy is fetched first so unrelated
// settings survive the round trip.
func (s *Service) UpdateUserAccess(ctx context.Context, userID string, access media.UserAccess) error {
	var u struct {
		Policy map[string]any `json:"Policy"`
	}
	if err := s.client.Get(ctx, "/Users/"+url.PathEscape(userID), &u); err != nil {
		return err
	}
	if u.Policy == nil {
		u.Policy = map[string]any{}
	}
	u.Policy["EnableAllFolders"] = false
	u.Policy["EnabledFolders"] = access.LibraryIDs
	u.Policy["EnableContentDownloading"] = access.AllowDownloads
	u.Policy["EnableVideoPlaybackTranscoding"] = access.AllowTranscode
	return s.client.Post(ctx, "/Users/"+url.PathEscape(userID)+"/Policy", u.Policy, nil)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.client.Delete(ctx, "/Users/"+url.PathEscape(userID))
}

type apiSession struct {
	ID             string `json:"Id"`
	UserID         string `json:"UserId"`
	UserName       string `json:"UserName"`
	Client         string `json:"Client"`
	DeviceName     string `json:"DeviceName"`
	RemoteEndPoint string `json:"RemoteEndPoint"`
	NowPlayingItem *struct {
		Name         string `json:"Name"`
		Type         string `json:"Type"`
		RunTimeTicks int64  `json:"RunTimeTicks"`
	} `json:"NowPlayingItem"`
	PlayState struct {
		PositionTicks int64 `json:"PositionTicks"`
		IsPaused      bool  `json:"IsPaused"`
	} `json:"PlayState"`
}

func (s *Service) ActiveSessions(ctx context.Context) ([]media.Session, error) {
	var raw []apiSession
	if err := s.client.Get(ctx, "/Sessions", &raw); err != nil {
		return nil, err
	}
	sessions := make([]media.Session, 0, len(raw))
	for _, sess := range raw {
		if sess.NowPlayingItem == nil {
			// Idle sessions carry no playback.
			continue
		}
		state := "playing"
		if sess.PlayState.IsPaused {
			state = "paused"
		}
		var progress float64
		if sess.NowPlayingItem.RunTimeTicks > 0 {
			progress = float64(sess.PlayState.PositionTicks) / float64(sess.NowPlayingItem.RunTimeTicks) * 100
		}
		sessions = append(sessions, media.Session{
			SessionID:       sess.ID,
			UserID:          sess.UserID,
			Username:        sess.UserName,
			MediaTitle:      sess.NowPlayingItem.Name,
			MediaType:       sess.NowPlayingItem.Type,
			Player:          sess.DeviceName,
			Platform:        sess.Client,
			State:           state,
			ProgressPercent: progress,
			IPAddress:       sess.RemoteEndPoint,
		})
	}
	return sessions, nil
}

func (s *Service) TerminateSession(ctx context.Context, sessionID, reason string) error {
	return s.client.Post(ctx, "/Sessions/"+url.PathEscape(sessionID)+"/Playing/Stop", nil, nil)
}
