package media

// User is the normalized user record returned by any adapter. Fields the
// source service cannot supply carry their zero defaults: empty string for
// email/avatar, empty slice for library ids, false for booleans.
type User struct {
	ID         string   `json:"id"`
	UUID       string   `json:"uuid"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	AvatarURL  string   `json:"avatar_url"`
	IsHomeUser bool     `json:"is_home_user"`
	LibraryIDs []string `json:"library_ids"`
	IsAdmin    bool     `json:"is_admin"`
}

// Normalize fills defined defaults for fields the adapter left unset.
func (u User) Normalize() User {
	if u.LibraryIDs == nil {
		u.LibraryIDs = []string{}
	}
	return u
}

// Library is the normalized library record.
type Library struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ItemCount  int    `json:"item_count"`
	ExternalID string `json:"external_id"`
}

// Normalize fills defined defaults. The external id falls back to the
// library id so callers can always key on it.
func (l Library) Normalize() Library {
	if l.ExternalID == "" {
		l.ExternalID = l.ID
	}
	return l
}

// Session is the normalized active-session record.
type Session struct {
	SessionID       string  `json:"session_id"`
	UserID          string  `json:"user_id"`
	Username        string  `json:"username"`
	MediaTitle      string  `json:"media_title"`
	MediaType       string  `json:"media_type"`
	Player          string  `json:"player"`
	Platform        string  `json:"platform"`
	State           string  `json:"state"`
	ProgressPercent float64 `json:"progress_percent"`
	IPAddress       string  `json:"ip_address"`
	IsLAN           bool    `json:"is_lan"`
}

// Normalize clamps progress into [0, 100] and defaults the playback state.
func (s Session) Normalize() Session {
	if s.ProgressPercent < 0 {
		s.ProgressPercent = 0
	}
	if s.ProgressPercent > 100 {
		s.ProgressPercent = 100
	}
	if s.State == "" {
		s.State = "unknown"
	}
	return s
}

// ConnectionTestResult reports the outcome of a connection test.
type ConnectionTestResult struct {
	Online  bool   `json:"online"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// NewUser carries the inputs for user creation.
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// UserAccess carries a library-access update for an existing user.
type UserAccess struct {
	LibraryIDs     []string `json:"library_ids"`
	AllowDownloads bool     `json:"allow_downloads"`
	AllowTranscode bool     `json:"allow_transcode"`
}

// Instance is a configured connection to one external server. It is owned
// by the caller; the core never persists it.
type Instance struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	PluginID string         `json:"plugin_id"`
	URL      string         `json:"url"`
	APIKey   string         `json:"api_key,omitempty"`
	Username string         `json:"username,omitempty"`
	Password string         `json:"password,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}
