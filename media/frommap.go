package media

// Map-based record constructors. Interpreted adapters hand back
// map[string]any payloads; these convert them into unified records,
// applying the documented defaults for anything missing.

// UserFromMap builds a normalized User from a loosely-typed payload.
func UserFromMap(m map[string]any) User {
	return User{
		ID:         str(m["id"]),
		UUID:       str(m["uuid"]),
		Username:   str(m["username"]),
		Email:      str(m["email"]),
		AvatarURL:  str(m["avatar_url"]),
		IsHomeUser: boolean(m["is_home_user"]),
		LibraryIDs: strSlice(m["library_ids"]),
		IsAdmin:    boolean(m["is_admin"]),
	}.Normalize()
}

// LibraryFromMap builds a normalized Library from a loosely-typed payload.
func LibraryFromMap(m map[string]any) Library {
	return Library{
		ID:         str(m["id"]),
		Name:       str(m["name"]),
		Type:       str(m["type"]),
		ItemCount:  integer(m["item_count"]),
		ExternalID: str(m["external_id"]),
	}.Normalize()
}

// SessionFromMap builds a normalized Session from a loosely-typed payload.
func SessionFromMap(m map[string]any) Session {
	return Session{
		SessionID:       str(m["session_id"]),
		UserID:          str(m["user_id"]),
		Username:        str(m["username"]),
		MediaTitle:      str(m["media_title"]),
		MediaType:       str(m["media_type"]),
		Player:          str(m["player"]),
		Platform:        str(m["platform"]),
		State:           str(m["state"]),
		ProgressPercent: float(m["progress_percent"]),
		IPAddress:       str(m["ip_address"]),
		IsLAN:           boolean(m["is_lan"]),
	}.Normalize()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

// integer accepts int and float64; JSON unmarshaling produces float64 for
// numbers.
func integer(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func strSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return []string{}
}
