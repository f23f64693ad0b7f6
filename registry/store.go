package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// PersistedState is the durable slice of a plugin record.
type PersistedState struct {
	State     State
	LastError string
	Version   string
	Kind      Kind
	UpdatedAt string
}

// StateStore persists plugin lifecycle state across restarts.
type StateStore interface {
	Save(rec *Record) error
	Delete(pluginID string) error
	Load() (map[string]PersistedState, error)
}

// SQLiteStore implements StateStore on a shared *sql.DB.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store and bootstraps the plugin_state table.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS plugin_state (
		plugin_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		kind TEXT NOT NULL,
		version TEXT NOT NULL,
		last_error TEXT,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create plugin_state table: %w", err)
	}
	return s, nil
}

// Save upserts one plugin's state row.
func (s *SQLiteStore) Save(rec *Record) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO plugin_state (plugin_id, state, kind, version, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(plugin_id) DO UPDATE SET
			state = excluded.state,
			kind = excluded.kind,
			version = excluded.version,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		rec.ID(), string(rec.State), string(rec.Kind), rec.Manifest.Version, rec.LastError, now,
	)
	if err != nil {
		return fmt.Errorf("persist plugin %q: %w", rec.ID(), err)
	}
	return nil
}

// Delete removes one plugin's state row.
func (s *SQLiteStore) Delete(pluginID string) error {
	_, err := s.db.Exec("DELETE FROM plugin_state WHERE plugin_id = ?", pluginID)
	if err != nil {
		return fmt.Errorf("delete plugin state %q: %w", pluginID, err)
	}
	return nil
}

// Load reads all persisted plugin states.
func (s *SQLiteStore) Load() (map[string]PersistedState, error) {
	rows, err := s.db.Query("SELECT plugin_id, state, kind, version, last_error, updated_at FROM plugin_state")
	if err != nil {
		return nil, fmt.Errorf("query plugin_state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PersistedState)
	for rows.Next() {
		var id string
		var ps PersistedState
		var state, kind string
		var lastError sql.NullString
		if err := rows.Scan(&id, &state, &kind, &ps.Version, &lastError, &ps.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plugin_state row: %w", err)
		}
		ps.State = State(state)
		ps.Kind = Kind(kind)
		if lastError.Valid {
			ps.LastError = lastError.String
		}
		out[id] = ps
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plugin_state rows: %w", err)
	}
	return out, nil
}
