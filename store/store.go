// Package store persists configured service instances. The plugin core
// itself never stores instances; this is the persistence collaborator the
// CLI and syncer use.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/themaluxis/MUM/media"
)

// ErrNotFound is returned when no instance matches the given id or name.
var ErrNotFound = errors.New("store: instance not found")

// InstanceStore keeps media.Instance records in a sqlite table.
type InstanceStore struct {
	db *sql.DB
}

// Open opens or creates the database at path and bootstraps the schema.
func Open(path string) (*InstanceStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open instance db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates the store on a shared *sql.DB and bootstraps the
// server_instance table.
func New(db *sql.DB) (*InstanceStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS server_instance (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		plugin_id TEXT NOT NULL,
		url TEXT NOT NULL,
		api_key TEXT,
		username TEXT,
		password TEXT,
		config TEXT
	)`)
	if err != nil {
		return nil, fmt.Errorf("create server_instance table: %w", err)
	}
	return &InstanceStore{db: db}, nil
}

// Close closes the underlying database.
func (s *InstanceStore) Close() error {
	return s.db.Close()
}

// Add saves a new instance. A missing id gets a fresh UUID. The saved
// instance is returned.
func (s *InstanceStore) Add(inst media.Instance) (media.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	cfg, err := encodeConfig(inst.Config)
	if err != nil {
		return media.Instance{}, err
	}
	_, err = s.db.Exec(`INSERT INTO server_instance (id, name, plugin_id, url, api_key, username, password, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.Name, inst.PluginID, inst.URL, inst.APIKey, inst.Username, inst.Password, cfg,
	)
	if err != nil {
		return media.Instance{}, fmt.Errorf("save instance %q: %w", inst.Name, err)
	}
	return inst, nil
}

// Update rewrites an existing instance row.
func (s *InstanceStore) Update(inst media.Instance) error {
	cfg, err := encodeConfig(inst.Config)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE server_instance
		SET name = ?, plugin_id = ?, url = ?, api_key = ?, username = ?, password = ?, config = ?
		WHERE id = ?`,
		inst.Name, inst.PluginID, inst.URL, inst.APIKey, inst.Username, inst.Password, cfg, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("update instance %q: %w", inst.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes an instance by id.
func (s *InstanceStore) Remove(id string) error {
	res, err := s.db.Exec("DELETE FROM server_instance WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete instance %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the instance with the given id.
func (s *InstanceStore) Get(id string) (media.Instance, error) {
	return s.one("SELECT id, name, plugin_id, url, api_key, username, password, config FROM server_instance WHERE id = ?", id)
}

// GetByName returns the instance with the given display name.
func (s *InstanceStore) GetByName(name string) (media.Instance, error) {
	return s.one("SELECT id, name, plugin_id, url, api_key, username, password, config FROM server_instance WHERE name = ?", name)
}

// List returns all instances ordered by name.
func (s *InstanceStore) List() ([]media.Instance, error) {
	rows, err := s.db.Query("SELECT id, name, plugin_id, url, api_key, username, password, config FROM server_instance ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var out []media.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

func (s *InstanceStore) one(query, arg string) (media.Instance, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return media.Instance{}, fmt.Errorf("query instance: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return media.Instance{}, err
		}
		return media.Instance{}, ErrNotFound
	}
	return scanInstance(rows)
}

func scanInstance(rows *sql.Rows) (media.Instance, error) {
	var inst media.Instance
	var apiKey, username, password, cfg sql.NullString
	if err := rows.Scan(&inst.ID, &inst.Name, &inst.PluginID, &inst.URL, &apiKey, &username, &password, &cfg); err != nil {
		return media.Instance{}, fmt.Errorf("scan instance row: %w", err)
	}
	inst.APIKey = apiKey.String
	inst.Username = username.String
	inst.Password = password.String
	if cfg.Valid && cfg.String != "" {
		if err := json.Unmarshal([]byte(cfg.String), &inst.Config); err != nil {
			return media.Instance{}, fmt.Errorf("decode instance config: %w", err)
		}
	}
	return inst, nil
}

func encodeConfig(cfg map[string]any) (string, error) {
	if len(cfg) == 0 {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode instance config: %w", err)
	}
	return string(data), nil
}
