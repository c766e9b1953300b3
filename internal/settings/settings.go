// Package settings provides the local, per-deployment settings store. It has
// no remote counterpart: logo, WhatsApp contact details and the category
// button configuration live in an embedded SQLite key-value table, read at
// startup and written on explicit save.
package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"storefront-catalog-service/internal/domain"
)

const (
	settingsKey = "storefront_settings"
	buttonsKey  = "category_buttons"
)

// DefaultWhatsappNumber is used until the admin saves their own contact number.
const DefaultWhatsappNumber = "03709283496"

// DefaultSettings returns the settings used when nothing has been saved yet.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Logo:           "/logo.png",
		WhatsappNumber: DefaultWhatsappNumber,
	}
}

// DefaultCategoryButtons returns the stock button configuration for the
// reserved tags.
func DefaultCategoryButtons() map[string]domain.CategoryButton {
	return map[string]domain.CategoryButton{
		domain.TagPaid: {Text: "Get All Paid Offers", Price: "Contact Us", Message: "I am interested in bulk software purchase"},
		domain.TagFree: {Text: "Join Our Community", Price: "Free", Message: "I want to join your free learning community"},
		domain.TagAll:  {Text: "Browse Full Catalog", Price: "Visit Shop", Message: "I want to see full catalog"},
	}
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the settings database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open db: %w", err)
	}
	// WAL keeps reads from blocking the occasional save.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("settings: set wal mode: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("settings: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

func (s *Store) get(key string) (string, error) {
	var val string
	err := s.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	return val, err
}

func (s *Store) set(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		key, value, value)
	return err
}

// Settings returns the saved storefront settings, or the defaults when
// nothing has been saved or the stored value cannot be decoded.
func (s *Store) Settings() domain.Settings {
	raw, err := s.get(settingsKey)
	if err != nil {
		return DefaultSettings()
	}
	var out domain.Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return DefaultSettings()
	}
	if out.WhatsappNumber == "" {
		out.WhatsappNumber = DefaultWhatsappNumber
	}
	return out
}

// SaveSettings persists the storefront settings.
func (s *Store) SaveSettings(settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("settings: encode settings: %w", err)
	}
	if err := s.set(settingsKey, string(raw)); err != nil {
		return fmt.Errorf("settings: save settings: %w", err)
	}
	return nil
}

// CategoryButtons returns the saved button configuration, or the defaults.
func (s *Store) CategoryButtons() map[string]domain.CategoryButton {
	raw, err := s.get(buttonsKey)
	if err != nil {
		return DefaultCategoryButtons()
	}
	var out map[string]domain.CategoryButton
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return DefaultCategoryButtons()
	}
	return out
}

// SaveCategoryButtons persists the button configuration map.
func (s *Store) SaveCategoryButtons(buttons map[string]domain.CategoryButton) error {
	raw, err := json.Marshal(buttons)
	if err != nil {
		return fmt.Errorf("settings: encode buttons: %w", err)
	}
	if err := s.set(buttonsKey, string(raw)); err != nil {
		return fmt.Errorf("settings: save buttons: %w", err)
	}
	return nil
}

// ResetDefaults drops the saved entries so the defaults apply again. The
// remote catalog is untouched.
func (s *Store) ResetDefaults() error {
	_, err := s.conn.Exec("DELETE FROM settings WHERE key IN (?, ?)", settingsKey, buttonsKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("settings: reset: %w", err)
	}
	return nil
}
