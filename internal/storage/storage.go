package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SaveRecord is one window written (or discarded) by a save-and-close.
type SaveRecord struct {
	ID        int64
	WindowID  string
	Folder    string
	Path      string // empty when the window was discarded
	TabCount  int
	Appended  bool
	Discarded bool
	CreatedAt time.Time
	Tabs      []SavedTab // populated by RecordSave input and GetSave
}

// SavedTab is a single line written to a save file.
type SavedTab struct {
	Title string
	URL   string
}

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS saves (
    id          INTEGER PRIMARY KEY,
    window_id   TEXT NOT NULL,
    folder      TEXT NOT NULL,
    path        TEXT NOT NULL DEFAULT '',
    tab_count   INTEGER NOT NULL,
    appended    BOOLEAN DEFAULT FALSE,
    discarded   BOOLEAN DEFAULT FALSE,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     2,
		Description: "record the tabs written by each save",
		SQL: `
CREATE TABLE saved_tabs (
    id          INTEGER PRIMARY KEY,
    save_id     INTEGER NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL
);
CREATE INDEX saved_tabs_url ON saved_tabs(url);`,
	},
}

// OpenDB opens (or creates) a SQLite database at the given path.
// It creates parent directories if needed, enables foreign keys and WAL mode,
// and runs any pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and runs any
// pending migrations in order.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/tabwrangler/tabwrangler.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabwrangler", "tabwrangler.db"), nil
}

// RecordSave inserts a save and its tabs in a single transaction and
// returns the new row id.
func RecordSave(db *sql.DB, rec SaveRecord) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO saves (window_id, folder, path, tab_count, appended, discarded) VALUES (?, ?, ?, ?, ?, ?)",
		rec.WindowID, rec.Folder, rec.Path, rec.TabCount, rec.Appended, rec.Discarded,
	)
	if err != nil {
		return 0, fmt.Errorf("insert save: %w", err)
	}
	saveID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get save id: %w", err)
	}

	for _, tab := range rec.Tabs {
		if _, err := tx.Exec(
			"INSERT INTO saved_tabs (save_id, title, url) VALUES (?, ?, ?)",
			saveID, tab.Title, tab.URL,
		); err != nil {
			return 0, fmt.Errorf("insert tab %q: %w", tab.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return saveID, nil
}

// ListSaves returns the most recent saves first, without their tabs.
// A limit of zero or less returns every save.
func ListSaves(db *sql.DB, limit int) ([]SaveRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT id, window_id, folder, path, tab_count, appended, discarded, created_at
		 FROM saves ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query saves: %w", err)
	}
	defer rows.Close()

	var result []SaveRecord
	for rows.Next() {
		var s SaveRecord
		if err := rows.Scan(&s.ID, &s.WindowID, &s.Folder, &s.Path, &s.TabCount, &s.Appended, &s.Discarded, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saves: %w", err)
	}
	return result, nil
}

// GetSave loads a save with its tabs.
func GetSave(db *sql.DB, id int64) (*SaveRecord, error) {
	s := &SaveRecord{}
	err := db.QueryRow(
		`SELECT id, window_id, folder, path, tab_count, appended, discarded, created_at
		 FROM saves WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.WindowID, &s.Folder, &s.Path, &s.TabCount, &s.Appended, &s.Discarded, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("save %d not found", id)
		}
		return nil, fmt.Errorf("query save: %w", err)
	}

	rows, err := db.Query("SELECT title, url FROM saved_tabs WHERE save_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("query tabs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tab SavedTab
		if err := rows.Scan(&tab.Title, &tab.URL); err != nil {
			return nil, fmt.Errorf("scan tab: %w", err)
		}
		s.Tabs = append(s.Tabs, tab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tabs: %w", err)
	}
	return s, nil
}

// FindSavesByURL returns saves that wrote the given URL, newest first.
func FindSavesByURL(db *sql.DB, url string) ([]SaveRecord, error) {
	rows, err := db.Query(
		`SELECT DISTINCT s.id, s.window_id, s.folder, s.path, s.tab_count, s.appended, s.discarded, s.created_at
		 FROM saves s JOIN saved_tabs t ON t.save_id = s.id
		 WHERE t.url = ? ORDER BY s.created_at DESC, s.id DESC`,
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("query saves by url: %w", err)
	}
	defer rows.Close()

	var result []SaveRecord
	for rows.Next() {
		var s SaveRecord
		if err := rows.Scan(&s.ID, &s.WindowID, &s.Folder, &s.Path, &s.TabCount, &s.Appended, &s.Discarded, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// DeleteSave removes a save and its tabs. Returns an error if it does not
// exist.
func DeleteSave(db *sql.DB, id int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// PRAGMA foreign_keys applies per connection, so don't rely on the cascade.
	if _, err := tx.Exec("DELETE FROM saved_tabs WHERE save_id = ?", id); err != nil {
		return fmt.Errorf("delete saved tabs: %w", err)
	}
	res, err := tx.Exec("DELETE FROM saves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save %d not found", id)
	}
	return tx.Commit()
}
