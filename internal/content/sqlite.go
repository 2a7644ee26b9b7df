package content

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	excerpt TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'publish',
	thumbnail_id INTEGER NOT NULL DEFAULT 0,
	events TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS course_fields (
	course_id INTEGER NOT NULL REFERENCES courses(id),
	name TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (course_id, name)
);

DROP INDEX IF EXISTS idx_course_fields_lookup;
CREATE INDEX IF NOT EXISTS idx_course_fields_template ON course_fields(value) WHERE name = 'coursetemplateid';

CREATE TABLE IF NOT EXISTS media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSQLite opens (and creates) a SQLite content database at path.
func OpenSQLite(path string) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("content: empty sqlite path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("content: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("content: open sqlite: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("content: init schema: %w", err)
	}
	return &SQLStore{db: db, dialect: dialectSQLite}, nil
}
