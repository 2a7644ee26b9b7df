package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS courses (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	excerpt TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'publish',
	thumbnail_id BIGINT NOT NULL DEFAULT 0,
	events TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS course_fields (
	course_id BIGINT NOT NULL REFERENCES courses(id),
	name TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (course_id, name)
);

DROP INDEX IF EXISTS idx_course_fields_lookup;
CREATE INDEX IF NOT EXISTS idx_course_fields_template ON course_fields(value) WHERE name = 'coursetemplateid';

CREATE TABLE IF NOT EXISTS media (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const postgresInitTimeout = 10 * time.Second

func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("content: open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), postgresInitTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("content: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("content: init schema: %w", err)
	}
	return &SQLStore{db: db, dialect: dialectPostgres}, nil
}
