package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"eduadmin-sync/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store over database/sql. Queries are written with "?"
// placeholders and rebound for postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) q(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) like() string {
	if s.dialect == dialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

func (s *SQLStore) FindCourseByTemplateID(ctx context.Context, templateID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT course_id FROM course_fields
		WHERE name = 'coursetemplateid' AND value = ?
		ORDER BY course_id LIMIT 1`), templateID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("content: find course %s: %w", templateID, err)
	}
	return id, nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id int64) (domain.CourseRecord, error) {
	rec := domain.CourseRecord{ID: id}
	var events string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT title, content, excerpt, status, thumbnail_id, events
		FROM courses WHERE id = ?`), id).
		Scan(&rec.Title, &rec.Content, &rec.Excerpt, &rec.Status, &rec.ThumbnailID, &events)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CourseRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.CourseRecord{}, fmt.Errorf("content: get course %d: %w", id, err)
	}
	if rec.Events, err = decodeEvents([]byte(events)); err != nil {
		return domain.CourseRecord{}, err
	}
	if rec.Fields, err = s.fields(ctx, id); err != nil {
		return domain.CourseRecord{}, err
	}
	return rec, nil
}

func (s *SQLStore) fields(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT name, value FROM course_fields WHERE course_id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("content: fields %d: %w", id, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateCourse(ctx context.Context, c domain.CourseRecord) (int64, error) {
	if c.Status == "" {
		c.Status = domain.StatusPublish
	}
	events, err := encodeEvents(c.Events)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("content: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, s.q(`
		INSERT INTO courses (title, content, excerpt, status, thumbnail_id, events)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		c.Title, c.Content, c.Excerpt, c.Status, c.ThumbnailID, string(events)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("content: create course: %w", err)
	}
	for name, value := range c.Fields {
		if _, err := tx.ExecContext(ctx, s.q(upsertField), id, name, value); err != nil {
			return 0, fmt.Errorf("content: create course field %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("content: commit: %w", err)
	}
	return id, nil
}

func (s *SQLStore) UpdateCourse(ctx context.Context, id int64, title, body, excerpt string) error {
	return s.exec(ctx, id, `UPDATE courses SET title = ?, content = ?, excerpt = ? WHERE id = ?`, title, body, excerpt, id)
}

func (s *SQLStore) GetField(ctx context.Context, id int64, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM course_fields WHERE course_id = ? AND name = ?`), id, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("content: get field %s: %w", name, err)
	}
	return value, nil
}

const upsertField = `
	INSERT INTO course_fields (course_id, name, value) VALUES (?, ?, ?)
	ON CONFLICT (course_id, name) DO UPDATE SET value = excluded.value`

func (s *SQLStore) SetField(ctx context.Context, id int64, name, value string) error {
	if _, err := s.db.ExecContext(ctx, s.q(upsertField), id, name, value); err != nil {
		return fmt.Errorf("content: set field %s: %w", name, err)
	}
	return nil
}

func (s *SQLStore) GetEvents(ctx context.Context, id int64) ([]domain.EventEntry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT events FROM courses WHERE id = ?`), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("content: get events %d: %w", id, err)
	}
	return decodeEvents([]byte(raw))
}

func (s *SQLStore) SetEvents(ctx context.Context, id int64, events []domain.EventEntry) error {
	raw, err := encodeEvents(events)
	if err != nil {
		return err
	}
	return s.exec(ctx, id, `UPDATE courses SET events = ? WHERE id = ?`, string(raw), id)
}

func (s *SQLStore) Thumbnail(ctx context.Context, id int64) (int64, error) {
	var mediaID int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT thumbnail_id FROM courses WHERE id = ?`), id).Scan(&mediaID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("content: thumbnail %d: %w", id, err)
	}
	return mediaID, nil
}

func (s *SQLStore) SetThumbnail(ctx context.Context, id, mediaID int64) error {
	return s.exec(ctx, id, `UPDATE courses SET thumbnail_id = ? WHERE id = ?`, mediaID, id)
}

func (s *SQLStore) ListCourseIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("content: list courses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]domain.CourseRecord, error) {
	ids, err := s.ListCourseIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CourseRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) FindMediaByTitlePrefix(ctx context.Context, prefix string) (int64, error) {
	var id int64
	query := `SELECT id FROM media WHERE title ` + s.like() + ` ? ESCAPE '\' ORDER BY id LIMIT 1`
	err := s.db.QueryRowContext(ctx, s.q(query), escapeLike(prefix)+"%").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("content: find media %q: %w", prefix, err)
	}
	return id, nil
}

func (s *SQLStore) CreateMedia(ctx context.Context, m domain.Media) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO media (title, source_url, path) VALUES (?, ?, ?) RETURNING id`),
		m.Title, m.SourceURL, m.Path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("content: create media: %w", err)
	}
	return id, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("content: course %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
