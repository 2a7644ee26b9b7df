package content

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"eduadmin-sync/internal/domain"
)

// MemoryStore is an in-process Store. Event collections are deep-copied
// through JSON on the way in and out, matching what the SQL backends return.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	courses map[int64]*memCourse
	media   map[int64]domain.Media
}

type memCourse struct {
	rec    domain.CourseRecord
	events []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses: map[int64]*memCourse{},
		media:   map[int64]domain.Media{},
	}
}

func (s *MemoryStore) FindCourseByTemplateID(_ context.Context, templateID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.sortedIDs() {
		if s.courses[id].rec.Fields[fieldTemplateID] == templateID {
			return id, nil
		}
	}
	return 0, ErrNotFound
}

func (s *MemoryStore) GetCourse(_ context.Context, id int64) (domain.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return domain.CourseRecord{}, ErrNotFound
	}
	return s.snapshot(c)
}

func (s *MemoryStore) CreateCourse(_ context.Context, c domain.CourseRecord) (int64, error) {
	events, err := encodeEvents(c.Events)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	if c.Status == "" {
		c.Status = domain.StatusPublish
	}
	c.Fields = maps.Clone(c.Fields)
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	c.Events = nil
	s.courses[c.ID] = &memCourse{rec: c, events: events}
	return c.ID, nil
}

func (s *MemoryStore) UpdateCourse(_ context.Context, id int64, title, body, excerpt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.rec.Title, c.rec.Content, c.rec.Excerpt = title, body, excerpt
	return nil
}

func (s *MemoryStore) GetField(_ context.Context, id int64, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return "", ErrNotFound
	}
	return c.rec.Fields[name], nil
}

func (s *MemoryStore) SetField(_ context.Context, id int64, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.rec.Fields[name] = value
	return nil
}

func (s *MemoryStore) GetEvents(_ context.Context, id int64) ([]domain.EventEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeEvents(c.events)
}

func (s *MemoryStore) SetEvents(_ context.Context, id int64, events []domain.EventEntry) error {
	raw, err := encodeEvents(events)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.events = raw
	return nil
}

func (s *MemoryStore) Thumbnail(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return 0, ErrNotFound
	}
	return c.rec.ThumbnailID, nil
}

func (s *MemoryStore) SetThumbnail(_ context.Context, id, mediaID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.rec.ThumbnailID = mediaID
	return nil
}

func (s *MemoryStore) ListCourseIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIDs(), nil
}

func (s *MemoryStore) ListCourses(_ context.Context) ([]domain.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CourseRecord, 0, len(s.courses))
	for _, id := range s.sortedIDs() {
		rec, err := s.snapshot(s.courses[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) FindMediaByTitlePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best int64
	for id, m := range s.media {
		if strings.HasPrefix(strings.ToLower(m.Title), strings.ToLower(prefix)) && (best == 0 || id < best) {
			best = id
		}
	}
	if best == 0 {
		return 0, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) CreateMedia(_ context.Context, m domain.Media) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.media[m.ID] = m
	return m.ID, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *MemoryStore) snapshot(c *memCourse) (domain.CourseRecord, error) {
	rec := c.rec
	rec.Fields = maps.Clone(c.rec.Fields)
	events, err := decodeEvents(c.events)
	if err != nil {
		return domain.CourseRecord{}, fmt.Errorf("content: course %d: %w", rec.ID, err)
	}
	rec.Events = events
	return rec, nil
}

const fieldTemplateID = "coursetemplateid"

func encodeEvents(events []domain.EventEntry) ([]byte, error) {
	if events == nil {
		events = []domain.EventEntry{}
	}
	b, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("content: encode events: %w", err)
	}
	return b, nil
}

func decodeEvents(raw []byte) ([]domain.EventEntry, error) {
	if len(raw) == 0 {
		return []domain.EventEntry{}, nil
	}
	var events []domain.EventEntry
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("content: decode events: %w", err)
	}
	if events == nil {
		events = []domain.EventEntry{}
	}
	return events, nil
}
