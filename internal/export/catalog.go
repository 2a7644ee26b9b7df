// Package export writes the local course catalog as CSV or XML for
// downstream systems.
package export

import (
	"strconv"
	"strings"
	"time"

	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/mappers"
)

// Row is one published course with its derived catalog values.
type Row struct {
	ID             int64
	TemplateID     string
	Title          string
	Category       string
	Duration       string
	Language       string
	Location       string
	NextEventStart string
	EventCount     int
	Events         []domain.EventEntry
}

// BuildCatalog keeps published courses and resolves their next upcoming event.
func BuildCatalog(courses []domain.CourseRecord, now time.Time, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]Row, 0, len(courses))
	for _, c := range courses {
		if c.Status != domain.StatusPublish {
			continue
		}
		rows = append(rows, Row{
			ID:             c.ID,
			TemplateID:     c.Field(mappers.FieldTemplateID),
			Title:          clean(c.Title),
			Category:       clean(c.Field(mappers.FieldCategoryName)),
			Duration:       clean(c.Field(mappers.FieldDuration)),
			Language:       clean(c.Field(mappers.FieldLanguage)),
			Location:       clean(c.Field(mappers.FieldLocation)),
			NextEventStart: nextStart(c.Events, now, loc),
			EventCount:     len(c.Events),
			Events:         c.Events,
		})
	}
	return rows
}

func nextStart(events []domain.EventEntry, now time.Time, loc *time.Location) string {
	var best time.Time
	found := false
	for _, ev := range events {
		start, ok := ev.Start(loc)
		if !ok || !start.After(now) {
			continue
		}
		if !found || start.Before(best) {
			best, found = start, true
		}
	}
	if !found {
		return ""
	}
	return best.Format(domain.LocalLayout)
}

// clean flattens newlines so each value stays on one line.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
