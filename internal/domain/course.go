package domain

import (
	"maps"
	"strconv"
	"time"
)

// LocalLayout is the naive civil timestamp format used for event dates.
const LocalLayout = "2006-01-02 15:04:05"

// RemoteEvent is one row of the EduAdmin Events feed after normalization.
// Attrs holds the complete row with lowercased keys; the typed fields are
// projections of it for the reconciliation logic.
type RemoteEvent struct {
	EventID    string
	TemplateID string
	StartDate  string
	EndDate    string
	City       string
	Attrs      map[string]any
}

// Entry returns a copy of the event attributes suitable for merging.
func (e RemoteEvent) Entry() EventEntry {
	return EventEntry(maps.Clone(e.Attrs))
}

type CustomField struct {
	ID    int
	Value string
}

// RemoteTemplate is a course template. Scalar values are already rendered
// as strings so they compare directly against stored field values.
type RemoteTemplate struct {
	ID               string
	Name             string
	Description      string
	ShortDescription string
	Quote            string
	Notes            string
	CategoryID       string
	CategoryName     string
	ImageURL         string
	CustomFields     []CustomField
}

// EventEntry is the stored, merged attribute set of a single event.
type EventEntry map[string]any

func (e EventEntry) ID() string        { return e.str("eventid") }
func (e EventEntry) StartDate() string { return e.str("startdate") }
func (e EventEntry) EndDate() string   { return e.str("enddate") }
func (e EventEntry) City() string      { return e.str("city") }

func (e EventEntry) str(key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// Start parses StartDate in loc. ok is false for empty or malformed values.
func (e EventEntry) Start(loc *time.Location) (time.Time, bool) {
	return ParseLocal(e.StartDate(), loc)
}

func (e EventEntry) End(loc *time.Location) (time.Time, bool) {
	return ParseLocal(e.EndDate(), loc)
}

// ParseLocal parses a LocalLayout timestamp in loc.
func ParseLocal(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(LocalLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

const StatusPublish = "publish"

// CourseRecord is the local course entity owned by the content store.
type CourseRecord struct {
	ID          int64
	Title       string
	Content     string
	Excerpt     string
	Status      string
	ThumbnailID int64
	Fields      map[string]string
	Events      []EventEntry
}

// Field returns a stored scalar field or "".
func (c CourseRecord) Field(name string) string {
	return c.Fields[name]
}

type Media struct {
	ID        int64
	Title     string
	SourceURL string
	Path      string
}

// RunStats are the counters of one import run.
type RunStats struct {
	Imported      int `json:"imported"`
	Updated       int `json:"updated"`
	EventsAdded   int `json:"events_added"`
	EventsUpdated int `json:"events_updated"`
	EventsRemoved int `json:"events_removed"`
}
