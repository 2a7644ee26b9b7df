package export

import (
	"encoding/xml"
	"fmt"
	"os"
)

/*
<CourseCatalog>
  <Course operation="upsert" id="12" template_id="7">
    <title>Project Management</title>
    <category>Leadership</category>
    <duration>2 days</duration>
    <language>Norwegian</language>
    <location>Oslo</location>
    <next_event_start>2025-06-11 09:00:00</next_event_start>
    <events>
      <event id="200" start="2025-06-11 09:00:00" end="2025-06-12 16:00:00" city="Oslo"/>
    </events>
  </Course>
</CourseCatalog>
*/

type xmlCatalog struct {
	XMLName xml.Name    `xml:"CourseCatalog"`
	Courses []xmlCourse `xml:"Course"`
}

type xmlCourse struct {
	Operation  string `xml:"operation,attr,omitempty"`
	ID         int64  `xml:"id,attr"`
	TemplateID string `xml:"template_id,attr"`

	Title          string `xml:"title"`
	Category       string `xml:"category,omitempty"`
	Duration       string `xml:"duration,omitempty"`
	Language       string `xml:"language,omitempty"`
	Location       string `xml:"location,omitempty"`
	NextEventStart string `xml:"next_event_start,omitempty"`

	Events *xmlEvents `xml:"events,omitempty"`
}

type xmlEvents struct {
	Events []xmlEvent `xml:"event"`
}

type xmlEvent struct {
	ID    string `xml:"id,attr"`
	Start string `xml:"start,attr,omitempty"`
	End   string `xml:"end,attr,omitempty"`
	City  string `xml:"city,attr,omitempty"`
}

// MarshalCatalogXML renders rows with an XML header. operation is written as
// an attribute on every course when non-empty.
func MarshalCatalogXML(rows []Row, operation string) ([]byte, error) {
	out := xmlCatalog{Courses: make([]xmlCourse, 0, len(rows))}
	for _, r := range rows {
		c := xmlCourse{
			Operation:      operation,
			ID:             r.ID,
			TemplateID:     r.TemplateID,
			Title:          r.Title,
			Category:       r.Category,
			Duration:       r.Duration,
			Language:       r.Language,
			Location:       r.Location,
			NextEventStart: r.NextEventStart,
		}
		if len(r.Events) > 0 {
			c.Events = &xmlEvents{Events: make([]xmlEvent, 0, len(r.Events))}
			for _, ev := range r.Events {
				c.Events.Events = append(c.Events.Events, xmlEvent{
					ID:    ev.ID(),
					Start: ev.StartDate(),
					End:   ev.EndDate(),
					City:  clean(ev.City()),
				})
			}
		}
		out.Courses = append(out.Courses, c)
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal xml: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

func WriteCatalogXMLFile(outPath string, rows []Row, operation string) error {
	b, err := MarshalCatalogXML(rows, operation)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return fmt.Errorf("export: write xml: %w", err)
	}
	return nil
}
