package eduadmin

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"eduadmin-sync/internal/domain"
)

// dateFields are re-rendered as naive local timestamps. Matching is on the
// remote (original-case) key.
var dateFields = map[string]bool{
	"StartDate":           true,
	"EndDate":             true,
	"ApplicationOpenDate": true,
	"LastApplicationDate": true,
	"Created":             true,
	"Modified":            true,
}

var remoteLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatLocal converts a remote timestamp to domain.LocalLayout in loc.
// Timestamps without an offset are read as loc. Unparseable input yields "".
func FormatLocal(s string, loc *time.Location) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range remoteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc).Format(domain.LocalLayout)
		}
	}
	return ""
}

// ParseEvents reads the "value" array of an Events response.
func ParseEvents(body []byte, loc *time.Location) []domain.RemoteEvent {
	var out []domain.RemoteEvent
	gjson.GetBytes(body, "value").ForEach(func(_, row gjson.Result) bool {
		tpl := row.Get("CourseTemplateId")
		if !truthy(tpl) {
			return true
		}

		attrs := map[string]any{}
		row.ForEach(func(key, val gjson.Result) bool {
			k := key.String()
			if dateFields[k] {
				attrs[strings.ToLower(k)] = FormatLocal(scalar(val), loc)
			} else {
				attrs[strings.ToLower(k)] = val.Value()
			}
			return true
		})

		ev := domain.RemoteEvent{
			TemplateID: scalar(tpl),
			Attrs:      attrs,
		}
		if id := row.Get("EventId"); truthy(id) {
			ev.EventID = scalar(id)
		}
		entry := domain.EventEntry(attrs)
		ev.StartDate = entry.StartDate()
		ev.EndDate = entry.EndDate()
		ev.City = entry.City()

		out = append(out, ev)
		return true
	})
	return out
}

// ParseTemplates reads the "value" array of a CourseTemplates response.
func ParseTemplates(body []byte) []domain.RemoteTemplate {
	var out []domain.RemoteTemplate
	gjson.GetBytes(body, "value").ForEach(func(_, row gjson.Result) bool {
		id := row.Get("CourseTemplateId")
		if !truthy(id) {
			return true
		}

		t := domain.RemoteTemplate{
			ID:               scalar(id),
			Name:             "Untitled",
			Description:      scalar(row.Get("CourseDescription")),
			ShortDescription: scalar(row.Get("CourseDescriptionShort")),
			Quote:            scalar(row.Get("Quote")),
			Notes:            scalar(row.Get("Notes")),
			CategoryID:       scalar(row.Get("CategoryId")),
			CategoryName:     scalar(row.Get("CategoryName")),
			ImageURL:         scalar(row.Get("ImageUrl")),
		}
		if name := row.Get("CourseName"); name.Exists() && name.Type != gjson.Null {
			t.Name = scalar(name)
		}

		row.Get("CustomFields").ForEach(func(_, cf gjson.Result) bool {
			t.CustomFields = append(t.CustomFields, domain.CustomField{
				ID:    int(cf.Get("CustomFieldId").Int()),
				Value: scalar(cf.Get("CustomFieldValue")),
			})
			return true
		})

		out = append(out, t)
		return true
	})
	return out
}

// scalar renders a JSON value as the string stored in a record field.
func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return r.Str
	case gjson.Number:
		return strconv.FormatFloat(r.Num, 'f', -1, 64)
	case gjson.True:
		return "1"
	case gjson.False:
		return ""
	default:
		return r.Raw
	}
}

// truthy treats missing, null, false, 0, "" and "0" as absent.
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != "" && r.Str != "0"
	default:
		return true
	}
}
