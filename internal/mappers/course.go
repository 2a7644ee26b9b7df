package mappers

import (
	"strings"

	"eduadmin-sync/internal/domain"
)

// Field names on the local course record.
const (
	FieldTemplateID   = "coursetemplateid"
	FieldQuote        = "quote"
	FieldNotes        = "notes"
	FieldCategoryID   = "categoryid"
	FieldCategoryName = "categoryname"
	FieldDuration     = "duration"
	FieldLanguage     = "language"
	FieldLocation     = "location"
)

type Field struct {
	Name  string
	Value string
}

// Post is the title/body/excerpt triple compared before updating a record.
type Post struct {
	Title   string
	Content string
	Excerpt string
}

func PostFromTemplate(t domain.RemoteTemplate) Post {
	return Post{
		Title:   t.Name,
		Content: t.Description,
		Excerpt: StripTags(t.ShortDescription),
	}
}

// Differs reports whether the stored record needs a post update.
func (p Post) Differs(c domain.CourseRecord) bool {
	return c.Title != p.Title || c.Content != p.Content || c.Excerpt != p.Excerpt
}

// TemplateFields are the scalar fields synced on every run, in write order.
func TemplateFields(t domain.RemoteTemplate) []Field {
	return []Field{
		{FieldTemplateID, t.ID},
		{FieldQuote, t.Quote},
		{FieldNotes, t.Notes},
		{FieldCategoryID, t.CategoryID},
		{FieldCategoryName, t.CategoryName},
	}
}

// CustomFieldValues projects the duration and language custom fields.
// Values are trimmed and tag-stripped; the last occurrence of an id wins.
func CustomFieldValues(t domain.RemoteTemplate, durationID, languageID int) (duration, language string) {
	for _, cf := range t.CustomFields {
		v := strings.TrimSpace(StripTags(cf.Value))
		switch cf.ID {
		case durationID:
			duration = v
		case languageID:
			language = v
		}
	}
	return duration, language
}
