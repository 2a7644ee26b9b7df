package mappers

import (
	"testing"

	"eduadmin-sync/internal/domain"
)

func TestStripTags(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"<p>Hello <strong>world</strong></p>", "Hello world"},
		{"<p>Fish &amp; chips</p>", "Fish &amp; chips"},
		{"a<!-- note -->b", "ab"},
		{"<br/>", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := StripTags(tc.input); got != tc.expected {
			t.Errorf("StripTags(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestPostFromTemplate(t *testing.T) {
	tpl := domain.RemoteTemplate{
		Name:             "Excel Basics",
		Description:      "<p>Long</p>",
		ShortDescription: "<em>Short</em> intro",
	}
	p := PostFromTemplate(tpl)

	if p.Title != "Excel Basics" {
		t.Errorf("Expected title 'Excel Basics', got '%s'", p.Title)
	}
	if p.Content != "<p>Long</p>" {
		t.Errorf("Expected content to keep markup, got '%s'", p.Content)
	}
	if p.Excerpt != "Short intro" {
		t.Errorf("Expected excerpt 'Short intro', got '%s'", p.Excerpt)
	}

	rec := domain.CourseRecord{Title: p.Title, Content: p.Content, Excerpt: p.Excerpt}
	if p.Differs(rec) {
		t.Error("Expected identical record to not differ")
	}
	rec.Excerpt = "other"
	if !p.Differs(rec) {
		t.Error("Expected changed excerpt to differ")
	}
}

func TestTemplateFields(t *testing.T) {
	tpl := domain.RemoteTemplate{ID: "12", Quote: "q", Notes: "n", CategoryID: "3", CategoryName: "Office"}
	fields := TemplateFields(tpl)

	want := []Field{
		{FieldTemplateID, "12"},
		{FieldQuote, "q"},
		{FieldNotes, "n"},
		{FieldCategoryID, "3"},
		{FieldCategoryName, "Office"},
	}
	if len(fields) != len(want) {
		t.Fatalf("Expected %d fields, got %d", len(want), len(fields))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("Field %d: expected %+v, got %+v", i, want[i], fields[i])
		}
	}
}

func TestCustomFieldValues(t *testing.T) {
	tpl := domain.RemoteTemplate{CustomFields: []domain.CustomField{
		{ID: 8110, Value: "  <p>2 days</p> "},
		{ID: 9999, Value: "ignored"},
		{ID: 8166, Value: "Norwegian"},
	}}

	duration, language := CustomFieldValues(tpl, 8110, 8166)
	if duration != "2 days" {
		t.Errorf("Expected duration '2 days', got '%s'", duration)
	}
	if language != "Norwegian" {
		t.Errorf("Expected language 'Norwegian', got '%s'", language)
	}

	duration, language = CustomFieldValues(domain.RemoteTemplate{}, 8110, 8166)
	if duration != "" || language != "" {
		t.Errorf("Expected empty values without custom fields, got %q/%q", duration, language)
	}
}
