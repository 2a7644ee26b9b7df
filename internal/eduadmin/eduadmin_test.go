package eduadmin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"eduadmin-sync/internal/state"
)

func oslo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestFormatLocal(t *testing.T) {
	loc := oslo(t)
	testCases := []struct {
		input    string
		expected string
	}{
		{"2025-03-01T10:00:00+00:00", "2025-03-01 11:00:00"},
		{"2025-07-01T10:00:00Z", "2025-07-01 12:00:00"},
		{"2025-03-01T10:00:00.123+01:00", "2025-03-01 10:00:00"},
		{"2025-03-01T10:00:00", "2025-03-01 10:00:00"},
		{"2025-03-10T09:00:00+0200", "2025-03-10 08:00:00"},
		{"2025-07-10T09:00:00.5-0100", "2025-07-10 12:00:00"},
		{"", ""},
		{"not a date", ""},
	}
	for _, tc := range testCases {
		if got := FormatLocal(tc.input, loc); got != tc.expected {
			t.Errorf("FormatLocal(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestParseEvents(t *testing.T) {
	body := []byte(`{"value":[
		{"EventId": 11, "CourseTemplateId": 5, "City": "Oslo", "StartDate": "2025-03-01T09:00:00+01:00",
		 "EndDate": "garbage", "Created": null, "MaxParticipantNumber": 20,
		 "PriceNames": [{"PriceNameId": 1, "Price": 1500}]},
		{"EventId": 12, "City": "Nowhere"},
		{"CourseTemplateId": 6, "City": "Bergen"}
	]}`)

	events := ParseEvents(body, oslo(t))
	if len(events) != 2 {
		t.Fatalf("Expected 2 events with template ids, got %d", len(events))
	}

	ev := events[0]
	if ev.EventID != "11" || ev.TemplateID != "5" {
		t.Errorf("Expected event 11 for template 5, got %q/%q", ev.EventID, ev.TemplateID)
	}
	if ev.StartDate != "2025-03-01 09:00:00" {
		t.Errorf("Expected normalized start date, got %q", ev.StartDate)
	}
	if ev.EndDate != "" {
		t.Errorf("Expected empty end date for garbage input, got %q", ev.EndDate)
	}
	if ev.Attrs["created"] != "" {
		t.Errorf("Expected null date to become empty string, got %v", ev.Attrs["created"])
	}
	if ev.Attrs["maxparticipantnumber"] != float64(20) {
		t.Errorf("Expected lowercased passthrough attribute, got %v", ev.Attrs["maxparticipantnumber"])
	}
	prices, ok := ev.Attrs["pricenames"].([]any)
	if !ok || len(prices) != 1 {
		t.Errorf("Expected pricenames to pass through, got %v", ev.Attrs["pricenames"])
	}
	if _, ok := ev.Attrs["City"]; ok {
		t.Error("Expected keys to be lowercased")
	}

	if events[1].EventID != "" || events[1].TemplateID != "6" {
		t.Errorf("Expected id-less event kept for template 6, got %+v", events[1])
	}
}

func TestParseTemplates(t *testing.T) {
	body := []byte(`{"value":[
		{"CourseTemplateId": 5, "CourseName": "Excel", "CourseDescription": "<p>Long</p>",
		 "CourseDescriptionShort": "<b>Short</b>", "CategoryId": 3, "CategoryName": "Office",
		 "Quote": null, "ImageUrl": "https://img/excel.png",
		 "CustomFields": [{"CustomFieldId": 8110, "CustomFieldValue": "2 days"}]},
		{"CourseTemplateId": 6},
		{"CourseName": "No id"}
	]}`)

	templates := ParseTemplates(body)
	if len(templates) != 2 {
		t.Fatalf("Expected 2 templates, got %d", len(templates))
	}
	tpl := templates[0]
	if tpl.ID != "5" || tpl.Name != "Excel" || tpl.CategoryID != "3" || tpl.Quote != "" {
		t.Errorf("Unexpected template: %+v", tpl)
	}
	if len(tpl.CustomFields) != 1 || tpl.CustomFields[0].ID != 8110 || tpl.CustomFields[0].Value != "2 days" {
		t.Errorf("Unexpected custom fields: %+v", tpl.CustomFields)
	}
	if templates[1].Name != "Untitled" {
		t.Errorf("Expected default title 'Untitled', got %q", templates[1].Name)
	}
}

func TestWindows(t *testing.T) {
	loc := oslo(t)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, loc)

	if got := FutureWindow(now).Filter; got != "StartDate gt 2025-06-15T12:00:00+02:00" {
		t.Errorf("Unexpected future filter %q", got)
	}
	want := "StartDate lt 2025-06-15T12:00:00+02:00 and StartDate gt 2024-06-15T12:00:00+02:00"
	if got := RecentWindow(now, 12).Filter; got != want {
		t.Errorf("Unexpected recent filter %q", got)
	}
}

type fakeAPI struct {
	tokenCalls atomic.Int32
	lastQuery  atomic.Value
	server     *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		r.ParseForm()
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "user" || r.Form.Get("password") != "pass" {
			http.Error(w, "bad credentials", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/odata/Events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f.lastQuery.Store(r.URL.Query())
		w.Write([]byte(`{"value":[{"EventId":1,"CourseTemplateId":7,"StartDate":"2030-01-01T10:00:00+01:00"}]}`))
	})
	mux.HandleFunc("/v1/odata/CourseTemplates", func(w http.ResponseWriter, r *http.Request) {
		f.lastQuery.Store(r.URL.Query())
		w.Write([]byte(`{"value":[{"CourseTemplateId":7,"CourseName":"Seven"}]}`))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func TestTokenCacheReusesToken(t *testing.T) {
	api := newFakeAPI(t)
	st := state.NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)

	tc := NewTokenCache(api.server.URL+"/token", "user", "pass", st, 20*time.Second)
	tc.Now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		tok, err := tc.Token(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("Expected 'tok-1', got %q", tok)
		}
	}
	if n := api.tokenCalls.Load(); n != 1 {
		t.Errorf("Expected exactly 1 token exchange, got %d", n)
	}

	var persisted Token
	if err := st.Get(context.Background(), state.KeyToken, &persisted); err != nil {
		t.Fatal(err)
	}
	if want := now.Unix() + 3600 - 30; persisted.ExpiresAt != want {
		t.Errorf("Expected expires_at %d, got %d", want, persisted.ExpiresAt)
	}

	now = now.Add(3600 * time.Second)
	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := api.tokenCalls.Load(); n != 2 {
		t.Errorf("Expected a new exchange after expiry, got %d calls", n)
	}
}

func TestTokenCacheFailure(t *testing.T) {
	api := newFakeAPI(t)
	tc := NewTokenCache(api.server.URL+"/token", "user", "wrong", state.NewMemoryStore(), time.Second)

	_, err := tc.Token(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer empty.Close()
	tc.URL = empty.URL
	if _, err := tc.Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken for missing access_token, got %v", err)
	}

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer garbled.Close()
	tc.URL = garbled.URL
	_, err = tc.Token(context.Background())
	if !errors.Is(err, ErrNoToken) || !strings.Contains(err.Error(), "json parse error") {
		t.Errorf("Expected ErrNoToken wrapping a json parse error, got %v", err)
	}
}

func TestClientFetch(t *testing.T) {
	api := newFakeAPI(t)
	tc := NewTokenCache(api.server.URL+"/token", "user", "pass", state.NewMemoryStore(), time.Second)
	c := New(api.server.URL, tc, oslo(t), 5*time.Second, 1)
	ctx := context.Background()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, oslo(t))
	events, err := c.FetchEvents(ctx, FutureWindow(now))
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].TemplateID != "7" {
		t.Fatalf("Unexpected events %+v", events)
	}
	q := api.lastQuery.Load().(url.Values)
	if q["$expand"][0] != "PriceNames" {
		t.Errorf("Expected $expand=PriceNames, got %v", q["$expand"])
	}
	if q["$filter"][0] != "StartDate gt 2025-06-15T12:00:00+02:00" {
		t.Errorf("Unexpected $filter %q", q["$filter"][0])
	}

	templates, err := c.FetchTemplates(ctx, []string{"7", "9"})
	if err != nil {
		t.Fatalf("FetchTemplates failed: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Seven" {
		t.Errorf("Unexpected templates %+v", templates)
	}
	q = api.lastQuery.Load().(url.Values)
	if q["$filter"][0] != "CourseTemplateId in (7,9)" {
		t.Errorf("Unexpected template filter %q", q["$filter"][0])
	}
	if !strings.Contains(q["$expand"][0], "CustomFields") {
		t.Errorf("Expected CustomFields expansion, got %v", q["$expand"])
	}

	if n := api.tokenCalls.Load(); n != 1 {
		t.Errorf("Expected one token exchange across calls, got %d", n)
	}
}
