package status

import (
	"context"
	"strings"
	"testing"
	"time"

	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/state"
)

func TestHistoryPushCapsAndOrders(t *testing.T) {
	var h History
	for i := 1; i <= 5; i++ {
		h = h.Push(Entry{Message: string(rune('a' + i - 1))}, 3)
	}
	if len(h) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(h))
	}
	got := h[0].Message + h[1].Message + h[2].Message
	if got != "edc" {
		t.Errorf("Expected newest-first 'edc', got %q", got)
	}
}

func TestHistoryLatest(t *testing.T) {
	if _, ok := (History{}).Latest(); ok {
		t.Error("Expected no latest entry for empty history")
	}
	h := History{}.Push(Entry{Message: "x"}, 0)
	if e, ok := h.Latest(); !ok || e.Message != "x" {
		t.Errorf("Expected latest 'x', got %+v", e)
	}
}

func newTestReporter(size int) (*Reporter, *content.MemoryStore, time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cs := content.NewMemoryStore()
	r := NewReporter(state.NewMemoryStore(), cs, size, time.UTC)
	r.SetClock(func() time.Time { return now })
	return r, cs, now
}

func TestRecordPersistsBoundedHistory(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestReporter(50)

	for i := 0; i < 60; i++ {
		if err := r.Record(ctx, "run", domain.RunStats{Imported: i}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	h, err := r.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 50 {
		t.Fatalf("Expected 50 entries, got %d", len(h))
	}
	if h[0].Stats.Imported != 59 || h[49].Stats.Imported != 10 {
		t.Errorf("Expected entries 59..10, got %d..%d", h[0].Stats.Imported, h[49].Stats.Imported)
	}
	if h[0].ID == "" || h[0].ID == h[1].ID {
		t.Errorf("Expected unique entry ids, got %q and %q", h[0].ID, h[1].ID)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	r, cs, now := newTestReporter(10)
	layout := domain.LocalLayout

	a, _ := cs.CreateCourse(ctx, domain.CourseRecord{Title: "Alpha", Status: domain.StatusPublish})
	cs.SetEvents(ctx, a, []domain.EventEntry{
		{"eventid": "1", "startdate": now.AddDate(0, 0, -3).Format(layout)},
		{"eventid": "2", "startdate": now.AddDate(0, 0, 20).Format(layout)},
	})
	b, _ := cs.CreateCourse(ctx, domain.CourseRecord{Title: "Beta", Status: domain.StatusPublish})
	cs.SetEvents(ctx, b, []domain.EventEntry{{"eventid": "3", "startdate": now.AddDate(0, 0, 4).Format(layout)}})
	d, _ := cs.CreateCourse(ctx, domain.CourseRecord{Title: "Draft", Status: "draft"})
	cs.SetEvents(ctx, d, []domain.EventEntry{{"eventid": "4", "startdate": now.AddDate(0, 0, 1).Format(layout)}})

	next := now.Add(6 * time.Hour)
	r.SetNextRun(func() time.Time { return next })
	r.Record(ctx, "Course import finished", domain.RunStats{Imported: 2})
	r.MarkManual(ctx)

	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.Courses != 2 || snap.Events != 3 {
		t.Errorf("Expected 2 published courses and 3 events, got %d and %d", snap.Courses, snap.Events)
	}
	if snap.NextEvent == nil || snap.NextEvent.Course != "Beta" {
		t.Errorf("Expected next event in Beta, got %+v", snap.NextEvent)
	}
	if snap.LastRun == nil || snap.LastRun.Stats.Imported != 2 {
		t.Errorf("Expected last run with 2 imported, got %+v", snap.LastRun)
	}
	if !snap.LastManual.Equal(now) {
		t.Errorf("Expected last manual %v, got %v", now, snap.LastManual)
	}
	if !snap.NextScheduled.Equal(next) {
		t.Errorf("Expected next scheduled %v, got %v", next, snap.NextScheduled)
	}
}

func TestRenderHTML(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestReporter(10)

	empty, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.RenderHTML(empty)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out, "Last import:</strong> never") {
		t.Errorf("Expected 'never' for missing run, got %q", out)
	}

	r.Record(ctx, "Course <import> finished", domain.RunStats{EventsRemoved: 7})
	snap, _ := r.Snapshot(ctx)
	out, err = r.RenderHTML(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Events removed: 7") {
		t.Errorf("Expected removed counter in output, got %q", out)
	}
	if !strings.Contains(out, "2025-06-01 12:00") {
		t.Errorf("Expected formatted run time in output, got %q", out)
	}
	if strings.Contains(out, "<import>") {
		t.Errorf("Expected message to be escaped, got %q", out)
	}
}
