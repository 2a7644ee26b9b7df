package sync

import (
	"reflect"
	"testing"
	"time"

	"eduadmin-sync/internal/domain"
)

func remote(id string, attrs map[string]any) domain.RemoteEvent {
	a := map[string]any{"eventid": id}
	for k, v := range attrs {
		a[k] = v
	}
	return domain.RemoteEvent{EventID: id, Attrs: a}
}

func TestMergeEventsPreservesUnspecifiedFields(t *testing.T) {
	stored := []domain.EventEntry{{"eventid": "1", "a": float64(1), "b": float64(2)}}
	res := MergeEvents(stored, []domain.RemoteEvent{remote("1", map[string]any{"b": float64(3)})})

	want := domain.EventEntry{"eventid": "1", "a": float64(1), "b": float64(3)}
	if len(res.Events) != 1 || !reflect.DeepEqual(res.Events[0], want) {
		t.Errorf("Expected %v, got %v", want, res.Events)
	}
	if res.Added != 0 || res.Updated != 1 || !res.Changed {
		t.Errorf("Expected 0 added, 1 updated, changed; got %+v", res)
	}
	if stored[0]["b"] != float64(2) {
		t.Error("Expected stored entry to be left untouched")
	}
}

func TestMergeEventsIdempotent(t *testing.T) {
	fetched := []domain.RemoteEvent{
		remote("1", map[string]any{"city": "Oslo"}),
		remote("2", map[string]any{"city": "Bergen"}),
	}

	first := MergeEvents(nil, fetched)
	if first.Added != 2 || first.Updated != 0 || !first.Changed {
		t.Fatalf("Expected 2 added on first merge, got %+v", first)
	}

	second := MergeEvents(first.Events, fetched)
	if second.Added != 0 || second.Updated != 0 || second.Changed {
		t.Errorf("Expected no changes on identical merge, got %+v", second)
	}
	if !reflect.DeepEqual(first.Events, second.Events) {
		t.Errorf("Expected identical collections, got %v vs %v", first.Events, second.Events)
	}
}

func TestMergeEventsDropsIDLess(t *testing.T) {
	stored := []domain.EventEntry{
		{"city": "orphan"},
		{"eventid": "1", "city": "Oslo"},
	}
	fetched := []domain.RemoteEvent{{Attrs: map[string]any{"city": "no id"}}}

	res := MergeEvents(stored, fetched)
	if len(res.Events) != 1 || res.Events[0].ID() != "1" {
		t.Errorf("Expected only the identified event to remain, got %v", res.Events)
	}
	if !res.Changed {
		t.Error("Expected dropping an id-less entry to count as a change")
	}
}

func TestMergeEventsUniqueIDs(t *testing.T) {
	stored := []domain.EventEntry{
		{"eventid": float64(1), "city": "Oslo"},
		{"eventid": "1", "city": "Oslo again"},
	}
	fetched := []domain.RemoteEvent{
		remote("2", nil),
		remote("2", map[string]any{"city": "Tromsø"}),
	}

	res := MergeEvents(stored, fetched)
	seen := map[string]bool{}
	for _, e := range res.Events {
		if seen[e.ID()] {
			t.Errorf("Duplicate event id %s in %v", e.ID(), res.Events)
		}
		seen[e.ID()] = true
	}
	if res.Added != 1 {
		t.Errorf("Expected 1 added, got %d", res.Added)
	}
}

func TestSelectLocation(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	at := func(d time.Duration) string { return now.Add(d).Format(domain.LocalLayout) }

	testCases := []struct {
		name     string
		events   []domain.EventEntry
		expected string
	}{
		{"no events", nil, ""},
		{
			"latest upcoming wins",
			[]domain.EventEntry{
				{"startdate": at(24 * time.Hour), "city": "Soon"},
				{"startdate": at(72 * time.Hour), "city": "Later"},
				{"startdate": at(-24 * time.Hour), "city": "Past"},
			},
			"Later",
		},
		{
			"falls back to most recent past",
			[]domain.EventEntry{
				{"startdate": at(-72 * time.Hour), "city": "Older"},
				{"startdate": at(-24 * time.Hour), "city": "Recent"},
			},
			"Recent",
		},
		{
			"missing start sorts last",
			[]domain.EventEntry{
				{"startdate": "", "city": "Unknown"},
				{"startdate": at(-24 * time.Hour), "city": "Recent"},
			},
			"Recent",
		},
		{
			"upcoming without city falls back to first",
			[]domain.EventEntry{
				{"startdate": at(48 * time.Hour)},
				{"startdate": at(-24 * time.Hour), "city": "Past"},
			},
			"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SelectLocation(tc.events, now, loc); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestRetainEventsBoundary(t *testing.T) {
	loc := time.UTC
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	events := []domain.EventEntry{
		{"eventid": "at", "enddate": cutoff.Format(domain.LocalLayout)},
		{"eventid": "after", "enddate": cutoff.Add(time.Second).Format(domain.LocalLayout)},
		{"eventid": "older", "enddate": cutoff.AddDate(0, -1, 0).Format(domain.LocalLayout)},
		{"eventid": "noend"},
		{"eventid": "badend", "enddate": "soon"},
	}

	kept := RetainEvents(events, cutoff, loc)
	var ids []string
	for _, e := range kept {
		ids = append(ids, e.ID())
	}
	if !reflect.DeepEqual(ids, []string{"at", "after"}) {
		t.Errorf("Expected [at after], got %v", ids)
	}
}
