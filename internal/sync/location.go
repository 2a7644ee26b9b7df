package sync

import (
	"sort"
	"time"

	"eduadmin-sync/internal/domain"
)

type datedEvent struct {
	entry domain.EventEntry
	start time.Time
	ok    bool
}

// SelectLocation derives the course location from its events. Events are
// ordered by start descending and the city of the first one that starts
// after now is taken, which is the latest upcoming event rather than the
// soonest. Without upcoming events, the first event of that order is used.
// Events with a missing or malformed start sort last.
func SelectLocation(events []domain.EventEntry, now time.Time, loc *time.Location) string {
	if len(events) == 0 {
		return ""
	}

	sorted := make([]datedEvent, len(events))
	for i, e := range events {
		start, ok := e.Start(loc)
		sorted[i] = datedEvent{entry: e, start: start, ok: ok}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start.After(sorted[j].start)
	})

	city := ""
	for _, e := range sorted {
		if e.ok && e.start.After(now) {
			city = e.entry.City()
			break
		}
	}
	if city == "" {
		city = sorted[0].entry.City()
	}
	return city
}
