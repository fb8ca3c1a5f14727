package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/slots"
	"github.com/example/resy-sniper/internal/watches"
)

type fakeClient struct {
	mu sync.Mutex

	slotsByDay map[string][]resy.Slot
	findErr    map[string]error
	findCalls  []string

	details      resy.Details
	detailsErr   error
	detailsCalls int

	bookErr   error
	bookCalls []string
}

func (f *fakeClient) FindSlots(_ context.Context, _ resy.Credentials, _ string, day string, _ int) ([]resy.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls = append(f.findCalls, day)
	if err := f.findErr[day]; err != nil {
		return nil, err
	}
	return f.slotsByDay[day], nil
}

func (f *fakeClient) BookingDetails(context.Context, resy.Credentials, string, string, int) (resy.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsCalls++
	if f.detailsErr != nil {
		return resy.Details{}, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeClient) Book(_ context.Context, _ resy.Credentials, token string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return f.bookErr
	}
	f.bookCalls = append(f.bookCalls, token)
	return nil
}

func (f *fakeClient) findCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.findCalls)
}

type fakeWatchStore struct {
	mu sync.Mutex

	watches     []watches.Watch
	lastChecked map[int64]time.Time
}

func (f *fakeWatchStore) ListActive(context.Context) ([]watches.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []watches.Watch
	for _, w := range f.watches {
		if w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWatchStore) UpdateLastChecked(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastChecked == nil {
		f.lastChecked = map[int64]time.Time{}
	}
	f.lastChecked[id] = at
	return nil
}

// fakeSlotStore mirrors the Postgres ledger, including the partial unique
// index semantics: at most one unbooked row per (watch, date, time).
type fakeSlotStore struct {
	mu      sync.Mutex
	records []slots.FoundSlot
}

func (f *fakeSlotStore) ExistsUnbooked(_ context.Context, watchID int64, date, slotTime string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findUnbooked(watchID, date, slotTime) >= 0, nil
}

func (f *fakeSlotStore) Insert(_ context.Context, s slots.FoundSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUnbooked(s.WatchID, s.Date, s.Time) >= 0 {
		return nil // conflict, dropped
	}
	s.ID = int64(len(f.records) + 1)
	f.records = append(f.records, s)
	return nil
}

func (f *fakeSlotStore) MarkBooked(_ context.Context, watchID int64, date, slotTime string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.WatchID == watchID && r.Date == date && r.Time == slotTime {
			f.records[i].Booked = true
		}
	}
	return nil
}

func (f *fakeSlotStore) findUnbooked(watchID int64, date, slotTime string) int {
	for i, r := range f.records {
		if r.WatchID == watchID && r.Date == date && r.Time == slotTime && !r.Booked {
			return i
		}
	}
	return -1
}

func (f *fakeSlotStore) all() []slots.FoundSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slots.FoundSlot(nil), f.records...)
}

type loggedEvent struct {
	WatchID *int64
	Kind    string
	Message string
}

type fakeActivityLog struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (f *fakeActivityLog) Append(_ context.Context, watchID *int64, kind, message string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, loggedEvent{WatchID: watchID, Kind: kind, Message: message})
	return nil
}

func (f *fakeActivityLog) byKind(kind string) []loggedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []loggedEvent
	for _, e := range f.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeSettings struct {
	s   settings.Settings
	err error
}

func (f *fakeSettings) Load(context.Context) (settings.Settings, error) {
	return f.s, f.err
}
