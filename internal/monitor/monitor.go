// Package monitor is the scanning engine: a fixed-cadence loop over all active
// watches, per-watch slot discovery with deduplication, and the two-step
// auto-booking sequence for snipe-mode watches.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resy-sniper/internal/activity"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/slots"
	"github.com/example/resy-sniper/internal/watches"
)

// BookingClient is the slice of the Resy API the monitor drives. Credentials
// come from the settings store on every cycle so operators can rotate tokens
// without a restart.
type BookingClient interface {
	FindSlots(ctx context.Context, creds resy.Credentials, venueID, day string, partySize int) ([]resy.Slot, error)
	BookingDetails(ctx context.Context, creds resy.Credentials, configToken, day string, partySize int) (resy.Details, error)
	Book(ctx context.Context, creds resy.Credentials, bookToken string, paymentMethodID int) error
}

type WatchStore interface {
	ListActive(ctx context.Context) ([]watches.Watch, error)
	UpdateLastChecked(ctx context.Context, id int64, at time.Time) error
}

type SlotStore interface {
	ExistsUnbooked(ctx context.Context, watchID int64, date, slotTime string) (bool, error)
	Insert(ctx context.Context, s slots.FoundSlot) error
	MarkBooked(ctx context.Context, watchID int64, date, slotTime string) error
}

type ActivityLog interface {
	Append(ctx context.Context, watchID *int64, kind, message string, details *string) error
}

type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type State string

const (
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
)

// Monitor owns the running/stopped lifecycle and the background cycle
// goroutine. The zero intervals default to 30s between cycles and 1s between
// per-watch dates.
type Monitor struct {
	Client   BookingClient
	Watches  WatchStore
	Slots    SlotStore
	Activity ActivityLog
	Settings SettingsSource

	Interval time.Duration
	DayPause time.Duration

	Log zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// Start transitions to RUNNING and launches the cycle goroutine. A second
// Start while running is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.logEvent(ctx, nil, activity.KindSystem, "Monitor started")
	go m.run(ctx, stop)
}

// Stop transitions to STOPPED. An in-flight cycle is allowed to finish; only
// new cycles are prevented.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.logEvent(ctx, nil, activity.KindSystem, "Monitor stopped")
}

func (m *Monitor) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return StateRunning
	}
	return StateStopped
}

// TriggerScan runs a single scan outside the periodic cadence. It returns
// immediately; the scan races freely with the periodic cycle and relies on the
// ledger's uniqueness guarantee rather than a lock.
func (m *Monitor) TriggerScan(ctx context.Context) {
	go m.scanCycle(ctx)
}

func (m *Monitor) run(ctx context.Context, stop chan struct{}) {
	t := time.NewTicker(m.interval())
	defer t.Stop()

	for {
		m.scanCycle(ctx)
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// scanCycle is the loop's catch-all: any error that escapes a cycle is turned
// into an error event and swallowed so the loop survives.
func (m *Monitor) scanCycle(ctx context.Context) {
	if err := m.ScanAll(ctx); err != nil {
		m.Log.Error().Err(err).Msg("scan cycle failed")
		m.logEvent(ctx, nil, activity.KindError, fmt.Sprintf("Monitor error: %v", err))
	}
}

func (m *Monitor) interval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return 30 * time.Second
}

func (m *Monitor) dayPause() time.Duration {
	if m.DayPause > 0 {
		return m.DayPause
	}
	return time.Second
}

func (m *Monitor) logEvent(ctx context.Context, watchID *int64, kind, message string) {
	if err := m.Activity.Append(ctx, watchID, kind, message, nil); err != nil {
		m.Log.Error().Err(err).Str("kind", kind).Msg("append activity event")
	}
}
