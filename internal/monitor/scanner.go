package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/resy-sniper/internal/activity"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/slots"
	"github.com/example/resy-sniper/internal/watches"
)

const dateLayout = "2006-01-02"

// ScanAll scans every active watch once. Without an API key it is a silent
// no-op: no external calls, no watch mutations. A failure in one watch is
// logged against that watch and does not abort the rest.
func (m *Monitor) ScanAll(ctx context.Context) error {
	st, err := m.Settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if st.APIKey == "" {
		return nil
	}

	ws, err := m.Watches.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active watches: %w", err)
	}

	for _, w := range ws {
		if err := m.scanWatch(ctx, w, st); err != nil {
			m.Log.Warn().Err(err).Int64("watch_id", w.ID).Msg("watch scan failed")
			m.logEvent(ctx, &w.ID, activity.KindError, fmt.Sprintf("Error checking %s: %v", w.VenueName, err))
		}
	}
	return nil
}

// scanWatch walks the watch's date range in ascending order, recording and
// optionally sniping every slot inside the time window.
func (m *Monitor) scanWatch(ctx context.Context, w watches.Watch, st settings.Settings) error {
	start, err := time.Parse(dateLayout, w.DateStart)
	if err != nil {
		return fmt.Errorf("invalid date_start %q", w.DateStart)
	}
	end, err := time.Parse(dateLayout, w.EndDate())
	if err != nil {
		return fmt.Errorf("invalid date_end %q", w.DateEnd)
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayStr := day.Format(dateLayout)

		offered, err := m.Client.FindSlots(ctx, st.Credentials(), w.VenueID, dayStr, w.PartySize)
		if err != nil {
			// Transient availability failures are expected; skipping the day
			// without an event keeps the feed readable.
			m.Log.Debug().Err(err).Int64("watch_id", w.ID).Str("day", dayStr).Msg("find slots failed")
			continue
		}

		for _, s := range offered {
			if err := m.handleSlot(ctx, w, st, dayStr, s); err != nil {
				return err
			}
		}

		// throttle between day requests
		select {
		case <-time.After(m.dayPause()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return m.Watches.UpdateLastChecked(ctx, w.ID, time.Now().UTC())
}

func (m *Monitor) handleSlot(ctx context.Context, w watches.Watch, st settings.Settings, day string, s resy.Slot) error {
	if w.TimeEarliest != "" && w.TimeLatest != "" {
		t := timeOfDay(s.Start)
		if t < w.TimeEarliest || t > w.TimeLatest {
			return nil
		}
	}

	known, err := m.Slots.ExistsUnbooked(ctx, w.ID, day, s.Start)
	if err != nil {
		return fmt.Errorf("slot lookup: %w", err)
	}
	if !known {
		err := m.Slots.Insert(ctx, slots.FoundSlot{
			WatchID:     w.ID,
			VenueName:   w.VenueName,
			Date:        day,
			Time:        s.Start,
			PartySize:   w.PartySize,
			ConfigToken: s.ConfigToken,
		})
		if err != nil {
			return fmt.Errorf("record slot: %w", err)
		}
		m.logEvent(ctx, &w.ID, activity.KindFound,
			fmt.Sprintf("Slot found: %s %s at %s for %d", w.VenueName, day, s.Start, w.PartySize))
	}

	// Snipe eligibility is independent of newness: a slot whose booking failed
	// last cycle is still unbooked and gets retried here.
	if w.SnipeMode && s.ConfigToken != "" && st.AuthToken != "" {
		m.snipe(ctx, w, st, s.ConfigToken, day, s.Start)
	}
	return nil
}

// timeOfDay extracts HH:MM from a slot start like "2024-06-01 19:00:00".
func timeOfDay(start string) string {
	if i := strings.LastIndexByte(start, ' '); i >= 0 {
		start = start[i+1:]
	}
	if len(start) > 5 {
		start = start[:5]
	}
	return start
}
