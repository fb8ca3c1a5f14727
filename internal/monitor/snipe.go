package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/resy-sniper/internal/activity"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/watches"
)

// ErrNoBookToken means the details response carried no usable booking token;
// the snipe attempt is abandoned and the slot stays unbooked.
var ErrNoBookToken = errors.New("no book token received")

// snipe runs the two-step booking protocol: fetch a booking token for the slot
// configuration, then submit the booking. Every failure point emits an error
// event and leaves the slot unbooked for the next cycle to retry; there is no
// retry inside the sequence itself.
func (m *Monitor) snipe(ctx context.Context, w watches.Watch, st settings.Settings, configToken, day, slotTime string) {
	m.logEvent(ctx, &w.ID, activity.KindSnipe,
		fmt.Sprintf("Attempting to snipe %s %s %s", w.VenueName, day, slotTime))

	det, err := m.Client.BookingDetails(ctx, st.Credentials(), configToken, day, w.PartySize)
	if err != nil {
		m.logEvent(ctx, &w.ID, activity.KindError, fmt.Sprintf("Failed to get details: %v", err))
		return
	}
	if det.BookToken == "" {
		m.logEvent(ctx, &w.ID, activity.KindError, ErrNoBookToken.Error())
		return
	}

	if err := m.Client.Book(ctx, st.Credentials(), det.BookToken, st.PaymentMethodID); err != nil {
		m.logEvent(ctx, &w.ID, activity.KindError, fmt.Sprintf("Booking failed: %v", err))
		return
	}

	m.logEvent(ctx, &w.ID, activity.KindBooked,
		fmt.Sprintf("BOOKED %s %s at %s", w.VenueName, day, slotTime))
	if err := m.Slots.MarkBooked(ctx, w.ID, day, slotTime); err != nil {
		m.Log.Error().Err(err).Int64("watch_id", w.ID).Msg("mark slot booked")
	}
}
