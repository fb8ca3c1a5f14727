// Package slots is the deduplication ledger: every slot sighting is persisted
// once per (watch, date, time) while unbooked, and rows are never deleted, so
// the table doubles as a historical log of availability.
package slots

import (
	"context"
	"time"

	"github.com/example/resy-sniper/internal/db"
)

type FoundSlot struct {
	ID          int64     `json:"id"`
	WatchID     int64     `json:"watch_id"`
	VenueName   string    `json:"venue_name"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Time        string    `json:"time"` // raw slot start, e.g. "2024-06-01 19:00:00"
	PartySize   int       `json:"party_size"`
	ConfigToken string    `json:"config_token"`
	SeenAt      time.Time `json:"seen_at"`
	Booked      bool      `json:"booked"`
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// ExistsUnbooked reports whether an unbooked sighting is already recorded for
// the exact (watch, date, time) key.
func (r *Repo) ExistsUnbooked(ctx context.Context, watchID int64, date, slotTime string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM found_slots WHERE watch_id=$1 AND date=$2 AND time=$3 AND NOT booked)`,
		watchID, date, slotTime).Scan(&exists)
	return exists, err
}

// Insert records a sighting. A concurrent scan may have inserted the same key
// between the caller's ExistsUnbooked check and this call; the partial unique
// index makes the second insert a no-op.
func (r *Repo) Insert(ctx context.Context, s FoundSlot) error {
	return r.db.Exec(ctx, `
INSERT INTO found_slots(watch_id, venue_name, date, time, party_size, config_token)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (watch_id, date, time) WHERE NOT booked DO NOTHING`,
		s.WatchID, s.VenueName, s.Date, s.Time, s.PartySize, s.ConfigToken)
}

// MarkBooked flips every matching unbooked sighting to booked.
func (r *Repo) MarkBooked(ctx context.Context, watchID int64, date, slotTime string) error {
	return r.db.Exec(ctx, `
UPDATE found_slots SET booked=TRUE WHERE watch_id=$1 AND date=$2 AND time=$3`,
		watchID, date, slotTime)
}

// Recent returns the latest sightings, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]FoundSlot, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, watch_id, venue_name, date, time, party_size, config_token, seen_at, booked
FROM found_slots
ORDER BY seen_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FoundSlot
	for rows.Next() {
		var s FoundSlot
		if err := rows.Scan(&s.ID, &s.WatchID, &s.VenueName, &s.Date, &s.Time,
			&s.PartySize, &s.ConfigToken, &s.SeenAt, &s.Booked); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
