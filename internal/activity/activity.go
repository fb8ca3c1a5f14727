// Package activity is the append-only event feed every component reports into.
package activity

import (
	"context"
	"time"

	"github.com/example/resy-sniper/internal/db"
)

// Event kinds.
const (
	KindSystem = "system"
	KindError  = "error"
	KindFound  = "found"
	KindSnipe  = "snipe"
	KindBooked = "booked"
	KindWatch  = "watch"
)

type Event struct {
	ID        int64     `json:"id"`
	WatchID   *int64    `json:"watch_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Details   *string   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Append(ctx context.Context, watchID *int64, kind, message string, details *string) error {
	return r.db.Exec(ctx, `
INSERT INTO activity(watch_id, kind, message, details) VALUES ($1,$2,$3,$4)`,
		watchID, kind, message, details)
}

func (r *Repo) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, watch_id, kind, message, details, created_at
FROM activity
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.WatchID, &e.Kind, &e.Message, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear wipes the feed. Exposed for the DELETE /api/activity endpoint only.
func (r *Repo) Clear(ctx context.Context) error {
	return r.db.Exec(ctx, `DELETE FROM activity`)
}
