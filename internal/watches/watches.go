package watches

import (
	"context"
	"fmt"
	"time"

	"github.com/example/resy-sniper/internal/db"
)

// Watch is a standing request to monitor one venue over a date range and time
// window. The monitor only ever writes last_checked; everything else is owned
// by the CRUD surface.
type Watch struct {
	ID           int64      `json:"id"`
	VenueID      string     `json:"venue_id"`
	VenueName    string     `json:"venue_name"`
	PartySize    int        `json:"party_size"`
	DateStart    string     `json:"date_start"`    // YYYY-MM-DD
	DateEnd      string     `json:"date_end"`      // YYYY-MM-DD; empty means DateStart
	TimeEarliest string     `json:"time_earliest"` // HH:MM
	TimeLatest   string     `json:"time_latest"`   // HH:MM
	SnipeMode    bool       `json:"snipe_mode"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastChecked  *time.Time `json:"last_checked"`
}

// EndDate is the effective end of the date range.
func (w Watch) EndDate() string {
	if w.DateEnd == "" {
		return w.DateStart
	}
	return w.DateEnd
}

func (w Watch) Validate() error {
	if w.VenueID == "" {
		return fmt.Errorf("venue_id required")
	}
	if w.PartySize < 1 {
		return fmt.Errorf("party_size must be >= 1")
	}
	start, err := time.Parse("2006-01-02", w.DateStart)
	if err != nil {
		return fmt.Errorf("date_start must be YYYY-MM-DD")
	}
	if w.DateEnd != "" {
		end, err := time.Parse("2006-01-02", w.DateEnd)
		if err != nil {
			return fmt.Errorf("date_end must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return fmt.Errorf("date_end must not be before date_start")
		}
	}
	for _, t := range []string{w.TimeEarliest, w.TimeLatest} {
		if t == "" {
			continue
		}
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("time window must be HH:MM")
		}
	}
	return nil
}

const watchCols = `id,venue_id,venue_name,party_size,date_start,date_end,time_earliest,time_latest,snipe_mode,active,created_at,last_checked`

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, w Watch) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO watches(venue_id,venue_name,party_size,date_start,date_end,time_earliest,time_latest,snipe_mode,active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)
RETURNING id`,
		w.VenueID, w.VenueName, w.PartySize, w.DateStart, w.DateEnd, w.TimeEarliest, w.TimeLatest, w.SnipeMode,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) List(ctx context.Context) ([]Watch, error) {
	return r.list(ctx, `SELECT `+watchCols+` FROM watches ORDER BY created_at DESC`)
}

// ListActive returns the watches the scanner should cover, oldest first so
// long-standing watches are not starved by new ones.
func (r *Repo) ListActive(ctx context.Context) ([]Watch, error) {
	return r.list(ctx, `SELECT `+watchCols+` FROM watches WHERE active ORDER BY created_at ASC`)
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Watch, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (Watch, error) {
	w, err := scanWatch(r.db.QueryRow(ctx, `SELECT `+watchCols+` FROM watches WHERE id=$1`, id))
	if err != nil {
		return Watch{}, db.WrapNotFound(err)
	}
	return w, nil
}

// Update rewrites the operator-editable fields.
func (r *Repo) Update(ctx context.Context, w Watch) error {
	return r.db.Exec(ctx, `
UPDATE watches
SET party_size=$2, date_start=$3, date_end=$4, time_earliest=$5, time_latest=$6, snipe_mode=$7, active=$8
WHERE id=$1`,
		w.ID, w.PartySize, w.DateStart, w.DateEnd, w.TimeEarliest, w.TimeLatest, w.SnipeMode, w.Active)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	return r.db.Exec(ctx, `DELETE FROM watches WHERE id=$1`, id)
}

func (r *Repo) UpdateLastChecked(ctx context.Context, id int64, at time.Time) error {
	return r.db.Exec(ctx, `UPDATE watches SET last_checked=$2 WHERE id=$1`, id, at)
}

func scanWatch(row db.Row) (Watch, error) {
	var w Watch
	var dateEnd *string
	err := row.Scan(&w.ID, &w.VenueID, &w.VenueName, &w.PartySize, &w.DateStart, &dateEnd,
		&w.TimeEarliest, &w.TimeLatest, &w.SnipeMode, &w.Active, &w.CreatedAt, &w.LastChecked)
	if err != nil {
		return Watch{}, err
	}
	if dateEnd != nil {
		w.DateEnd = *dateEnd
	}
	return w, nil
}
